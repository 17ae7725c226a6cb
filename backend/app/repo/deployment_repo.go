package repo

import (
	"time"

	"vdi-fleet/backend/app/models"

	"gorm.io/gorm"
)

type DeploymentRepository struct{ db *gorm.DB }

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

// CreateWithReservations performs the check-and-reserve insert: deployment,
// targets and one reservation row per device in a single transaction. When
// another non-terminal deployment already holds a device, the reservation's
// unique index fails the whole transaction with gorm.ErrDuplicatedKey.
func (r *DeploymentRepository) CreateWithReservations(dep *models.Deployment, targets []models.DeploymentTarget) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dep).Error; err != nil {
			return err
		}
		for i := range targets {
			targets[i].DeploymentID = dep.ID
			if err := tx.Create(&targets[i]).Error; err != nil {
				return err
			}
			res := models.DeviceReservation{DeviceID: targets[i].DeviceID, DeploymentID: dep.ID}
			if err := tx.Create(&res).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *DeploymentRepository) FindByID(id string) (*models.Deployment, error) {
	var dep models.Deployment
	if err := r.db.Preload("Targets").Where("id = ?", id).First(&dep).Error; err != nil {
		return nil, err
	}
	return &dep, nil
}

func (r *DeploymentRepository) List(status, deviceID string) ([]models.Deployment, error) {
	q := r.db.Preload("Targets").Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if deviceID != "" {
		q = q.Where("id IN (?)", r.db.Model(&models.DeploymentTarget{}).
			Select("deployment_id").Where("device_id = ?", deviceID))
	}
	var deps []models.Deployment
	if err := q.Find(&deps).Error; err != nil {
		return nil, err
	}
	return deps, nil
}

func (r *DeploymentRepository) MarkInProgress(id string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.Deployment{}).
		Where("id = ? AND status = ?", id, models.DeployPending).
		Updates(map[string]any{"status": models.DeployInProgress, "started_at": now})
	return res.RowsAffected > 0, res.Error
}

// Finish moves a deployment to a terminal status; no-op when already
// terminal. Reservations for its devices are released in the same
// transaction so the devices become deployable again atomically.
func (r *DeploymentRepository) Finish(id, status, errMsg string) (bool, error) {
	var moved bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Deployment{}).
			Where("id = ? AND status IN ?", id, []string{models.DeployPending, models.DeployInProgress}).
			Updates(map[string]any{"status": status, "error": errMsg, "finished_at": now})
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected > 0
		if !moved {
			return nil
		}
		return tx.Where("deployment_id = ?", id).Delete(&models.DeviceReservation{}).Error
	})
	return moved, err
}

// AdvanceTargetProgress is monotonic per target and only applies while the
// target is still live.
func (r *DeploymentRepository) AdvanceTargetProgress(depID, deviceID string, pct int) (bool, error) {
	res := r.db.Model(&models.DeploymentTarget{}).
		Where("deployment_id = ? AND device_id = ? AND progress <= ? AND status IN ?",
			depID, deviceID, pct, []string{models.DeployPending, models.DeployInProgress}).
		Update("progress", pct)
	return res.RowsAffected > 0, res.Error
}

func (r *DeploymentRepository) MarkTargetInProgress(depID, deviceID string) error {
	return r.db.Model(&models.DeploymentTarget{}).
		Where("deployment_id = ? AND device_id = ? AND status = ?", depID, deviceID, models.DeployPending).
		Update("status", models.DeployInProgress).Error
}

// FinishTarget moves one device outcome to a terminal status.
func (r *DeploymentRepository) FinishTarget(depID, deviceID, status, errMsg string) (bool, error) {
	fields := map[string]any{"status": status, "error": errMsg}
	if status == models.DeployCompleted {
		fields["progress"] = 100
	}
	res := r.db.Model(&models.DeploymentTarget{}).
		Where("deployment_id = ? AND device_id = ? AND status IN ?",
			depID, deviceID, []string{models.DeployPending, models.DeployInProgress}).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

func (r *DeploymentRepository) Targets(depID string) ([]models.DeploymentTarget, error) {
	var targets []models.DeploymentTarget
	err := r.db.Where("deployment_id = ?", depID).Order("id ASC").Find(&targets).Error
	return targets, err
}

func (r *DeploymentRepository) Target(depID, deviceID string) (*models.DeploymentTarget, error) {
	var t models.DeploymentTarget
	if err := r.db.Where("deployment_id = ? AND device_id = ?", depID, deviceID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// AdvanceProgress keeps the aggregate monotonic regardless of how the
// per-target mean moves.
func (r *DeploymentRepository) AdvanceProgress(id string, pct int) error {
	return r.db.Model(&models.Deployment{}).
		Where("id = ? AND progress <= ?", id, pct).
		Update("progress", pct).Error
}

// ReservationForDevice reports the deployment currently holding the device,
// if any.
func (r *DeploymentRepository) ReservationForDevice(deviceID string) (*models.DeviceReservation, error) {
	var res models.DeviceReservation
	if err := r.db.Where("device_id = ?", deviceID).First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}
