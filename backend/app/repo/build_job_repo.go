package repo

import (
	"time"

	"vdi-fleet/backend/app/models"

	"gorm.io/gorm"
)

type BuildJobRepository struct{ db *gorm.DB }

func NewBuildJobRepository(db *gorm.DB) *BuildJobRepository { return &BuildJobRepository{db: db} }

// CreateWithImage inserts the job and its image in one transaction so a job
// id never exists without its image row.
func (r *BuildJobRepository) CreateWithImage(job *models.BuildJob, img *models.Image) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(img).Error; err != nil {
			return err
		}
		return tx.Create(job).Error
	})
}

func (r *BuildJobRepository) FindByID(id string) (*models.BuildJob, error) {
	var job models.BuildJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *BuildJobRepository) List(status string) ([]models.BuildJob, error) {
	q := r.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var jobs []models.BuildJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// AdvanceProgress persists one progress step. The WHERE clause enforces both
// the monotonic contract and cooperative cancellation in a single
// conditional update: it matches nothing once the job left building or the
// step would move progress backwards. Returns false when the executor must
// stop emitting.
func (r *BuildJobRepository) AdvanceProgress(id, stage string, pct int) (bool, error) {
	res := r.db.Model(&models.BuildJob{}).
		Where("id = ? AND status = ? AND progress <= ?", id, models.BuildRunning, pct).
		Updates(map[string]any{"progress": pct, "stage": stage})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Could also be a non-monotonic step; check the live status.
		job, err := r.FindByID(id)
		if err != nil {
			return false, err
		}
		return !job.Terminal(), nil
	}
	return true, nil
}

// Finish moves a job out of building. Only the building→terminal edge is
// allowed; a cancelled job stays cancelled even if the executor finishes.
func (r *BuildJobRepository) Finish(id, status, errMsg string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.BuildJob{}).
		Where("id = ? AND status = ?", id, models.BuildRunning).
		Updates(map[string]any{"status": status, "error": errMsg, "finished_at": now})
	return res.RowsAffected > 0, res.Error
}
