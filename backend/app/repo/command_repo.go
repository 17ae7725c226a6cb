package repo

import (
	"time"

	"vdi-fleet/backend/app/models"

	"gorm.io/gorm"
)

type CommandRepository struct{ db *gorm.DB }

func NewCommandRepository(db *gorm.DB) *CommandRepository { return &CommandRepository{db: db} }

func (r *CommandRepository) Create(cmd *models.Command) error { return r.db.Create(cmd).Error }

func (r *CommandRepository) FindByID(id string) (*models.Command, error) {
	var cmd models.Command
	if err := r.db.Where("id = ?", id).First(&cmd).Error; err != nil {
		return nil, err
	}
	return &cmd, nil
}

func (r *CommandRepository) List(deviceID, status string) ([]models.Command, error) {
	q := r.db.Order("seq ASC")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var cmds []models.Command
	if err := q.Find(&cmds).Error; err != nil {
		return nil, err
	}
	return cmds, nil
}

// TakePending atomically drains the device's pending queue in FIFO order,
// flipping each command to sent. A command leaves pending only through this
// path, so a racing second heartbeat cannot deliver the same command twice.
func (r *CommandRepository) TakePending(deviceID string) ([]models.Command, error) {
	var taken []models.Command
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var cmds []models.Command
		if err := tx.Where("device_id = ? AND status = ?", deviceID, models.CommandPending).
			Order("seq ASC").Find(&cmds).Error; err != nil {
			return err
		}
		now := time.Now()
		for i := range cmds {
			res := tx.Model(&models.Command{}).
				Where("id = ? AND status = ?", cmds[i].ID, models.CommandPending).
				Updates(map[string]any{"status": models.CommandSent, "sent_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue // lost to a concurrent poll
			}
			cmds[i].Status = models.CommandSent
			cmds[i].SentAt = &now
			taken = append(taken, cmds[i])
		}
		return nil
	})
	return taken, err
}

// Complete records the agent's result; only non-terminal commands accept one.
func (r *CommandRepository) Complete(id, status, result string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.Command{}).
		Where("id = ? AND status IN ?", id, []string{models.CommandPending, models.CommandSent}).
		Updates(map[string]any{"status": status, "result": result, "completed_at": now})
	return res.RowsAffected > 0, res.Error
}

// Requeue flips a sent-but-unacknowledged command back to pending. Operator
// action; the heartbeat path never re-sends on its own.
func (r *CommandRepository) Requeue(id string) (bool, error) {
	res := r.db.Model(&models.Command{}).
		Where("id = ? AND status = ?", id, models.CommandSent).
		Updates(map[string]any{"status": models.CommandPending, "sent_at": nil})
	return res.RowsAffected > 0, res.Error
}

func (r *CommandRepository) DeleteByDevice(deviceID string) error {
	return r.db.Where("device_id = ?", deviceID).Delete(&models.Command{}).Error
}
