package repo

import (
	"time"

	"vdi-fleet/backend/app/models"

	"gorm.io/gorm"
)

type DeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) *DeviceRepository { return &DeviceRepository{db: db} }

func (r *DeviceRepository) Create(d *models.Device) error { return r.db.Create(d).Error }

func (r *DeviceRepository) FindByID(id string) (*models.Device, error) {
	var d models.Device
	if err := r.db.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeviceRepository) FindByMAC(mac string) (*models.Device, error) {
	var d models.Device
	if err := r.db.Where("mac_address = ?", mac).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

type DeviceFilter struct {
	Status   string
	Location string
	Limit    int
	Offset   int
}

func (r *DeviceRepository) List(f DeviceFilter) ([]models.Device, error) {
	q := r.db.Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Location != "" {
		q = q.Where("location = ?", f.Location)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var devices []models.Device
	if err := q.Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// FindByIDs returns the registered subset of ids, keyed by id.
func (r *DeviceRepository) FindByIDs(ids []string) (map[string]models.Device, error) {
	var devices []models.Device
	if err := r.db.Where("id IN ?", ids).Find(&devices).Error; err != nil {
		return nil, err
	}
	m := make(map[string]models.Device, len(devices))
	for _, d := range devices {
		m[d.ID] = d
	}
	return m, nil
}

func (r *DeviceRepository) Updates(id string, fields map[string]any) (int64, error) {
	res := r.db.Model(&models.Device{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *DeviceRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Device{}).Error
}

// RecordContact is a last-writer-wins upsert of liveness fields; status and
// timestamp move together.
func (r *DeviceRepository) RecordContact(id, profile string, at time.Time) (int64, error) {
	fields := map[string]any{
		"status":       models.DeviceOnline,
		"last_contact": at,
	}
	if profile != "" {
		fields["hardware_profile"] = profile
	}
	res := r.db.Model(&models.Device{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// ListStale returns devices whose last contact predates the cutoff, or that
// never reported at all.
func (r *DeviceRepository) ListStale(cutoff time.Time) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.Where("last_contact IS NULL OR last_contact < ?", cutoff).
		Order("last_contact ASC").Find(&devices).Error
	return devices, err
}

// MarkOffline flips online devices unseen since the cutoff. Returns the
// number of devices swept.
func (r *DeviceRepository) MarkOffline(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Device{}).
		Where("status = ? AND (last_contact IS NULL OR last_contact < ?)", models.DeviceOnline, cutoff).
		Update("status", models.DeviceOffline)
	return res.RowsAffected, res.Error
}

// MarkError flags a device whose deployment ended in terminal failure.
func (r *DeviceRepository) MarkError(id string) error {
	return r.db.Model(&models.Device{}).Where("id = ?", id).
		Update("status", models.DeviceError).Error
}

// ListSeenSince returns ids of devices whose last contact is within the
// cutoff, the store-side view of fleet liveness.
func (r *DeviceRepository) ListSeenSince(cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.Model(&models.Device{}).
		Where("last_contact IS NOT NULL AND last_contact >= ?", cutoff).
		Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// ShiftImage records a successful deployment on the device: the current
// image becomes the previous one.
func (r *DeviceRepository) ShiftImage(id, newImageID string) error {
	return r.db.Model(&models.Device{}).Where("id = ?", id).Updates(map[string]any{
		"previous_image_id": gorm.Expr("current_image_id"),
		"current_image_id":  newImageID,
	}).Error
}
