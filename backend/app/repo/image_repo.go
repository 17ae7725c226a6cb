package repo

import (
	"time"

	"vdi-fleet/backend/app/models"

	"gorm.io/gorm"
)

type ImageRepository struct{ db *gorm.DB }

func NewImageRepository(db *gorm.DB) *ImageRepository { return &ImageRepository{db: db} }

func (r *ImageRepository) Create(tx *gorm.DB, img *models.Image) error {
	if tx == nil {
		tx = r.db
	}
	return tx.Create(img).Error
}

func (r *ImageRepository) FindByID(id string) (*models.Image, error) {
	var img models.Image
	if err := r.db.Where("id = ?", id).First(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *ImageRepository) List(status string) ([]models.Image, error) {
	q := r.db.Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var images []models.Image
	if err := q.Find(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

// Complete seals the image; it is immutable afterwards.
func (r *ImageRepository) Complete(id, filePath string, sizeBytes int64, checksum string) error {
	return r.db.Model(&models.Image{}).Where("id = ? AND status = ?", id, models.ImageBuilding).
		Updates(map[string]any{
			"status":     models.ImageCompleted,
			"file_path":  filePath,
			"size_bytes": sizeBytes,
			"checksum":   checksum,
			"updated_at": time.Now(),
		}).Error
}

func (r *ImageRepository) Fail(id string) error {
	return r.db.Model(&models.Image{}).Where("id = ? AND status = ?", id, models.ImageBuilding).
		Update("status", models.ImageFailed).Error
}

func (r *ImageRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Image{}).Error
}

// ReferenceCount counts deployments that point at the image as their target
// or recorded it as a target's prior image, plus devices holding it as
// current or previous. Any reference blocks deletion.
func (r *ImageRepository) ReferenceCount(id string) (int64, error) {
	var total, n int64
	if err := r.db.Model(&models.Deployment{}).Where("image_id = ?", id).Count(&n).Error; err != nil {
		return 0, err
	}
	total += n
	if err := r.db.Model(&models.DeploymentTarget{}).Where("prior_image_id = ?", id).Count(&n).Error; err != nil {
		return 0, err
	}
	total += n
	if err := r.db.Model(&models.Device{}).
		Where("current_image_id = ? OR previous_image_id = ?", id, id).Count(&n).Error; err != nil {
		return 0, err
	}
	total += n
	return total, nil
}
