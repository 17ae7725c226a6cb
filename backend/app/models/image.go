package models

import "time"

// Image build statuses. An image is immutable once completed.
const (
	ImageBuilding  = "building"
	ImageCompleted = "completed"
	ImageFailed    = "failed"
)

type Image struct {
	ID          string `gorm:"primaryKey;size:64"`
	Name        string `gorm:"size:255;not null"`
	Version     string `gorm:"size:64;not null"`
	Description string `gorm:"size:512"`
	FilePath    string `gorm:"size:512"`
	SizeBytes   int64
	Checksum    string `gorm:"size:64"` // sha256 hex, the delivery integrity contract
	Status      string `gorm:"size:32;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
