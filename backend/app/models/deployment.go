package models

import "time"

// Delivery methods.
const (
	MethodBoot  = "boot"  // PXE network boot
	MethodMedia = "media" // removable media prepared out of band
	MethodPush  = "push"  // direct push through the device agent
)

// Deployment statuses.
const (
	DeployPending    = "pending"
	DeployInProgress = "in_progress"
	DeployCompleted  = "completed"
	DeployFailed     = "failed"
	DeployCancelled  = "cancelled"
)

// Deployment fans one completed image out to a set of devices.
type Deployment struct {
	ID               string `gorm:"primaryKey;size:64"`
	ImageID          string `gorm:"size:64;index;not null"`
	Method           string `gorm:"size:16;not null"`
	Status           string `gorm:"size:32;index"`
	Progress         int    // aggregate over targets, never decreases
	FailureTolerance int    // number of failed devices tolerated before the whole deployment fails
	Actor            string `gorm:"size:255"`
	Error            string `gorm:"size:1024"`
	StartedAt        *time.Time
	FinishedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Targets []DeploymentTarget `gorm:"foreignKey:DeploymentID"`
}

func DeploymentTerminal(status string) bool {
	switch status {
	case DeployCompleted, DeployFailed, DeployCancelled:
		return true
	}
	return false
}

// DeploymentTarget is the per-device outcome row. PriorImageID captures the
// device's current image at creation time so a completed deployment can be
// rolled back.
type DeploymentTarget struct {
	ID           uint   `gorm:"primaryKey"`
	DeploymentID string `gorm:"size:64;index:idx_target_dep_dev,unique;not null"`
	DeviceID     string `gorm:"size:64;index:idx_target_dep_dev,unique;not null"`
	Status       string `gorm:"size:32"`
	Progress     int
	Error        string `gorm:"size:1024"`
	PriorImageID string `gorm:"size:64"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeviceReservation enforces "at most one non-terminal deployment per
// device" as a store constraint: the unique index on DeviceID makes the
// losing side of two overlapping Deploy calls fail its insert.
type DeviceReservation struct {
	DeviceID     string `gorm:"primaryKey;size:64"`
	DeploymentID string `gorm:"size:64;index;not null"`
	CreatedAt    time.Time
}
