package models

import "time"

// Device lifecycle statuses.
const (
	DeviceProvisioning = "provisioning"
	DeviceOnline       = "online"
	DeviceOffline      = "offline"
	DeviceError        = "error"
)

// Device is a registered thin client. ID is the MAC with separators
// stripped; MACAddress keeps the normalized aa:bb:cc:dd:ee:ff form and is
// immutable after registration.
type Device struct {
	ID              string `gorm:"primaryKey;size:64"`
	MACAddress      string `gorm:"uniqueIndex;size:64;not null"`
	IPAddress       string `gorm:"size:64"`
	Hostname        string `gorm:"size:255"`
	Location        string `gorm:"size:255;index"`
	AssignedUser    string `gorm:"size:255"`
	Status          string `gorm:"size:32;index"`
	HardwareProfile string `gorm:"type:longtext"` // JSON, as reported by the agent
	CurrentImageID  string `gorm:"size:64"`
	PreviousImageID string `gorm:"size:64"`
	LastContact     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
