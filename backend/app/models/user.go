package models

import "time"

// User backs the operator token gate. Role "admin" may mutate fleet state.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Role         string `gorm:"size:32;not null;default:operator"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
