package models

import "time"

// Command statuses. pending→sent happens only inside a heartbeat poll;
// sent→completed/failed only through an explicit result report.
const (
	CommandPending   = "pending"
	CommandSent      = "sent"
	CommandCompleted = "completed"
	CommandFailed    = "failed"
)

// Command is one queued instruction for a device agent. Delivery is FIFO
// per device, pull-based. Seq is the queue position: an auto-increment
// column, because created_at ties at timestamp granularity and the uuid id
// carries no order.
type Command struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;size:64"`
	DeviceID    string `gorm:"size:64;index"`
	Type        string `gorm:"size:64;not null"`
	Payload     string `gorm:"type:longtext"` // JSON argument
	Status      string `gorm:"size:32;index"`
	Actor       string `gorm:"size:255"`
	Result      string `gorm:"type:longtext"` // JSON result reported by the agent
	SentAt      *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Command) Terminal() bool {
	return c.Status == CommandCompleted || c.Status == CommandFailed
}
