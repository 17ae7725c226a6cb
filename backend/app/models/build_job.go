package models

import "time"

// Build job statuses. building is the only non-terminal state.
const (
	BuildRunning   = "building"
	BuildCompleted = "completed"
	BuildFailed    = "failed"
	BuildCancelled = "cancelled"
)

// BuildJob tracks one image build, 1:1 with its Image. Progress only ever
// moves forward; the executing goroutine re-reads Status before each persist
// so a cancel stops further emission.
type BuildJob struct {
	ID         string `gorm:"primaryKey;size:64"`
	ImageID    string `gorm:"uniqueIndex;size:64;not null"`
	Spec       string `gorm:"type:longtext"` // JSON copy of the submitted spec
	Status     string `gorm:"size:32;index"`
	Progress   int
	Stage      string `gorm:"size:128"`
	Error      string `gorm:"size:1024"`
	StartedAt  time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (j *BuildJob) Terminal() bool { return j.Status != BuildRunning }
