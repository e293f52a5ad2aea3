package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
)

type Budget struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency" gorm:"type:varchar(8)"`
}

type Job struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Title        string     `json:"title" gorm:"type:varchar(200);not null"`
	Status       JobStatus  `json:"status" gorm:"type:varchar(32);not null;index"`
	Budget       Budget     `json:"budget" gorm:"embedded;embeddedPrefix:budget_"`
	Milestones   Milestones `json:"milestones"`
	Progress     int        `json:"progress" gorm:"not null"`
	ClientID     uuid.UUID  `json:"client_id" gorm:"type:uuid;not null;index"`
	FreelancerID *uuid.UUID `json:"freelancer_id,omitempty" gorm:"type:uuid;index"`
	Version      int64      `json:"version" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

func (j Job) IsAssignedTo(freelancerID uuid.UUID) bool {
	return j.FreelancerID != nil && *j.FreelancerID == freelancerID
}
