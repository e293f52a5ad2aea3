package model

import (
	"time"

	"github.com/google/uuid"
)

type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

type Proposal struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	JobID        uuid.UUID      `json:"job_id" gorm:"type:uuid;not null;index"`
	FreelancerID uuid.UUID      `json:"freelancer_id" gorm:"type:uuid;not null;index"`
	Description  string         `json:"description" gorm:"type:text"`
	Budget       Budget         `json:"budget" gorm:"embedded;embeddedPrefix:budget_"`
	Milestones   Milestones     `json:"milestones"`
	Status       ProposalStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	SubmittedAt  time.Time      `json:"submitted_at"`
	RespondedAt  *time.Time     `json:"responded_at,omitempty"`
	Version      int64          `json:"version" gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Proposal) TableName() string {
	return "proposals"
}
