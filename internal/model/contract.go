package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusPendingClientSignature     ContractStatus = "pending_client_signature"
	ContractStatusPendingEscrow              ContractStatus = "pending_escrow"
	ContractStatusPendingFreelancerSignature ContractStatus = "pending_freelancer_signature"
	ContractStatusActive                     ContractStatus = "active"
	ContractStatusCompleted                  ContractStatus = "completed"
	ContractStatusDisputed                   ContractStatus = "disputed"
)

const (
	DefaultReleaseConditions = "Payment will be released upon completion and approval of each milestone."
	DefaultPenaltyClause     = "Standard penalty clauses apply for breach of contract terms."
)

type Signature struct {
	Signed    bool       `json:"signed"`
	SignedAt  *time.Time `json:"signed_at,omitempty"`
	Signature string     `json:"signature,omitempty" gorm:"type:text"`
}

type Escrow struct {
	Funded   bool       `json:"funded"`
	FundedAt *time.Time `json:"funded_at,omitempty"`
	Amount   float64    `json:"amount"`
	Currency string     `json:"currency" gorm:"type:varchar(8)"`
}

type PaymentTerms struct {
	EscrowAmount      float64 `json:"escrow_amount"`
	ReleaseConditions string  `json:"release_conditions" gorm:"type:text"`
	PenaltyClause     string  `json:"penalty_clause" gorm:"type:text"`
}

type Contract struct {
	ID                  uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	JobID               uuid.UUID      `json:"job_id" gorm:"type:uuid;not null;index"`
	ProposalID          uuid.UUID      `json:"proposal_id" gorm:"type:uuid;not null"`
	ClientID            uuid.UUID      `json:"client_id" gorm:"type:uuid;not null;index"`
	FreelancerID        uuid.UUID      `json:"freelancer_id" gorm:"type:uuid;not null;index"`
	Title               string         `json:"title" gorm:"type:varchar(200)"`
	Description         string         `json:"description" gorm:"type:text"`
	Budget              Budget         `json:"budget" gorm:"embedded;embeddedPrefix:budget_"`
	Milestones          Milestones     `json:"milestones"`
	ClientSignature     Signature      `json:"client_signature" gorm:"embedded;embeddedPrefix:client_sig_"`
	FreelancerSignature Signature      `json:"freelancer_signature" gorm:"embedded;embeddedPrefix:freelancer_sig_"`
	Escrow              Escrow         `json:"escrow" gorm:"embedded;embeddedPrefix:escrow_"`
	PaymentTerms        PaymentTerms   `json:"payment_terms" gorm:"embedded;embeddedPrefix:terms_"`
	Status              ContractStatus `json:"status" gorm:"type:varchar(40);not null;index"`
	StartDate           *time.Time     `json:"start_date,omitempty"`
	Version             int64          `json:"version" gorm:"not null"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

func (Contract) TableName() string {
	return "contracts"
}

func (c Contract) IsParty(actorID uuid.UUID) bool {
	return c.ClientID == actorID || c.FreelancerID == actorID
}

// ContractDocument is the printable view of a contract.
type ContractDocument struct {
	Contract    Contract
	GeneratedAt time.Time
}
