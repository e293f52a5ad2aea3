package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	PaymentMethodGateway PaymentMethod = "gateway"
	PaymentMethodOnChain PaymentMethod = "on_chain"
)

type PaymentPurpose string

const (
	PaymentPurposeJobPostFee       PaymentPurpose = "job_post_fee"
	PaymentPurposeFeaturedFee      PaymentPurpose = "featured_fee"
	PaymentPurposeEscrowDeposit    PaymentPurpose = "escrow_deposit"
	PaymentPurposeMilestoneRelease PaymentPurpose = "milestone_release"
)

func ParsePaymentPurpose(raw string) (PaymentPurpose, bool) {
	switch PaymentPurpose(raw) {
	case PaymentPurposeJobPostFee, PaymentPurposeFeaturedFee, PaymentPurposeEscrowDeposit, PaymentPurposeMilestoneRelease:
		return PaymentPurpose(raw), true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

type Payment struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	PayerID    uuid.UUID      `json:"payer_id" gorm:"type:uuid;not null;index"`
	PayerKind  ActorKind      `json:"payer_kind" gorm:"type:varchar(16);not null"`
	Method     PaymentMethod  `json:"method" gorm:"type:varchar(16);not null"`
	Purpose    PaymentPurpose `json:"purpose" gorm:"type:varchar(32);not null"`
	Amount     float64        `json:"amount" gorm:"not null"`
	Currency   string         `json:"currency" gorm:"type:varchar(8);not null"`
	Status     PaymentStatus  `json:"status" gorm:"type:varchar(16);not null;index"`
	Reference  string         `json:"reference" gorm:"type:varchar(128);not null"`
	Channel    string         `json:"channel,omitempty" gorm:"type:varchar(32)"`
	JobID      *uuid.UUID     `json:"job_id,omitempty" gorm:"type:uuid"`
	ContractID *uuid.UUID     `json:"contract_id,omitempty" gorm:"type:uuid;index"`
	Meta       Meta           `json:"meta,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}
