package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationProposalAccepted   NotificationType = "proposal_accepted"
	NotificationProposalRejected   NotificationType = "proposal_rejected"
	NotificationContractSigned     NotificationType = "contract_signed"
	NotificationContractActive     NotificationType = "contract_active"
	NotificationMilestoneCompleted NotificationType = "milestone_completed"
	NotificationRevisionRequested  NotificationType = "revision_requested"
	NotificationPaymentReceived    NotificationType = "payment_received"
	NotificationDisputeCreated     NotificationType = "dispute_created"
)

type Notification struct {
	ID            uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID        `json:"recipient_id" gorm:"type:uuid;not null;index"`
	RecipientKind ActorKind        `json:"recipient_kind" gorm:"type:varchar(16);not null"`
	Type          NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	Title         string           `json:"title" gorm:"type:varchar(200);not null"`
	Message       string           `json:"message" gorm:"type:text;not null"`
	Data          Meta             `json:"data,omitempty"`
	Read          bool             `json:"read" gorm:"not null;default:false"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
