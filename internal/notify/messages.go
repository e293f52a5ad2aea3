package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freelancedao/escrow-service/internal/model"
)

func build(to uuid.UUID, kind model.ActorKind, typ model.NotificationType, title, message string, data model.Meta) model.Notification {
	return model.Notification{
		ID:            uuid.New(),
		RecipientID:   to,
		RecipientKind: kind,
		Type:          typ,
		Title:         title,
		Message:       message,
		Data:          data,
		CreatedAt:     time.Now().UTC(),
	}
}

func ProposalAccepted(p model.Proposal, job model.Job) model.Notification {
	return build(p.FreelancerID, model.ActorFreelancer, model.NotificationProposalAccepted,
		"Proposal Accepted!",
		fmt.Sprintf("Congratulations! Your proposal for %q was accepted. Please sign the contract to start working.", job.Title),
		model.Meta{"job_id": job.ID.String(), "proposal_id": p.ID.String()},
	)
}

// ProposalRejected is sent for a direct rejection; cascaded marks rejections
// caused by another proposal being accepted.
func ProposalRejected(p model.Proposal, job model.Job, cascaded bool) model.Notification {
	message := fmt.Sprintf("Your proposal for %q was not selected. Keep applying to other opportunities!", job.Title)
	if cascaded {
		message = fmt.Sprintf("Your proposal for %q was not selected. The client has chosen another freelancer.", job.Title)
	}
	return build(p.FreelancerID, model.ActorFreelancer, model.NotificationProposalRejected,
		"Proposal Not Selected", message,
		model.Meta{"job_id": job.ID.String(), "proposal_id": p.ID.String()},
	)
}

func ContractFunded(c model.Contract) model.Notification {
	return build(c.FreelancerID, model.ActorFreelancer, model.NotificationContractSigned,
		"Contract Signed & Funded",
		fmt.Sprintf("The client has signed the contract and funded the escrow (%.2f %s) for %q. Sign the contract to start working.",
			c.Escrow.Amount, c.Escrow.Currency, c.Title),
		model.Meta{"contract_id": c.ID.String(), "job_id": c.JobID.String()},
	)
}

// ContractActive goes to both parties once the freelancer signs.
func ContractActive(c model.Contract) []model.Notification {
	data := model.Meta{"contract_id": c.ID.String(), "job_id": c.JobID.String()}
	message := fmt.Sprintf("The contract for %q is now active.", c.Title)
	return []model.Notification{
		build(c.ClientID, model.ActorClient, model.NotificationContractActive, "Contract Active", message, data),
		build(c.FreelancerID, model.ActorFreelancer, model.NotificationContractActive, "Contract Active", message, data),
	}
}

func MilestoneCompleted(job model.Job, index int) model.Notification {
	return build(job.ClientID, model.ActorClient, model.NotificationMilestoneCompleted,
		"Milestone Completed",
		fmt.Sprintf("Milestone %q has been marked as completed for %q. Please review and approve.",
			job.Milestones[index].Name, job.Title),
		model.Meta{"job_id": job.ID.String(), "milestone_index": index},
	)
}

func RevisionRequested(job model.Job) model.Notification {
	freelancer := uuid.Nil
	if job.FreelancerID != nil {
		freelancer = *job.FreelancerID
	}
	return build(freelancer, model.ActorFreelancer, model.NotificationRevisionRequested,
		"Revisions Requested",
		fmt.Sprintf("The client has requested revisions for %q. Please review the feedback and make necessary changes.", job.Title),
		model.Meta{"job_id": job.ID.String()},
	)
}

func PaymentReleased(c model.Contract) model.Notification {
	return build(c.FreelancerID, model.ActorFreelancer, model.NotificationPaymentReceived,
		"Payment Received",
		fmt.Sprintf("You received %.2f %s for %q.", c.Escrow.Amount, c.Escrow.Currency, c.Title),
		model.Meta{"contract_id": c.ID.String(), "job_id": c.JobID.String()},
	)
}

// DisputeCreated goes to the party that did not open the dispute.
func DisputeCreated(c model.Contract, openedBy uuid.UUID) model.Notification {
	to, kind := c.FreelancerID, model.ActorFreelancer
	if openedBy == c.FreelancerID {
		to, kind = c.ClientID, model.ActorClient
	}
	return build(to, kind, model.NotificationDisputeCreated,
		"Dispute Opened",
		fmt.Sprintf("A dispute was opened on the contract for %q.", c.Title),
		model.Meta{"contract_id": c.ID.String(), "job_id": c.JobID.String()},
	)
}
