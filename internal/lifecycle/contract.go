// Package lifecycle holds the contract state machine and milestone rules.
// Everything here is pure: functions mutate the record they are given and
// never touch storage, so the caller decides how the result is persisted.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/freelancedao/escrow-service/internal/model"
)

type Party string

const (
	PartyClient     Party = "client"
	PartyFreelancer Party = "freelancer"
)

var allowedTransitions = map[model.ContractStatus][]model.ContractStatus{
	model.ContractStatusPendingClientSignature:     {model.ContractStatusPendingEscrow},
	model.ContractStatusPendingEscrow:              {model.ContractStatusPendingFreelancerSignature},
	model.ContractStatusPendingFreelancerSignature: {model.ContractStatusActive},
	model.ContractStatusActive:                     {model.ContractStatusCompleted, model.ContractStatusDisputed},
}

// CanTransition reports whether a contract may move from one status to another.
func CanTransition(from, to model.ContractStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transition(c *model.Contract, to model.ContractStatus) error {
	if !CanTransition(c.Status, to) {
		return invalidStatef("contract cannot move from %s to %s", c.Status, to)
	}
	c.Status = to
	return nil
}

// NewContract seeds a contract from an accepted proposal and its job.
func NewContract(p model.Proposal, job model.Job) model.Contract {
	milestones := make(model.Milestones, 0, len(p.Milestones))
	for _, ms := range p.Milestones {
		milestones = append(milestones, model.Milestone{
			Name:        ms.Name,
			Description: fmt.Sprintf("Milestone: %s", ms.Name),
			Amount:      ms.Amount,
			Duration:    ms.Duration,
		})
	}

	return model.Contract{
		JobID:        job.ID,
		ProposalID:   p.ID,
		ClientID:     job.ClientID,
		FreelancerID: p.FreelancerID,
		Title:        job.Title,
		Description:  p.Description,
		Budget:       p.Budget,
		Milestones:   milestones,
		Escrow: model.Escrow{
			Amount:   p.Budget.Amount,
			Currency: p.Budget.Currency,
		},
		PaymentTerms: model.PaymentTerms{
			EscrowAmount:      p.Budget.Amount,
			ReleaseConditions: model.DefaultReleaseConditions,
			PenaltyClause:     model.DefaultPenaltyClause,
		},
		Status: model.ContractStatusPendingClientSignature,
	}
}

// Sign records a party's signature. It reports whether the signature
// activated the contract.
func Sign(c *model.Contract, party Party, signature string, now time.Time) (bool, error) {
	switch party {
	case PartyClient:
		if c.ClientSignature.Signed {
			return false, conflictf("contract already signed by client")
		}
		c.ClientSignature = newSignature("Client", signature, now)
		if c.Status == model.ContractStatusPendingClientSignature {
			if err := transition(c, model.ContractStatusPendingEscrow); err != nil {
				return false, err
			}
		}
		return false, nil

	case PartyFreelancer:
		if c.FreelancerSignature.Signed {
			return false, conflictf("contract already signed by freelancer")
		}
		// A freelancer never starts work on an unfunded contract.
		if !c.ClientSignature.Signed || !c.Escrow.Funded {
			return false, invalidStatef("client must sign and escrow funds before freelancer can sign")
		}
		c.FreelancerSignature = newSignature("Freelancer", signature, now)
		if err := transition(c, model.ContractStatusActive); err != nil {
			return false, err
		}
		start := now
		c.StartDate = &start
		return true, nil

	default:
		return false, invalidInputf("unknown party %q", party)
	}
}

func newSignature(label, signature string, now time.Time) model.Signature {
	if signature == "" {
		signature = fmt.Sprintf("%s signature - %s", label, now.UTC().Format(time.RFC3339))
	}
	at := now
	return model.Signature{Signed: true, SignedAt: &at, Signature: signature}
}

// FundEscrow marks the escrow as funded. Funding is one-way.
func FundEscrow(c *model.Contract, now time.Time) error {
	if c.Escrow.Funded {
		return conflictf("funds already escrowed")
	}
	if !c.ClientSignature.Signed {
		return invalidStatef("client must sign contract before escrowing funds")
	}
	if err := transition(c, model.ContractStatusPendingFreelancerSignature); err != nil {
		return err
	}
	at := now
	c.Escrow.Funded = true
	c.Escrow.FundedAt = &at
	return nil
}

// ReplaceMilestones swaps the milestone list while the contract is still a draft.
func ReplaceMilestones(c *model.Contract, milestones model.Milestones) error {
	if c.Status != model.ContractStatusPendingClientSignature || c.ClientSignature.Signed {
		return conflictf("cannot update milestones after contract is signed")
	}
	if err := ValidateMilestones(milestones); err != nil {
		return err
	}
	c.Milestones = milestones.Clone()
	return nil
}

func Dispute(c *model.Contract) error {
	if c.Status != model.ContractStatusActive {
		return invalidStatef("only active contracts can be disputed (current status: %s)", c.Status)
	}
	return transition(c, model.ContractStatusDisputed)
}

func Complete(c *model.Contract) error {
	if c.Status == model.ContractStatusCompleted {
		return conflictf("contract already completed")
	}
	if c.Status != model.ContractStatusActive {
		return invalidStatef("only active contracts can be completed (current status: %s)", c.Status)
	}
	return transition(c, model.ContractStatusCompleted)
}
