package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/events"
	"github.com/freelancedao/escrow-service/internal/lifecycle"
	"github.com/freelancedao/escrow-service/internal/metrics"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/notify"
	"github.com/freelancedao/escrow-service/internal/repository"
)

type ContractAction string

const (
	ActionSign             ContractAction = "sign"
	ActionEscrow           ContractAction = "escrow"
	ActionUpdateMilestones ContractAction = "update_milestones"
	ActionDispute          ContractAction = "dispute"
)

type PDFGenerator interface {
	Generate(doc model.ContractDocument) ([]byte, error)
}

type ContractService struct {
	contracts *repository.ContractRepository
	proposals *repository.ProposalRepository
	jobs      *repository.JobRepository
	payments  *repository.PaymentRepository
	sink      notify.Sink
	bus       EventBus
	pdf       PDFGenerator
	log       zerolog.Logger
	now       func() time.Time
}

type ApplyInput struct {
	Action           ContractAction
	Signature        string
	Milestones       model.Milestones
	PaymentReference string
}

type ListContractsInput struct {
	Status []model.ContractStatus
	Page   int
	Limit  int
}

type ContractDocumentResult struct {
	FileName string
	Content  []byte
}

func NewContractService(
	contracts *repository.ContractRepository,
	proposals *repository.ProposalRepository,
	jobs *repository.JobRepository,
	payments *repository.PaymentRepository,
	sink notify.Sink,
	bus EventBus,
	pdf PDFGenerator,
	log zerolog.Logger,
) *ContractService {
	return &ContractService{
		contracts: contracts,
		proposals: proposals,
		jobs:      jobs,
		payments:  payments,
		sink:      sink,
		bus:       bus,
		pdf:       pdf,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens the contract for an accepted proposal. It is idempotent: when
// the proposal already has a contract that contract is returned with
// created=false.
func (s *ContractService) Create(ctx context.Context, proposalID uuid.UUID, actor model.Actor) (*model.Contract, bool, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, false, storeErr(err, "proposal")
	}
	job, err := s.jobs.GetByID(ctx, proposal.JobID)
	if err != nil {
		return nil, false, storeErr(err, "job")
	}
	if !actor.IsClient() || job.ClientID != actor.ID {
		return nil, false, fmt.Errorf("%w: only the job owner can create a contract", ErrPermissionDenied)
	}
	if proposal.Status != model.ProposalStatusAccepted {
		return nil, false, fmt.Errorf("%w: proposal must be accepted before creating a contract", ErrInvalidState)
	}

	existing, err := s.contracts.GetByProposalID(ctx, proposal.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	contract := lifecycle.NewContract(*proposal, *job)
	if err := s.contracts.Create(ctx, &contract); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent create; return the winner.
			existing, getErr := s.contracts.GetByProposalID(ctx, proposal.ID)
			if getErr != nil {
				return nil, false, storeErr(getErr, "contract")
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("proposal_id", proposal.ID.String()).
		Msg("contract created")
	publish(s.bus, &contract, "created")
	return &contract, true, nil
}

func (s *ContractService) Get(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "contract")
	}
	if !actor.IsAdmin() && !contract.IsParty(actor.ID) {
		return nil, fmt.Errorf("%w: not a party to this contract", ErrPermissionDenied)
	}
	return contract, nil
}

func (s *ContractService) List(ctx context.Context, input ListContractsInput, actor model.Actor) ([]model.Contract, int64, error) {
	filter := repository.ContractFilter{
		Statuses: input.Status,
		Page:     input.Page,
		Limit:    input.Limit,
	}
	if !actor.IsAdmin() {
		id := actor.ID
		filter.PartyID = &id
	}
	return s.contracts.List(ctx, filter)
}

func (s *ContractService) Document(ctx context.Context, id uuid.UUID, actor model.Actor) (*ContractDocumentResult, error) {
	contract, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(model.ContractDocument{Contract: *contract, GeneratedAt: s.now()})
	if err != nil {
		return nil, err
	}
	return &ContractDocumentResult{
		FileName: fmt.Sprintf("contract-%s.pdf", contract.ID),
		Content:  content,
	}, nil
}

// Watch subscribes to changes of a contract the actor may see.
func (s *ContractService) Watch(ctx context.Context, id uuid.UUID, actor model.Actor) (<-chan events.Event, func(), error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.bus.Subscribe(events.ContractTopic(id))
	return ch, cancel, nil
}

// Apply runs one lifecycle action on a contract on behalf of one of its parties.
func (s *ContractService) Apply(ctx context.Context, id uuid.UUID, input ApplyInput, actor model.Actor) (contract *model.Contract, err error) {
	defer func() { metrics.RecordContractTransition(string(input.Action), err) }()

	contract, err = s.contracts.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "contract")
	}

	var party lifecycle.Party
	switch {
	case actor.IsClient() && contract.ClientID == actor.ID:
		party = lifecycle.PartyClient
	case actor.IsFreelancer() && contract.FreelancerID == actor.ID:
		party = lifecycle.PartyFreelancer
	default:
		return nil, fmt.Errorf("%w: not a party to this contract", ErrPermissionDenied)
	}

	log := s.log.With().
		Str("contract_id", contract.ID.String()).
		Str("action", string(input.Action)).
		Str("party", string(party)).
		Logger()

	now := s.now()
	var outbox []model.Notification

	switch input.Action {
	case ActionUpdateMilestones:
		if party != lifecycle.PartyClient {
			return nil, fmt.Errorf("%w: only the client can update milestones", ErrPermissionDenied)
		}
		if err := lifecycle.ReplaceMilestones(contract, input.Milestones); err != nil {
			return nil, err
		}
		if err := s.contracts.Update(ctx, contract); err != nil {
			return nil, storeErr(err, "contract")
		}

	case ActionSign:
		activated, err := lifecycle.Sign(contract, party, input.Signature, now)
		if err != nil {
			return nil, err
		}
		if activated {
			job, err := s.jobs.GetByID(ctx, contract.JobID)
			if err != nil {
				return nil, storeErr(err, "job")
			}
			assigned := model.AssignFreelancer(contract.FreelancerID).Apply(*job)
			if err := s.contracts.SaveWithJob(ctx, contract, &assigned); err != nil {
				return nil, storeErr(err, "contract")
			}
			outbox = append(outbox, notify.ContractActive(*contract)...)
		} else if err := s.contracts.Update(ctx, contract); err != nil {
			return nil, storeErr(err, "contract")
		}

	case ActionEscrow:
		if party != lifecycle.PartyClient {
			return nil, fmt.Errorf("%w: only the client can fund escrow", ErrPermissionDenied)
		}
		if err := lifecycle.FundEscrow(contract, now); err != nil {
			return nil, err
		}
		if input.PaymentReference != "" {
			if err := s.checkEscrowPayment(ctx, contract, input.PaymentReference); err != nil {
				return nil, err
			}
		}
		if err := s.contracts.Update(ctx, contract); err != nil {
			return nil, storeErr(err, "contract")
		}
		outbox = append(outbox, notify.ContractFunded(*contract))

	case ActionDispute:
		if err := lifecycle.Dispute(contract); err != nil {
			return nil, err
		}
		if err := s.contracts.Update(ctx, contract); err != nil {
			return nil, storeErr(err, "contract")
		}
		outbox = append(outbox, notify.DisputeCreated(*contract, actor.ID))

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, input.Action)
	}

	deliver(ctx, s.sink, log, outbox...)
	publish(s.bus, contract, string(input.Action))
	log.Info().Str("status", string(contract.Status)).Msg("contract updated")
	return contract, nil
}

func (s *ContractService) checkEscrowPayment(ctx context.Context, contract *model.Contract, reference string) error {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: payment %s has not been verified", ErrInvalidState, reference)
		}
		return err
	}
	if payment.Status != model.PaymentStatusSuccess || payment.Purpose != model.PaymentPurposeEscrowDeposit {
		return fmt.Errorf("%w: payment %s is not a successful escrow deposit", ErrInvalidState, reference)
	}
	if payment.ContractID != nil && *payment.ContractID != contract.ID {
		return fmt.Errorf("%w: payment %s belongs to another contract", ErrInvalidState, reference)
	}

	covered := payment.Amount
	if !strings.EqualFold(payment.Currency, contract.Escrow.Currency) {
		rate, ok := metaFloat(payment.Meta, "exchange_rate")
		if !ok || rate <= 0 {
			return fmt.Errorf("%w: payment %s has no exchange rate to %s", ErrInvalidState, reference, contract.Escrow.Currency)
		}
		covered = payment.Amount / rate
	}
	if covered+escrowAmountTolerance < contract.PaymentTerms.EscrowAmount {
		return fmt.Errorf("%w: payment %s covers %.2f of %.2f %s", ErrInvalidState, reference,
			covered, contract.PaymentTerms.EscrowAmount, contract.Escrow.Currency)
	}
	return nil
}

func metaFloat(meta model.Meta, key string) (float64, bool) {
	switch v := meta[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
