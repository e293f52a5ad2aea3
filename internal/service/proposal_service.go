package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/freelancedao/escrow-service/internal/metrics"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/notify"
	"github.com/freelancedao/escrow-service/internal/repository"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

type ProposalService struct {
	proposals *repository.ProposalRepository
	jobs      *repository.JobRepository
	sink      notify.Sink
	log       zerolog.Logger
	now       func() time.Time
}

type ResolveResult struct {
	Proposal *model.Proposal
	Job      *model.Job
	// Rejected lists proposals rejected because another one was accepted.
	Rejected []model.Proposal
}

func NewProposalService(
	proposals *repository.ProposalRepository,
	jobs *repository.JobRepository,
	sink notify.Sink,
	log zerolog.Logger,
) *ProposalService {
	return &ProposalService{
		proposals: proposals,
		jobs:      jobs,
		sink:      sink,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProposalService) Resolve(ctx context.Context, proposalID uuid.UUID, decision Decision, actor model.Actor) (result *ResolveResult, err error) {
	defer func() { metrics.RecordProposalResolution(string(decision), err) }()

	if decision != DecisionAccept && decision != DecisionReject {
		return nil, fmt.Errorf("%w: action must be accept or reject", ErrInvalidInput)
	}

	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, storeErr(err, "proposal")
	}
	job, err := s.jobs.GetByID(ctx, proposal.JobID)
	if err != nil {
		return nil, storeErr(err, "job")
	}

	if !actor.IsClient() || job.ClientID != actor.ID {
		return nil, fmt.Errorf("%w: only the job owner can resolve proposals", ErrPermissionDenied)
	}
	if proposal.Status != model.ProposalStatusPending {
		return nil, fmt.Errorf("%w: proposal already %s", ErrConflict, proposal.Status)
	}

	log := s.log.With().
		Str("proposal_id", proposal.ID.String()).
		Str("job_id", job.ID.String()).
		Str("action", string(decision)).
		Logger()

	now := s.now()
	if decision == DecisionReject {
		rejected, err := s.proposals.Reject(ctx, proposal.ID, now)
		if err != nil {
			return nil, storeErr(err, "proposal")
		}
		deliver(ctx, s.sink, log, notify.ProposalRejected(*rejected, *job, false))
		log.Info().Msg("proposal rejected")
		return &ResolveResult{Proposal: rejected, Job: job}, nil
	}

	assigned := model.AssignFreelancer(proposal.FreelancerID).Apply(*job)
	accepted, cascaded, err := s.proposals.Accept(ctx, proposal.ID, &assigned, now)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: job or proposal changed while accepting", ErrConflict)
		}
		return nil, storeErr(err, "proposal")
	}

	items := make([]model.Notification, 0, len(cascaded)+1)
	items = append(items, notify.ProposalAccepted(*accepted, assigned))
	for _, p := range cascaded {
		items = append(items, notify.ProposalRejected(p, assigned, true))
	}
	deliver(ctx, s.sink, log, items...)

	log.Info().Int("rejected", len(cascaded)).Msg("proposal accepted")
	return &ResolveResult{Proposal: accepted, Job: &assigned, Rejected: cascaded}, nil
}
