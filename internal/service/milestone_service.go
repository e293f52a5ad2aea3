package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/lifecycle"
	"github.com/freelancedao/escrow-service/internal/metrics"
	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/notify"
	"github.com/freelancedao/escrow-service/internal/repository"
)

const (
	reconcileBatchSize  = 100
	maxReconcileDetails = 10
)

type MilestoneService struct {
	jobs        *repository.JobRepository
	contracts   *repository.ContractRepository
	sink        notify.Sink
	bus         EventBus
	log         zerolog.Logger
	concurrency int
	now         func() time.Time
}

type SyncResult struct {
	Job *model.Job
	// Contract is nil when the job has no contract or its contract was left
	// untouched.
	Contract *model.Contract
}

func NewMilestoneService(
	jobs *repository.JobRepository,
	contracts *repository.ContractRepository,
	sink notify.Sink,
	bus EventBus,
	concurrency int,
	log zerolog.Logger,
) *MilestoneService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &MilestoneService{
		jobs:        jobs,
		contracts:   contracts,
		sink:        sink,
		bus:         bus,
		log:         log,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// contractForJob returns nil when the job has no contract.
func (s *MilestoneService) contractForJob(ctx context.Context, jobID uuid.UUID) (*model.Contract, error) {
	contract, err := s.contracts.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return contract, nil
}

// SyncContractMilestone is SyncJobMilestone addressed by contract.
func (s *MilestoneService) SyncContractMilestone(ctx context.Context, contractID uuid.UUID, index int, completed bool, actor model.Actor) (*SyncResult, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, storeErr(err, "contract")
	}
	return s.SyncJobMilestone(ctx, contract.JobID, index, completed, actor)
}

// SyncJobMilestone marks one milestone of a job complete or incomplete and
// mirrors the flag onto the job's contract.
func (s *MilestoneService) SyncJobMilestone(ctx context.Context, jobID uuid.UUID, index int, completed bool, actor model.Actor) (*SyncResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, storeErr(err, "job")
	}
	if !actor.IsFreelancer() || !job.IsAssignedTo(actor.ID) {
		return nil, fmt.Errorf("%w: only the assigned freelancer can update milestones", ErrPermissionDenied)
	}
	if err := lifecycle.CheckIndex(job.Milestones, index); err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("job_id", job.ID.String()).
		Int("milestone_index", index).
		Bool("completed", completed).
		Logger()

	now := s.now()
	newlyCompleted := completed && !job.Milestones[index].Completed
	if err := lifecycle.ToggleMilestone(job, index, completed, now); err != nil {
		return nil, err
	}

	contract, err := s.contractForJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if contract != nil {
		if len(contract.Milestones) != len(job.Milestones) {
			log.Warn().
				Str("contract_id", contract.ID.String()).
				Int("job_milestones", len(job.Milestones)).
				Int("contract_milestones", len(contract.Milestones)).
				Msg("milestone count mismatch, contract left unchanged")
			contract = nil
		} else {
			lifecycle.SetCompleted(&contract.Milestones[index], completed, now)
		}
	}

	if err := s.contracts.SaveWithJob(ctx, contract, job); err != nil {
		return nil, storeErr(err, "job")
	}

	if newlyCompleted {
		deliver(ctx, s.sink, log, notify.MilestoneCompleted(*job, index))
	}
	publish(s.bus, contract, "milestone")

	log.Info().Int("progress", job.Progress).Str("status", string(job.Status)).Msg("milestone updated")
	return &SyncResult{Job: job, Contract: contract}, nil
}

// ApproveJob settles a fully completed job. Approval completes the contract;
// rejection reopens the last milestone so the freelancer can revise it.
func (s *MilestoneService) ApproveJob(ctx context.Context, jobID uuid.UUID, approved bool, actor model.Actor) (*SyncResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, storeErr(err, "job")
	}
	if !actor.IsClient() || job.ClientID != actor.ID {
		return nil, fmt.Errorf("%w: only the job owner can approve work", ErrPermissionDenied)
	}
	if job.Status != model.JobStatusCompleted || job.Progress != 100 {
		return nil, fmt.Errorf("%w: job must be completed before approval", ErrInvalidState)
	}

	contract, err := s.contractForJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	log := s.log.With().Str("job_id", job.ID.String()).Bool("approved", approved).Logger()

	if approved {
		if contract == nil {
			return &SyncResult{Job: job}, nil
		}
		if err := lifecycle.Complete(contract); err != nil {
			return nil, err
		}
		if err := s.contracts.Update(ctx, contract); err != nil {
			return nil, storeErr(err, "contract")
		}
		deliver(ctx, s.sink, log, notify.PaymentReleased(*contract))
		publish(s.bus, contract, "complete")
		log.Info().Str("contract_id", contract.ID.String()).Msg("job approved")
		return &SyncResult{Job: job, Contract: contract}, nil
	}

	last := len(job.Milestones) - 1
	now := s.now()
	if err := lifecycle.ToggleMilestone(job, last, false, now); err != nil {
		return nil, err
	}
	if contract != nil {
		if len(contract.Milestones) == len(job.Milestones) {
			lifecycle.SetCompleted(&contract.Milestones[last], false, now)
		} else {
			contract = nil
		}
	}
	if err := s.contracts.SaveWithJob(ctx, contract, job); err != nil {
		return nil, storeErr(err, "job")
	}

	deliver(ctx, s.sink, log, notify.RevisionRequested(*job))
	publish(s.bus, contract, "revision")
	log.Info().Int("progress", job.Progress).Msg("revisions requested")
	return &SyncResult{Job: job, Contract: contract}, nil
}

// Reconcile copies contract milestones onto their jobs wherever the two have
// drifted apart. Running it twice in a row syncs nothing the second time.
func (s *MilestoneService) Reconcile(ctx context.Context, actor model.Actor) (*model.ReconcileSummary, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrPermissionDenied)
	}

	summary := &model.ReconcileSummary{StartedAt: s.now()}
	var (
		total     = atomic.NewInt64(0)
		synced    = atomic.NewInt64(0)
		unchanged = atomic.NewInt64(0)
		skipped   = atomic.NewInt64(0)
		failed    = atomic.NewInt64(0)

		mu      sync.Mutex
		rows    []model.ReconcileRow
		details []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	err := s.contracts.EachWithMilestones(ctx, reconcileBatchSize, func(batch []model.Contract) error {
		for _, contract := range batch {
			if err := gctx.Err(); err != nil {
				return err
			}
			total.Inc()
			g.Go(func() error {
				row := s.reconcileOne(gctx, contract)
				switch row.Outcome {
				case model.ReconcileSynced:
					synced.Inc()
				case model.ReconcileUnchanged:
					unchanged.Inc()
				case model.ReconcileSkipped:
					skipped.Inc()
				case model.ReconcileFailed:
					failed.Inc()
				}

				mu.Lock()
				rows = append(rows, row)
				if row.Outcome == model.ReconcileFailed && len(details) < maxReconcileDetails {
					details = append(details, fmt.Sprintf("contract %s: %s", row.ContractID, row.Detail))
				}
				mu.Unlock()
				return nil
			})
		}
		return nil
	})
	waitErr := g.Wait()
	if err != nil {
		return nil, err
	}
	if waitErr != nil {
		return nil, waitErr
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ContractID.String() < rows[j].ContractID.String()
	})

	summary.FinishedAt = s.now()
	summary.Total = total.Load()
	summary.Synced = synced.Load()
	summary.Unchanged = unchanged.Load()
	summary.Skipped = skipped.Load()
	summary.Failed = failed.Load()
	summary.ErrorDetail = details
	summary.Rows = rows

	metrics.RecordJobsSynced(summary.Synced)
	s.log.Info().
		Int64("total", summary.Total).
		Int64("synced", summary.Synced).
		Int64("skipped", summary.Skipped).
		Int64("errors", summary.Failed).
		Msg("milestone reconciliation finished")
	return summary, nil
}

func (s *MilestoneService) reconcileOne(ctx context.Context, contract model.Contract) model.ReconcileRow {
	row := model.ReconcileRow{
		ContractID: contract.ID,
		JobID:      contract.JobID,
		Milestones: len(contract.Milestones),
	}

	job, err := s.jobs.GetByID(ctx, contract.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row.Outcome = model.ReconcileSkipped
			row.Detail = "job not found"
			return row
		}
		row.Outcome = model.ReconcileFailed
		row.Detail = err.Error()
		return row
	}

	row.Progress = job.Progress
	row.JobStatus = job.Status
	if !lifecycle.MilestonesDiffer(job.Milestones, contract.Milestones) {
		row.Outcome = model.ReconcileUnchanged
		return row
	}

	job.Milestones = lifecycle.JobMilestonesFromContract(contract.Milestones)
	lifecycle.RecomputeJob(job)
	if err := s.jobs.Update(ctx, job); err != nil {
		row.Outcome = model.ReconcileFailed
		row.Detail = storeErr(err, "job").Error()
		return row
	}

	row.Outcome = model.ReconcileSynced
	row.Progress = job.Progress
	row.JobStatus = job.Status
	return row
}
