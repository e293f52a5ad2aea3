package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/model"
)

type ProposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

func (r *ProposalRepository) Create(ctx context.Context, p *model.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = model.ProposalStatusPending
	}
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now().UTC()
	}
	p.Version = 1
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	var p model.Proposal
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProposalRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("submitted_at ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

func resolvePending(tx *gorm.DB, ids []uuid.UUID, status model.ProposalStatus, at time.Time) *gorm.DB {
	return tx.Model(&model.Proposal{}).
		Where("id IN ? AND status = ?", ids, model.ProposalStatusPending).
		Updates(map[string]any{
			"status":       status,
			"responded_at": at,
			"updated_at":   at,
			"version":      gorm.Expr("version + 1"),
		})
}

// Reject moves a pending proposal to rejected.
func (r *ProposalRepository) Reject(ctx context.Context, id uuid.UUID, at time.Time) (*model.Proposal, error) {
	res := resolvePending(r.db.WithContext(ctx), []uuid.UUID{id}, model.ProposalStatusRejected, at)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrVersionConflict
	}
	return r.GetByID(ctx, id)
}

// Accept accepts a pending proposal, rejects every other pending proposal of
// the same job and stores the assigned job, all in one transaction. It
// returns the accepted proposal and the proposals rejected by the cascade.
func (r *ProposalRepository) Accept(
	ctx context.Context,
	id uuid.UUID,
	job *model.Job,
	at time.Time,
) (*model.Proposal, []model.Proposal, error) {
	var (
		accepted model.Proposal
		rejected []model.Proposal
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := resolvePending(tx, []uuid.UUID{id}, model.ProposalStatusAccepted, at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		var others []model.Proposal
		if err := tx.
			Where("job_id = ? AND id <> ? AND status = ?", job.ID, id, model.ProposalStatusPending).
			Order("submitted_at ASC").
			Find(&others).Error; err != nil {
			return err
		}

		if len(others) > 0 {
			ids := make([]uuid.UUID, 0, len(others))
			for _, p := range others {
				ids = append(ids, p.ID)
			}
			if err := resolvePending(tx, ids, model.ProposalStatusRejected, at).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", ids).Order("submitted_at ASC").Find(&rejected).Error; err != nil {
				return err
			}
		}

		if err := saveVersioned(tx, job, &job.Version); err != nil {
			return err
		}

		return tx.Where("id = ?", id).Take(&accepted).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &accepted, rejected, nil
}
