package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/model"
)

type ContractFilter struct {
	PartyID  *uuid.UUID
	Statuses []model.ContractStatus
	Page     int
	Limit    int
}

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// Create inserts a new contract. A second contract for the same proposal is
// rejected by the unique index and surfaces as gorm.ErrDuplicatedKey.
func (r *ContractRepository) Create(ctx context.Context, c *model.Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Version = 1
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractRepository) GetByProposalID(ctx context.Context, proposalID uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	if err := r.db.WithContext(ctx).Where("proposal_id = ?", proposalID).Take(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByJobID returns the most recent contract of a job.
func (r *ContractRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*model.Contract, error) {
	var c model.Contract
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC").
		Take(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractRepository) List(ctx context.Context, filter ContractFilter) ([]model.Contract, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Contract{})
	if filter.PartyID != nil {
		query = query.Where("client_id = ? OR freelancer_id = ?", *filter.PartyID, *filter.PartyID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var contracts []model.Contract
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&contracts).Error
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

func (r *ContractRepository) Update(ctx context.Context, c *model.Contract) error {
	return saveVersioned(r.db.WithContext(ctx), c, &c.Version)
}

// SaveWithJob writes a contract and its job in one transaction. Either may be
// nil. Both writes are version-guarded.
func (r *ContractRepository) SaveWithJob(ctx context.Context, c *model.Contract, job *model.Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if job != nil {
			if err := saveVersioned(tx, job, &job.Version); err != nil {
				return err
			}
		}
		if c != nil {
			if err := saveVersioned(tx, c, &c.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// EachWithMilestones walks every contract that has at least one milestone in
// batches and calls fn for each batch.
func (r *ContractRepository) EachWithMilestones(
	ctx context.Context,
	batchSize int,
	fn func(batch []model.Contract) error,
) error {
	var rows []model.Contract
	res := r.db.WithContext(ctx).
		Where("milestones IS NOT NULL").
		FindInBatches(&rows, batchSize, func(tx *gorm.DB, _ int) error {
			batch := make([]model.Contract, 0, len(rows))
			for _, c := range rows {
				if len(c.Milestones) > 0 {
					batch = append(batch, c)
				}
			}
			if len(batch) == 0 {
				return nil
			}
			return fn(batch)
		})
	return res.Error
}
