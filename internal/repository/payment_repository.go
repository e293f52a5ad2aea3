package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freelancedao/escrow-service/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).Take(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts the payment or, when its reference is already recorded,
// updates the existing row in place. Links that the new value leaves empty
// keep their stored value.
func (r *PaymentRepository) Upsert(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "reference"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "status"}, Value: gorm.Expr("excluded.status")},
			{Column: clause.Column{Name: "amount"}, Value: gorm.Expr("excluded.amount")},
			{Column: clause.Column{Name: "currency"}, Value: gorm.Expr("excluded.currency")},
			{Column: clause.Column{Name: "purpose"}, Value: gorm.Expr("excluded.purpose")},
			{Column: clause.Column{Name: "channel"}, Value: gorm.Expr("excluded.channel")},
			{Column: clause.Column{Name: "meta"}, Value: gorm.Expr("excluded.meta")},
			{Column: clause.Column{Name: "job_id"}, Value: gorm.Expr("COALESCE(excluded.job_id, payments.job_id)")},
			{Column: clause.Column{Name: "contract_id"}, Value: gorm.Expr("COALESCE(excluded.contract_id, payments.contract_id)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return r.GetByReference(ctx, p.Reference)
}

func (r *PaymentRepository) List(ctx context.Context, page, limit int) ([]model.Payment, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Payment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
