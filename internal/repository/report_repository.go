package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/freelancedao/escrow-service/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ContractStatusCounts groups contracts by status with the escrowed volume
// per status. An empty statuses list counts every status.
func (r *ReportRepository) ContractStatusCounts(ctx context.Context, statuses []model.ContractStatus) ([]model.StatusCount, error) {
	baseQuery := `
		SELECT
			c.status AS status,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN c.escrow_funded THEN c.escrow_amount ELSE 0 END), 0) AS amount
		FROM contracts c
		WHERE 1 = 1
	`
	args := []interface{}{}
	baseQuery, args = appendStatusFilter(baseQuery, args, "c.status", statuses)
	baseQuery += " GROUP BY c.status ORDER BY c.status ASC"

	var rows []model.StatusCount
	if err := r.db.WithContext(ctx).Raw(baseQuery, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// PaymentStatusCounts groups verified payments by purpose and status.
func (r *ReportRepository) PaymentStatusCounts(ctx context.Context) ([]model.StatusCount, error) {
	var rows []model.StatusCount
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.purpose || ':' || p.status AS status,
			COUNT(*) AS total,
			COALESCE(SUM(p.amount), 0) AS amount
		FROM payments p
		GROUP BY p.purpose, p.status
		ORDER BY status ASC
	`).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func appendStatusFilter(baseQuery string, args []interface{}, column string, statuses []model.ContractStatus) (string, []interface{}) {
	if len(statuses) == 0 {
		return baseQuery, args
	}

	placeholders := make([]string, len(statuses))
	for i := range statuses {
		placeholders[i] = "?"
	}
	baseQuery += fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ","))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return baseQuery, args
}
