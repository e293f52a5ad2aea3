package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/freelancedao/escrow-service/internal/model"
	"github.com/freelancedao/escrow-service/internal/repository"
)

type ExcelGenerator interface {
	Generate(report model.ReconcileReport) ([]byte, error)
}

type ReportService struct {
	reports    *repository.ReportRepository
	milestones *MilestoneService
	excel      ExcelGenerator
	now        func() time.Time
}

type GenerateReportResult struct {
	FileName string
	Content  []byte
	Summary  *model.ReconcileSummary
}

func NewReportService(reports *repository.ReportRepository, milestones *MilestoneService, excel ExcelGenerator) *ReportService {
	return &ReportService{
		reports:    reports,
		milestones: milestones,
		excel:      excel,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GenerateReconcileReport runs a reconciliation and renders its outcome next
// to the current contract and payment totals.
func (s *ReportService) GenerateReconcileReport(ctx context.Context, actor model.Actor) (*GenerateReportResult, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin access required", ErrPermissionDenied)
	}

	summary, err := s.milestones.Reconcile(ctx, actor)
	if err != nil {
		return nil, err
	}
	contractStatuses, err := s.reports.ContractStatusCounts(ctx, nil)
	if err != nil {
		return nil, err
	}
	paymentStatuses, err := s.reports.PaymentStatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	report := model.ReconcileReport{
		GeneratedAt:      s.now(),
		Summary:          *summary,
		ContractStatuses: contractStatuses,
		PaymentStatuses:  paymentStatuses,
	}
	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}

	return &GenerateReportResult{
		FileName: buildFileName("reconcile", report.GeneratedAt),
		Content:  content,
		Summary:  summary,
	}, nil
}

func buildFileName(kind string, at time.Time) string {
	return fmt.Sprintf("escrow-%s-%s.xlsx", sanitizeFileName(kind), at.Format("20060102-150405"))
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
