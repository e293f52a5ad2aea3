package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/freelancedao/escrow-service/internal/model"
)

func TestGenerateReconcileReport(t *testing.T) {
	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	contractID := uuid.New()
	report := model.ReconcileReport{
		GeneratedAt: at,
		Summary: model.ReconcileSummary{
			StartedAt:   at,
			FinishedAt:  at.Add(time.Second),
			Total:       2,
			Synced:      1,
			Failed:      1,
			ErrorDetail: []string{"contract x: database is locked"},
			Rows: []model.ReconcileRow{
				{ContractID: contractID, JobID: uuid.New(), Outcome: model.ReconcileSynced, Milestones: 2, Progress: 50, JobStatus: model.JobStatusInProgress},
				{ContractID: uuid.New(), JobID: uuid.New(), Outcome: model.ReconcileFailed, Detail: "database is locked"},
			},
		},
		ContractStatuses: []model.StatusCount{{Status: "active", Total: 2, Amount: 1000}},
		PaymentStatuses:  []model.StatusCount{{Status: "success", Total: 1, Amount: 750000}},
	}

	out, err := NewGenerator().Generate(report)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{"Summary", "Contracts", "Statuses"}, file.GetSheetList())

	synced, err := file.GetCellValue("Summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "1", synced)

	detail, err := file.GetCellValue("Summary", "A11")
	require.NoError(t, err)
	assert.Equal(t, "contract x: database is locked", detail)

	first, err := file.GetCellValue("Contracts", "A2")
	require.NoError(t, err)
	assert.Equal(t, contractID.String(), first)

	outcome, err := file.GetCellValue("Contracts", "C3")
	require.NoError(t, err)
	assert.Equal(t, "failed", outcome)

	paymentHeader, err := file.GetCellValue("Statuses", "A4")
	require.NoError(t, err)
	assert.Equal(t, "Payment status", paymentHeader)

	amount, err := file.GetCellValue("Statuses", "C5")
	require.NoError(t, err)
	assert.Equal(t, "750000.00", amount)
}
