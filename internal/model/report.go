package model

import (
	"time"

	"github.com/google/uuid"
)

type ReconcileOutcome string

const (
	ReconcileSynced    ReconcileOutcome = "synced"
	ReconcileUnchanged ReconcileOutcome = "unchanged"
	ReconcileSkipped   ReconcileOutcome = "skipped"
	ReconcileFailed    ReconcileOutcome = "failed"
)

type ReconcileRow struct {
	ContractID uuid.UUID        `json:"contract_id"`
	JobID      uuid.UUID        `json:"job_id"`
	Outcome    ReconcileOutcome `json:"outcome"`
	Milestones int              `json:"milestones"`
	Progress   int              `json:"progress"`
	JobStatus  JobStatus        `json:"job_status,omitempty"`
	Detail     string           `json:"detail,omitempty"`
}

type ReconcileSummary struct {
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Total       int64          `json:"total_contracts"`
	Synced      int64          `json:"synced_jobs"`
	Unchanged   int64          `json:"unchanged"`
	Skipped     int64          `json:"skipped"`
	Failed      int64          `json:"errors"`
	ErrorDetail []string       `json:"error_details,omitempty"`
	Rows        []ReconcileRow `json:"-"`
}

// StatusCount is one row of a grouped count, e.g. contracts per status.
type StatusCount struct {
	Status string  `json:"status"`
	Total  int64   `json:"total"`
	Amount float64 `json:"amount"`
}

// ReconcileReport is the printable result of a reconciliation run.
type ReconcileReport struct {
	GeneratedAt      time.Time
	Summary          ReconcileSummary
	ContractStatuses []StatusCount
	PaymentStatuses  []StatusCount
}
