package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ContractTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contract_transitions_total",
			Help: "Contract actions applied, by action and result",
		},
		[]string{"action", "result"},
	)

	ProposalResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_resolutions_total",
			Help: "Proposal accept/reject decisions, by decision and result",
		},
		[]string{"decision", "result"},
	)

	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"endpoint", "status"},
	)

	ReconcileJobsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_jobs_synced_total",
			Help: "Jobs whose milestones were overwritten by bulk reconciliation",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full or closed",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordContractTransition(action string, err error) {
	ContractTransitions.WithLabelValues(action, result(err)).Inc()
}

func RecordProposalResolution(decision string, err error) {
	ProposalResolutions.WithLabelValues(decision, result(err)).Inc()
}

func RecordGatewayRequest(endpoint, status string, duration time.Duration) {
	GatewayRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

func RecordJobsSynced(n int64) {
	if n > 0 {
		ReconcileJobsSynced.Add(float64(n))
	}
}

func RecordNotificationDropped() {
	NotificationsDropped.Inc()
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
