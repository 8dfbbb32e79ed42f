// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_applications_submitted_total",
			Help: "Total number of loan applications submitted, by initial status",
		},
		[]string{"status"},
	)

	ApplicationsValidationFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_applications_validation_failed_total",
			Help: "Total number of submissions rejected by business validation",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_application_status_transitions_total",
			Help: "Total number of status transitions applied",
		},
		[]string{"from", "to"},
	)

	DraftSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draft_saves_total",
			Help: "Total number of draft snapshots written, by outcome",
		},
		[]string{"outcome"},
	)

	DownstreamSyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "downstream_sync_failures_total",
			Help: "Total number of best-effort downstream sync failures",
		},
		[]string{"target"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "loan_api_request_duration_seconds",
			Help: "Duration of loan API request handling in seconds",
		},
		[]string{"action"},
	)
)
