package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTransitioned counts automated status transitions by source and target status.
	SessionsTransitioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nestnote_sessions_transitioned_total",
			Help: "Total number of automated session status transitions",
		},
		[]string{"from", "to"},
	)

	// NotificationSends counts push sends by result (success|failure|invalid_token).
	NotificationSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nestnote_notification_sends_total",
			Help: "Total number of push notification send attempts",
		},
		[]string{"result"},
	)

	// TokensPruned counts device tokens removed after the transport reported them invalid.
	TokensPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nestnote_tokens_pruned_total",
			Help: "Total number of invalid device tokens removed",
		},
	)

	// SessionsArchived counts completed sessions moved to the archive store.
	SessionsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nestnote_sessions_archived_total",
			Help: "Total number of sessions archived",
		},
	)

	// SweepDuration measures wall-clock duration of sweep runs by sweep kind.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nestnote_sweep_duration_seconds",
			Help:    "Duration of sweep runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nestnote_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
