package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the handoff protocol. A single
// struct keeps registration in one place and lets services take only what
// they observe.
type Metrics struct {
	HandoffsInitiated *prometheus.CounterVec
	HandoffsResolved  *prometheus.CounterVec
	HandoffConflicts  *prometheus.CounterVec
	RecordsExpired    *prometheus.CounterVec

	NotificationsEnqueued prometheus.Counter
	NotificationsDropped  prometheus.Counter

	SweepDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		HandoffsInitiated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regbook_handoffs_initiated_total",
			Help: "Handoff records created, by kind (transfer|claim)",
		}, []string{"kind"}),
		HandoffsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regbook_handoffs_resolved_total",
			Help: "Handoff records resolved, by kind and outcome",
		}, []string{"kind", "outcome"}),
		HandoffConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regbook_handoff_conflicts_total",
			Help: "Accept/resolve attempts that lost a compare-and-swap race",
		}, []string{"kind"}),
		RecordsExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regbook_records_expired_total",
			Help: "Pending records swept to expired, by kind",
		}, []string{"kind"}),
		NotificationsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regbook_notifications_enqueued_total",
			Help: "Notifications handed to the dispatch queue",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regbook_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regbook_expiry_sweep_duration_seconds",
			Help:    "Duration of expiry reaper sweeps",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
