package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the administration workflow.
type Metrics struct {
	Administrations     *prometheus.CounterVec
	AllocationConflicts prometheus.Counter
	WorkflowDuration    prometheus.Histogram
}

// New creates and registers administration metrics.
func New() *Metrics {
	return &Metrics{
		Administrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_administrations_total",
			Help: "Total administration workflow runs, by outcome",
		}, []string{"outcome"}),
		AllocationConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_allocation_conflicts_total",
			Help: "Total allocate-then-decrement races lost and retried",
		}),
		WorkflowDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxtrack_administration_duration_seconds",
			Help:    "End-to-end administration workflow duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
