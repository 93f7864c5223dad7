package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the stock ledger.
type Metrics struct {
	BatchesReceived prometheus.Counter
	DosesDeducted   *prometheus.CounterVec
	BatchesExpired  prometheus.Counter
}

// New creates and registers ledger metrics.
func New() *Metrics {
	return &Metrics{
		BatchesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_batches_received_total",
			Help: "Total number of stock batches received into the ledger",
		}),
		DosesDeducted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_doses_deducted_total",
			Help: "Total units removed from stock by manual deduction, by reason",
		}, []string{"reason"}),
		BatchesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_batches_expired_total",
			Help: "Total number of batches transitioned to EXPIRED by the sweep",
		}),
	}
}
