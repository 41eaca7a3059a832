package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AllocationDuration tracks the latency of match fund allocation attempts
	AllocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchfund_allocation_duration_seconds",
			Help:    "Duration of match fund allocation attempts in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"status"}, // success or failure
	)

	// MatchedAmount accumulates the value matched, labelled by how it happened
	MatchedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchfund_matched_amount_total",
			Help: "Total amount of match funds allocated, by path",
		},
		[]string{"path"}, // allocate, redistribute, retrospective
	)

	// ReleasedAmount accumulates the value given back to fundings
	ReleasedAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchfund_released_amount_total",
			Help: "Total amount of match funds released back to fundings",
		},
	)

	// ExpiredReservations counts donations released by the expiry sweep
	ExpiredReservations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchfund_expired_reservations_total",
			Help: "Number of pending donations released by the expiry sweep",
		},
	)
)

// RecordAllocationDuration records the duration of an allocation attempt
func RecordAllocationDuration(status string, seconds float64) {
	AllocationDuration.WithLabelValues(status).Observe(seconds)
}
