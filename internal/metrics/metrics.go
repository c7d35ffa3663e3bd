package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"to"},
	)

	payoutsReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "payouts_released_total",
			Help:      "Successfully released contractor payouts.",
		},
	)

	payoutFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "payout_failures_total",
			Help:      "Payout transfers that failed and need admin action.",
		},
	)

	charges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "charges_total",
			Help:      "Customer charge attempts by outcome.",
		},
		[]string{"outcome"},
	)

	standingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mowmarket",
			Name:      "contractor_standing_transitions_total",
			Help:      "Contractor standing changes by target standing.",
		},
		[]string{"to"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mowmarket",
			Name:      "background_job_seconds",
			Help:      "Background job run time by job name.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingTransitions,
			payoutsReleased,
			payoutFailures,
			charges,
			standingTransitions,
			sweepDuration,
		)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncTransition counts a booking moving into a status.
func IncTransition(to string) {
	bookingTransitions.WithLabelValues(to).Inc()
}

// IncPayoutReleased counts a successful payout.
func IncPayoutReleased() {
	payoutsReleased.Inc()
}

// IncPayoutFailure counts a failed payout transfer.
func IncPayoutFailure() {
	payoutFailures.Inc()
}

// IncCharge counts a customer charge attempt. Outcome is one of
// succeeded, declined or failed.
func IncCharge(outcome string) {
	charges.WithLabelValues(outcome).Inc()
}

// IncStandingTransition counts a contractor standing change.
func IncStandingTransition(to string) {
	standingTransitions.WithLabelValues(to).Inc()
}

// ObserveJob records one background job run.
func ObserveJob(job string, seconds float64) {
	sweepDuration.WithLabelValues(job).Observe(seconds)
}
