package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification dispatch
var (
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatched_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel"},
	)

	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sent_total",
			Help: "Total number of notification send results",
		},
		[]string{"channel", "outcome"}, // outcome: delivered|permanent_failure|transient_failure
	)

	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Notification send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	notificationRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_circuit_breaker_rejected_total",
			Help: "Total number of notifications rejected by an open circuit breaker",
		},
		[]string{"channel"},
	)

	notificationBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_circuit_breaker_state",
			Help: "Circuit breaker state per channel (0=closed, 1=half-open, 2=open)",
		},
		[]string{"channel"},
	)

	subscriptionDeactivatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_deactivated_total",
			Help: "Total number of subscriptions deactivated after a permanent delivery failure",
		},
		[]string{"channel"},
	)
)

// RecordDispatch records a notification dispatch attempt.
func RecordDispatch(channel string) {
	notificationDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordResult records the classified outcome and the send duration.
func RecordResult(channel string, outcome Outcome, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, outcome.String()).Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordRejected records a send short-circuited by the breaker.
func RecordRejected(channel string) {
	notificationRejectedTotal.WithLabelValues(channel).Inc()
}

// RecordBreakerState sets the breaker state gauge for channel.
func RecordBreakerState(channel string, value float64) {
	notificationBreakerState.WithLabelValues(channel).Set(value)
}

// RecordDeactivated records a subscription being unsubscribed.
func RecordDeactivated(channel string) {
	subscriptionDeactivatedTotal.WithLabelValues(channel).Inc()
}
