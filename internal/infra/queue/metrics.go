package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_jobs_enqueued_total",
		Help: "Total number of poll jobs accepted by the queue",
	})

	jobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_completed_total",
		Help: "Total number of poll job attempts by result",
	}, []string{"result"}) // result: success, failure, panic

	jobsRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_jobs_retried_total",
		Help: "Total number of poll jobs scheduled for another attempt",
	})

	jobsDeadTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_jobs_dead_total",
		Help: "Total number of poll jobs dropped after their last failed attempt",
	})

	jobsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_jobs_dropped_total",
		Help: "Total number of pending poll jobs discarded at shutdown",
	})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "queue_jobs_in_flight",
		Help: "Number of poll jobs currently executing",
	})
)
