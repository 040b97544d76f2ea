package worker

import (
	"feedwatch/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker process.
// It embeds the standard ConfigMetrics (worker_config_*) and adds metrics
// for the cron run that schedules publishers:
//   - worker_cron_job_runs_total{status}
//   - worker_cron_job_duration_seconds
//   - worker_cron_job_publishers_scheduled_total
//   - worker_cron_job_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	CronJobRunsTotal                *prometheus.CounterVec
	CronJobDurationSeconds          prometheus.Histogram
	CronJobPublishersScheduledTotal prometheus.Counter
	CronJobLastSuccessTimestamp     prometheus.Gauge
}

// NewWorkerMetrics creates metrics registered with the default registry.
// It must be called once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return newWorkerMetrics(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWithRegistry registers the metrics on reg.
func NewWorkerMetricsWithRegistry(reg prometheus.Registerer) *WorkerMetrics {
	return newWorkerMetrics(reg)
}

func newWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWithRegistry("worker", reg),

		CronJobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Total number of cron job runs by status (started/success/failure)",
		}, []string{"status"}),

		// scheduling only enqueues, so runs are short
		CronJobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job execution in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),

		CronJobPublishersScheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_publishers_scheduled_total",
			Help: "Total number of publishers scheduled for polling across all cron runs",
		}),

		CronJobLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful cron job run",
		}),
	}
}

// RecordJobRun increments the run counter for status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one run duration in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

// RecordPublishersScheduled adds the publishers enqueued by one run.
func (m *WorkerMetrics) RecordPublishersScheduled(count int) {
	m.CronJobPublishersScheduledTotal.Add(float64(count))
}

// RecordLastSuccess sets the last success timestamp to now.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}
