package worker

import (
	"fmt"
	"log/slog"
	"time"

	"feedwatch/internal/pkg/config"
)

// WorkerConfig holds the configuration for the worker process: the cron
// schedule that triggers polling, the job queue and the ops server.
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	cfg := LoadConfigFromEnv(logger, metrics)
//	if err := cfg.Validate(); err != nil {
//	    // unreachable: LoadConfigFromEnv falls back to defaults
//	}
type WorkerConfig struct {
	// CronSchedule triggers scheduling of every active publisher.
	// Default: "*/10 * * * *"
	CronSchedule string

	// Timezone is the IANA timezone of CronSchedule.
	// Default: "UTC"
	Timezone string

	// PollWorkers is the number of poll jobs executed in parallel.
	// Range: 1-64, Default: 4
	PollWorkers int

	// PollMaxRetries is the number of attempts after the first failure of a
	// poll job.
	// Range: 0-25, Default: 5
	PollMaxRetries int

	// PollTimeout bounds one poll job attempt, notifications included.
	// Range: 10s-30m, Default: 2m
	PollTimeout time.Duration

	// NotifyMaxConcurrent bounds parallel sends for one event.
	// Range: 1-100, Default: 10
	NotifyMaxConcurrent int

	// NotificationsEnabled=false silences all dispatch (maintenance window).
	// Outage state is still tracked.
	// Default: true
	NotificationsEnabled bool

	// OpsPort is the port of the health/metrics/API server.
	// Range: 1024-65535, Default: 9091
	OpsPort int
}

// DefaultConfig returns a WorkerConfig with default values.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:         "*/10 * * * *",
		Timezone:             "UTC",
		PollWorkers:          4,
		PollMaxRetries:       5,
		PollTimeout:          2 * time.Minute,
		NotifyMaxConcurrent:  10,
		NotificationsEnabled: true,
		OpsPort:              9091,
	}
}

// Validate checks every field and returns all violations together.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateIntRange(c.PollWorkers, 1, 64); err != nil {
		errs = append(errs, fmt.Errorf("poll workers: %w", err))
	}
	if err := config.ValidateIntRange(c.PollMaxRetries, 0, 25); err != nil {
		errs = append(errs, fmt.Errorf("poll max retries: %w", err))
	}
	if err := config.ValidateDuration(c.PollTimeout, 10*time.Second, 30*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("poll timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.NotifyMaxConcurrent, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("notify max concurrent: %w", err))
	}
	if err := config.ValidateIntRange(c.OpsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("ops port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables. It never fails: an invalid value is logged, counted in metrics
// and replaced by its default.
//
// Environment variables:
//   - CRON_SCHEDULE (default: "*/10 * * * *")
//   - WORKER_TIMEZONE (default: "UTC")
//   - POLL_WORKERS: 1-64 (default: 4)
//   - POLL_MAX_RETRIES: 0-25 (default: 5)
//   - POLL_TIMEOUT: 10s-30m (default: 2m)
//   - NOTIFY_MAX_CONCURRENT: 1-100 (default: 10)
//   - NOTIFICATIONS_ENABLED: true/false (default: true)
//   - OPS_PORT: 1024-65535 (default: 9091)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	l := &loader{logger: logger, metrics: metrics}

	cfg.CronSchedule = track(l, "cron_schedule",
		config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule))
	cfg.Timezone = track(l, "timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone))
	cfg.PollWorkers = track(l, "poll_workers",
		config.LoadEnvInt("POLL_WORKERS", cfg.PollWorkers, func(v int) error {
			return config.ValidateIntRange(v, 1, 64)
		}))
	cfg.PollMaxRetries = track(l, "poll_max_retries",
		config.LoadEnvInt("POLL_MAX_RETRIES", cfg.PollMaxRetries, func(v int) error {
			return config.ValidateIntRange(v, 0, 25)
		}))
	cfg.PollTimeout = track(l, "poll_timeout",
		config.LoadEnvDuration("POLL_TIMEOUT", cfg.PollTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 10*time.Second, 30*time.Minute)
		}))
	cfg.NotifyMaxConcurrent = track(l, "notify_max_concurrent",
		config.LoadEnvInt("NOTIFY_MAX_CONCURRENT", cfg.NotifyMaxConcurrent, func(v int) error {
			return config.ValidateIntRange(v, 1, 100)
		}))
	cfg.NotificationsEnabled = track(l, "notifications_enabled",
		config.LoadEnvBool("NOTIFICATIONS_ENABLED", cfg.NotificationsEnabled))
	cfg.OpsPort = track(l, "ops_port",
		config.LoadEnvInt("OPS_PORT", cfg.OpsPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		}))

	metrics.SetFallbackActive(l.fallbackApplied)
	metrics.RecordLoadTimestamp()
	return &cfg
}

type loader struct {
	logger          *slog.Logger
	metrics         *WorkerMetrics
	fallbackApplied bool
}

// track records a fallback of field and returns the loaded value.
func track[T any](l *loader, field string, result config.LoadResult[T]) T {
	if result.FallbackApplied {
		l.fallbackApplied = true
		l.metrics.RecordValidationError(field)
		l.metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			l.logger.Warn("Configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}
	return result.Value
}
