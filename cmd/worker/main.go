package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"feedwatch/internal/infra/adapter/persistence"
	"feedwatch/internal/infra/fetcher"
	"feedwatch/internal/infra/queue"
	workerPkg "feedwatch/internal/infra/worker"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/observability/metrics"
	"feedwatch/internal/observability/tracing"
	"feedwatch/internal/usecase/feed"
	"feedwatch/internal/usecase/notify"
	"feedwatch/internal/usecase/outage"
	"feedwatch/internal/usecase/poll"
)

var version = "dev"

func main() {
	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(logger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush spans", slog.Any("error", err))
		}
	}()

	store := initStore(ctx, logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	go store.ReportPoolStats(ctx, 15*time.Second, metrics.UpdateDBConnectionStats)

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Int("poll_workers", workerConfig.PollWorkers),
		slog.Int("poll_max_retries", workerConfig.PollMaxRetries),
		slog.Duration("poll_timeout", workerConfig.PollTimeout),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Bool("notifications_enabled", workerConfig.NotificationsEnabled),
		slog.Int("ops_port", workerConfig.OpsPort))

	dispatcher := notify.NewDispatcher(notify.LoadChannelsFromEnv(logger), store.Credentials, store.Subscriptions, logger)

	jobs, poller := setupPoller(logger, store, dispatcher, workerConfig)
	jobs.Start(context.WithoutCancel(ctx))

	opsAddr := fmt.Sprintf(":%d", workerConfig.OpsPort)
	opsServer := workerPkg.NewOpsServer(opsAddr, version, store.Publishers, dispatcher, logger)
	go func() {
		if err := opsServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", slog.Any("error", err))
		}
	}()

	scheduler := startCron(logger, poller, workerConfig, workerMetrics)
	opsServer.SetReady(true)
	logger.Info("worker started",
		slog.String("version", version),
		slog.String("schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	opsServer.SetReady(false)

	// 実行中のcronジョブの完了を待つ
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerConfig.PollTimeout)
	defer cancel()
	if err := jobs.Shutdown(shutdownCtx); err != nil {
		logger.Error("job queue did not drain in time", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// initLogger initializes the JSON logger and makes it the default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// initTracing installs the span exporter when TRACING_ENABLED is set.
func initTracing(logger *slog.Logger) func(context.Context) error {
	cfg, warnings := tracing.LoadProviderConfigFromEnv("feedwatch-worker", version)
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	return tracing.Setup(cfg, logger)
}

// initStore opens the configured database or exits.
func initStore(ctx context.Context, logger *slog.Logger) *persistence.Store {
	opts, warnings := persistence.OptionsFromEnv()
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}

	store, err := persistence.Open(ctx, opts, logger)
	if err != nil {
		logger.Error("failed to open database", slog.String("driver", opts.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	return store
}

// setupPoller wires fetcher, processor, outage tracker and the job queue
// around the poller. The queue runs poller.Poll and is also the poller's
// enqueuer for continuation pages.
func setupPoller(
	logger *slog.Logger,
	store *persistence.Store,
	dispatcher *notify.Dispatcher,
	cfg *workerPkg.WorkerConfig,
) (*queue.Queue, *poll.Poller) {
	fetchConfig, warnings := fetcher.LoadConfigFromEnv()
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	logger.Info("page fetcher configured",
		slog.Duration("timeout", fetchConfig.Timeout),
		slog.Int64("max_body_size", fetchConfig.MaxBodySize),
		slog.Bool("deny_private_ips", fetchConfig.DenyPrivateIPs))

	processor := feed.NewProcessor(store.Events, store.Subscriptions, dispatcher, cfg.NotifyMaxConcurrent, logger)
	tracker := outage.NewTracker(store.Publishers, logger)

	var poller *poll.Poller
	jobs := queue.New(queue.Config{
		Workers:    cfg.PollWorkers,
		MaxRetries: cfg.PollMaxRetries,
		JobTimeout: cfg.PollTimeout,
		Retryable: func(err error) bool {
			return !errors.Is(err, poll.ErrPublisherNotFound)
		},
	}, func(ctx context.Context, job poll.Job) error {
		return poller.Poll(ctx, job)
	}, logger)

	poller = poll.NewPoller(
		store.Publishers,
		fetcher.NewPageFetcher(fetchConfig),
		processor,
		tracker,
		jobs,
		poll.Config{NotificationsEnabled: cfg.NotificationsEnabled},
		logger,
	)
	return jobs, poller
}

// startCron schedules every active publisher on the configured schedule.
func startCron(logger *slog.Logger, poller *poll.Poller, cfg *workerPkg.WorkerConfig, metrics *workerPkg.WorkerMetrics) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runScheduleJob(logger, poller, metrics)
	})
	if err != nil {
		logger.Error("failed to add cron job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()
	return c
}

// runScheduleJob enqueues page 1 of every active publisher.
func runScheduleJob(logger *slog.Logger, poller *poll.Poller, metrics *workerPkg.WorkerMetrics) {
	startTime := time.Now()
	metrics.RecordJobRun("started")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())

	n, err := poller.ScheduleActive(ctx)
	metrics.RecordJobDuration(time.Since(startTime).Seconds())
	metrics.RecordPublishersScheduled(n)
	if err != nil {
		logger.ErrorContext(ctx, "scheduling publishers failed",
			slog.Int("enqueued", n),
			slog.Any("error", err))
		metrics.RecordJobRun("failure")
		return
	}

	metrics.RecordJobRun("success")
	metrics.RecordLastSuccess()
}
