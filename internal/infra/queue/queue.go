// Package queue is the in-process scheduler for poll jobs.
//
// A fixed number of workers executes jobs. Jobs sharing a concurrency key
// (one publisher) never run at the same time: while a key is busy, further
// jobs for it wait and are run by the worker holding the key, in arrival
// order. A failed job is attempted again after a backoff delay until its
// retry budget is spent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"feedwatch/internal/resilience/retry"
	"feedwatch/internal/usecase/poll"
)

var (
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned when the pending buffer is exhausted.
	ErrFull = errors.New("queue full")
)

// Handler runs one job.
type Handler func(ctx context.Context, job poll.Job) error

// Config configures a Queue.
type Config struct {
	// Workers is the number of jobs executed in parallel. Default: 4
	Workers int
	// MaxRetries is the number of attempts after the first failure. Default: 5
	MaxRetries int
	// Buffer is the capacity of the pending job buffer. Default: 1024
	Buffer int
	// JobTimeout bounds one attempt. Zero means no timeout.
	JobTimeout time.Duration
	// Retryable decides whether a failed job gets another attempt.
	// nil retries every error.
	Retryable func(error) bool
	// Backoff is the delay schedule between attempts.
	// The zero value uses retry.QueueConfig.
	Backoff retry.Config
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = retry.QueueConfig(c.MaxRetries + 1)
	}
	return c
}

type item struct {
	job     poll.Job
	attempt int
}

// Queue implements poll.Enqueuer.
type Queue struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	items chan item
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	busy    map[string][]item // key -> jobs waiting behind the running one
	timers  map[*time.Timer]struct{}
	cancel  context.CancelFunc
	started bool
}

// New creates a Queue. Call Start to begin executing jobs.
func New(cfg Config, handler Handler, logger *slog.Logger) *Queue {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		items:   make(chan item, cfg.Buffer),
		quit:    make(chan struct{}),
		busy:    make(map[string][]item),
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Enqueue adds job to the queue. It never blocks.
func (q *Queue) Enqueue(_ context.Context, job poll.Job) error {
	if err := q.push(item{job: job, attempt: 1}); err != nil {
		return err
	}
	jobsEnqueuedTotal.Inc()
	return nil
}

func (q *Queue) push(it item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.items <- it:
		return nil
	default:
		return fmt.Errorf("%w: %d pending", ErrFull, len(q.items))
	}
}

// Start launches the workers. Jobs run with a context derived from ctx;
// cancelling it aborts running jobs.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("job queue started",
		slog.Int("workers", q.cfg.Workers),
		slog.Int("max_retries", q.cfg.MaxRetries))
}

// Shutdown stops accepting jobs and waits for running jobs to finish.
// Pending jobs and scheduled retries are dropped. If ctx expires first, the
// running jobs are cancelled and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	retries := len(q.timers)
	q.timers = map[*time.Timer]struct{}{}
	close(q.quit)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if q.cancel != nil {
		q.cancel()
	}

	q.mu.Lock()
	pending := len(q.items)
	for _, waiting := range q.busy {
		pending += len(waiting)
	}
	q.mu.Unlock()

	if dropped := pending + retries; dropped > 0 {
		jobsDroppedTotal.Add(float64(dropped))
		q.logger.Warn("job queue stopped with pending jobs",
			slog.Int("pending", pending),
			slog.Int("scheduled_retries", retries))
	}
	q.logger.Info("job queue stopped")
	return err
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-q.quit:
			return
		case <-ctx.Done():
			return
		case it := <-q.items:
			q.runKey(ctx, it)
		}
	}
}

// runKey runs it, then every job that queued up behind it for the same key.
func (q *Queue) runKey(ctx context.Context, it item) {
	key := it.job.Key()

	q.mu.Lock()
	if waiting, running := q.busy[key]; running {
		q.busy[key] = append(waiting, it)
		q.mu.Unlock()
		return
	}
	q.busy[key] = nil
	q.mu.Unlock()

	for {
		q.execute(ctx, it)

		q.mu.Lock()
		waiting := q.busy[key]
		if len(waiting) == 0 || q.closed {
			if !q.closed {
				delete(q.busy, key)
			}
			q.mu.Unlock()
			return
		}
		it = waiting[0]
		q.busy[key] = waiting[1:]
		q.mu.Unlock()
	}
}

func (q *Queue) execute(ctx context.Context, it item) {
	logger := q.logger.With(
		slog.Int64("publisher_id", it.job.PublisherID),
		slog.String("url", it.job.URL),
		slog.Int("page", it.job.PageNumber),
		slog.Int("attempt", it.attempt))

	err := q.call(ctx, it.job)
	if err == nil {
		jobsCompletedTotal.WithLabelValues("success").Inc()
		return
	}
	if ctx.Err() != nil {
		logger.Warn("job aborted by shutdown", slog.Any("error", err))
		return
	}

	if it.attempt > q.cfg.MaxRetries || (q.cfg.Retryable != nil && !q.cfg.Retryable(err)) {
		jobsDeadTotal.Inc()
		logger.Error("job failed permanently", slog.Any("error", err))
		return
	}

	delay := q.cfg.Backoff.Delay(it.attempt)
	logger.Warn("job failed, retrying",
		slog.Duration("retry_in", delay),
		slog.Any("error", err))
	q.scheduleRetry(item{job: it.job, attempt: it.attempt + 1}, delay)
}

// call runs the handler with the job timeout and converts a panic into an error.
func (q *Queue) call(ctx context.Context, job poll.Job) (err error) {
	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			jobsCompletedTotal.WithLabelValues("panic").Inc()
			q.logger.Error("job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	if err = q.handler(ctx, job); err != nil {
		jobsCompletedTotal.WithLabelValues("failure").Inc()
	}
	return err
}

func (q *Queue) scheduleRetry(it item, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		if err := q.push(it); err != nil {
			jobsDeadTotal.Inc()
			q.logger.Error("failed to requeue job",
				slog.Int64("publisher_id", it.job.PublisherID),
				slog.Any("error", err))
			return
		}
		jobsRetriedTotal.Inc()
	})
	q.timers[t] = struct{}{}
}
