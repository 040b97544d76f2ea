package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/observability/metrics"
	"feedwatch/internal/observability/tracing"
	"feedwatch/internal/repository"
)

// Fetcher retrieves one feed page. Any error other than cancellation of
// ctx is treated as a fetch failure of the publisher.
type Fetcher interface {
	Fetch(ctx context.Context, tag, pageURL string) (*entity.FeedPage, error)
}

// Processor creates events from features and notifies subscribers.
type Processor interface {
	Process(ctx context.Context, features []entity.Feature, pub *entity.Publisher) ([]*entity.Event, error)
}

// OutageTracker records and clears publisher outages.
type OutageTracker interface {
	Open(ctx context.Context, pub *entity.Publisher, cause error) error
	Close(ctx context.Context, pub *entity.Publisher) error
}

// Config controls poller behavior.
type Config struct {
	// NotificationsEnabled=false skips the processor entirely while outage
	// state is still recorded and cleared.
	NotificationsEnabled bool
}

// Poller is the feed polling job.
type Poller struct {
	publishers repository.PublisherRepository
	fetcher    Fetcher
	processor  Processor
	outages    OutageTracker
	enqueuer   Enqueuer
	config     Config
	logger     *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(
	publishers repository.PublisherRepository,
	fetcher Fetcher,
	processor Processor,
	outages OutageTracker,
	enqueuer Enqueuer,
	cfg Config,
	logger *slog.Logger,
) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		publishers: publishers,
		fetcher:    fetcher,
		processor:  processor,
		outages:    outages,
		enqueuer:   enqueuer,
		config:     cfg,
		logger:     logger,
	}
}

// Poll runs one job.
//
// A failed fetch opens an outage and returns nil: the failure is fully
// handled here. An unknown publisher, a persistence error of the processor
// or the outage tracker, and cancellation of ctx are returned so that the
// scheduler can retry the job.
func (p *Poller) Poll(ctx context.Context, job Job) error {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() { metrics.RecordPoll(outcome, time.Since(start)) }()

	if job.PageNumber < 1 {
		job.PageNumber = 1
	}

	pub, err := p.publishers.Get(ctx, job.PublisherID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: id=%d", ErrPublisherNotFound, job.PublisherID)
		}
		return fmt.Errorf("get publisher %d: %w", job.PublisherID, err)
	}

	pageURL := job.URL
	if pageURL == "" {
		pageURL = pub.Endpoint
	}

	tag := RequestTag(pub.ID)
	ctx, span := tracing.StartPublisherRequest(ctx, tag, pub.ID, pageURL, job.PageNumber)
	defer span.End()

	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
	}
	logger := logging.WithRequestID(ctx, p.logger).With(
		slog.Int64("publisher_id", pub.ID),
		slog.String("url", pageURL),
		slog.Int("page", job.PageNumber),
		slog.String("request_tag", tag))
	ctx = logging.WithLogger(ctx, logger)

	page, err := p.fetcher.Fetch(ctx, tag, pageURL)
	if err != nil {
		tracing.RecordError(span, err)
		if ctx.Err() != nil {
			return fmt.Errorf("fetch page: %w", err)
		}
		logger.WarnContext(ctx, "feed fetch failed", slog.Any("error", err))
		if err := p.outages.Open(ctx, pub, err); err != nil {
			return err
		}
		outcome = metrics.OutcomeFetchFailure
		return nil
	}

	var created []*entity.Event
	if p.config.NotificationsEnabled {
		created, err = p.processor.Process(ctx, page.Features, pub)
		if err != nil {
			tracing.RecordError(span, err)
			return fmt.Errorf("process page: %w", err)
		}
	} else {
		metrics.RecordNotificationsSuppressed()
		logger.InfoContext(ctx, "notifications disabled, skipping feature processing",
			slog.Int("features", len(page.Features)))
	}

	if err := p.outages.Close(ctx, pub); err != nil {
		return err
	}

	next, decision := ShouldContinue(len(created), page, pageURL, job.PageNumber)
	metrics.RecordPaginationDecision(decision)
	if next {
		nextJob := Job{PublisherID: pub.ID, URL: page.NextPage, PageNumber: job.PageNumber + 1}
		if err := p.enqueuer.Enqueue(ctx, nextJob); err != nil {
			logger.ErrorContext(ctx, "failed to enqueue next page",
				slog.String("next_url", nextJob.URL),
				slog.Any("error", err))
		}
	}

	outcome = metrics.OutcomeSuccess
	logger.InfoContext(ctx, "feed page polled",
		slog.Int("features", len(page.Features)),
		slog.Int("new_events", len(created)),
		slog.String("pagination", decision),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// ScheduleActive enqueues the first page of every active publisher and
// returns how many jobs were enqueued. Enqueue failures are collected and
// do not stop the remaining publishers.
func (p *Poller) ScheduleActive(ctx context.Context) (int, error) {
	pubs, err := p.publishers.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active publishers: %w", err)
	}

	var errs []error
	enqueued := 0
	for _, pub := range pubs {
		job := Job{PublisherID: pub.ID, URL: pub.Endpoint, PageNumber: 1}
		if err := p.enqueuer.Enqueue(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("enqueue publisher %d: %w", pub.ID, err))
			continue
		}
		enqueued++
	}

	p.logger.InfoContext(ctx, "scheduled active publishers",
		slog.Int("publishers", len(pubs)),
		slog.Int("enqueued", enqueued))
	return enqueued, errors.Join(errs...)
}
