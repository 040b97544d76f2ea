// Package outage records and clears the outage state of a publisher.
package outage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/metrics"
	"feedwatch/internal/repository"
)

// Tracker owns the outage transitions of a Publisher.
// Writes go through single-row repository updates so overlapping polls of the
// same publisher cannot lose the first-seen timestamp.
type Tracker struct {
	repo   repository.PublisherRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a Tracker. A nil logger falls back to slog.Default().
func NewTracker(repo repository.PublisherRepository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, logger: logger, now: time.Now}
}

// Open marks the publisher as failing with cause as the last error.
// StartedAt is kept while the outage stays open; UpdatedAt and LastError are refreshed.
func (t *Tracker) Open(ctx context.Context, pub *entity.Publisher, cause error) error {
	if pub == nil {
		return errors.New("open outage: publisher is nil")
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	wasOpen := pub.InOutage()

	out, err := t.repo.OpenOutage(ctx, pub.ID, t.now().UTC(), msg)
	if err != nil {
		return fmt.Errorf("open outage: %w", err)
	}
	pub.Outage = out

	t.logger.WarnContext(ctx, "Recording outage for "+pub.DisplayName(),
		slog.Int64("publisher_id", pub.ID),
		slog.Time("started_at", out.StartedAt),
		slog.String("error", msg))
	metrics.RecordOutageOpened(pub.ID, wasOpen)
	return nil
}

// Close clears the outage state. Calling it on a healthy publisher is a no-op.
func (t *Tracker) Close(ctx context.Context, pub *entity.Publisher) error {
	if pub == nil {
		return errors.New("close outage: publisher is nil")
	}

	closed, err := t.repo.CloseOutage(ctx, pub.ID)
	if err != nil {
		return fmt.Errorf("close outage: %w", err)
	}
	if !closed {
		pub.Outage = nil
		return nil
	}

	var since time.Duration
	if pub.Outage != nil {
		since = t.now().Sub(pub.Outage.StartedAt)
	}
	pub.Outage = nil

	t.logger.InfoContext(ctx, "Outage cleared for "+pub.DisplayName(),
		slog.Int64("publisher_id", pub.ID),
		slog.Duration("duration", since))
	metrics.RecordOutageClosed(pub.ID)
	return nil
}
