// Package feed turns the feature records of one fetched page into events and
// fans each new event out to the publisher's active subscriptions.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/observability/metrics"
	"feedwatch/internal/repository"
	"feedwatch/internal/usecase/notify"

	"golang.org/x/sync/errgroup"
)

// defaultMaxConcurrent bounds parallel sends for one event.
const defaultMaxConcurrent = 10

// Sender delivers one event to one subscription (notify.Dispatcher).
type Sender interface {
	Send(ctx context.Context, sub *entity.Subscription, ev *entity.Event) error
}

// Processor is the feed update processor.
type Processor struct {
	events        repository.EventRepository
	subs          repository.SubscriptionRepository
	sender        Sender
	maxConcurrent int
	logger        *slog.Logger
}

// NewProcessor creates a Processor. maxConcurrent <= 0 uses the default of 10.
func NewProcessor(
	events repository.EventRepository,
	subs repository.SubscriptionRepository,
	sender Sender,
	maxConcurrent int,
	logger *slog.Logger,
) *Processor {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		events:        events,
		subs:          subs,
		sender:        sender,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// dispatchStats counts send results of one Process call.
type dispatchStats struct {
	delivered    atomic.Int64
	failed       atomic.Int64
	unsubscribed atomic.Int64
}

// Process creates an event for every feature not seen before for pub and
// sends each created event to all active subscriptions.
//
// Send failures are logged and counted but never returned. Persistence errors
// (creating events, listing subscriptions) abort processing and are returned
// together with the events created so far. Every returned event has been
// dispatched; a feature whose event was not created is left for the retry.
func (p *Processor) Process(ctx context.Context, features []entity.Feature, pub *entity.Publisher) ([]*entity.Event, error) {
	if pub == nil {
		return nil, errors.New("process features: publisher is nil")
	}

	created := make([]*entity.Event, 0, len(features))
	var stats dispatchStats
	var subs []*entity.Subscription
	fresh := false

	for _, f := range features {
		// subscriptions are read before the event row exists so that a failed
		// lookup leaves the feature unseen for the retry
		if !fresh {
			var err error
			subs, err = p.subs.ActiveForPublisher(ctx, pub.ID)
			if err != nil {
				return created, fmt.Errorf("list active subscriptions: %w", err)
			}
			fresh = true
		}

		ev := &entity.Event{
			PublisherID: pub.ID,
			FeatureID:   f.ID,
			Title:       f.Title,
			Description: f.Description,
			Properties:  f.Properties,
		}

		isNew, err := p.events.CreateIfAbsent(ctx, ev)
		if err != nil {
			return created, fmt.Errorf("create event %s: %w", f.ID, err)
		}
		if !isNew {
			continue
		}
		created = append(created, ev)
		p.dispatch(ctx, ev, subs, &stats)

		// re-read for the next event; one deactivated while handling this
		// event is excluded
		fresh = false
	}

	metrics.RecordEventsCreated(pub.ID, len(created))

	if len(created) > 0 {
		logging.FromContext(ctx, p.logger).InfoContext(ctx, "Processed feed update for "+pub.DisplayName(),
			slog.Int64("publisher_id", pub.ID),
			slog.Int("features", len(features)),
			slog.Int("events_created", len(created)),
			slog.Int64("delivered", stats.delivered.Load()),
			slog.Int64("failed", stats.failed.Load()),
			slog.Int64("unsubscribed", stats.unsubscribed.Load()))
	}
	return created, nil
}

// dispatch sends ev to every subscription in parallel and waits for all of them.
func (p *Processor) dispatch(ctx context.Context, ev *entity.Event, subs []*entity.Subscription, stats *dispatchStats) {
	g := new(errgroup.Group)
	g.SetLimit(p.maxConcurrent)

	for _, sub := range subs {
		if !sub.Active() {
			continue
		}
		g.Go(func() error {
			err := p.sender.Send(ctx, sub, ev)
			switch {
			case err == nil:
				stats.delivered.Add(1)
			case notify.IsPermanent(err):
				stats.unsubscribed.Add(1)
			default:
				stats.failed.Add(1)
				logging.FromContext(ctx, p.logger).WarnContext(ctx, "notification dispatch failed",
					slog.Int64("event_id", ev.ID),
					slog.Int64("subscription_id", sub.ID),
					slog.String("channel", sub.Channel),
					slog.Any("error", err))
			}
			// sibling sends continue regardless of this result
			return nil
		})
	}
	_ = g.Wait()
}
