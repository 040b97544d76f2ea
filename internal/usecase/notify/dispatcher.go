package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/logging"
	"feedwatch/internal/repository"
	"feedwatch/internal/resilience/circuitbreaker"

	"github.com/sony/gobreaker"
)

// notificationTimeout bounds one channel send.
const notificationTimeout = 30 * time.Second

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name           string                  `json:"name"`
	CircuitBreaker circuitbreaker.Snapshot `json:"circuit_breaker"`
}

// Dispatcher sends one event to one subscription.
type Dispatcher struct {
	channels map[string]Channel
	breakers map[string]*circuitbreaker.Breaker
	creds    repository.CredentialsRepository
	subs     repository.SubscriptionRepository
	logger   *slog.Logger
	now      func() time.Time
	timeout  time.Duration
}

// NewDispatcher registers channels by name, each behind its own circuit breaker.
func NewDispatcher(
	channels []Channel,
	creds repository.CredentialsRepository,
	subs repository.SubscriptionRepository,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		channels: make(map[string]Channel, len(channels)),
		breakers: make(map[string]*circuitbreaker.Breaker, len(channels)),
		creds:    creds,
		subs:     subs,
		logger:   logger,
		now:      time.Now,
		timeout:  notificationTimeout,
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
		d.breakers[ch.Name()] = circuitbreaker.New(channelBreakerConfig(ch.Name()), logger)
	}
	return d
}

// Send delivers ev to sub. It returns nil on delivery and *NotificationFailure
// otherwise. A permanent failure sets sub.UnsubscribedAt before returning.
// Errors from persisting the deactivation are returned as they are.
func (d *Dispatcher) Send(ctx context.Context, sub *entity.Subscription, ev *entity.Event) error {
	if sub == nil || ev == nil {
		return errors.New("send notification: subscription and event are required")
	}
	if !sub.Active() {
		return ErrSubscriptionInactive
	}

	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
	}
	logger := logging.WithRequestID(ctx, d.logger).With(
		slog.Int64("subscription_id", sub.ID),
		slog.Int64("event_id", ev.ID),
		slog.String("channel", sub.Channel))

	ch, ok := d.channels[sub.Channel]
	if !ok {
		logger.Warn("Subscription uses unregistered channel")
		return &NotificationFailure{
			Channel:        sub.Channel,
			SubscriptionID: sub.ID,
			Outcome:        TransientFailure,
			Err:            ErrUnknownChannel,
		}
	}

	creds, err := d.creds.Get(ctx, sub.PublisherID, sub.Channel)
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) {
			return &NotificationFailure{
				Channel:        sub.Channel,
				SubscriptionID: sub.ID,
				Outcome:        TransientFailure,
				Err:            fmt.Errorf("load credentials: %w", err),
			}
		}
		creds = nil
	}

	msg := Message{
		To:          sub.Address,
		Body:        ev.Title,
		Description: ev.Description,
		EventID:     ev.ID,
	}

	RecordDispatch(ch.Name())
	start := time.Now()
	delivery := d.deliver(ctx, ch, creds, msg)
	RecordResult(ch.Name(), delivery.Outcome, time.Since(start))

	logger = logger.With(slog.String("outcome", delivery.Outcome.String()))

	switch delivery.Outcome {
	case Delivered:
		logger.Info("Notification delivered", slog.Duration("send_duration", time.Since(start)))
		return nil

	case PermanentFailure:
		at := d.now().UTC()
		if _, err := d.subs.Deactivate(ctx, sub.ID, at); err != nil {
			return fmt.Errorf("deactivate subscription %d: %w", sub.ID, err)
		}
		sub.UnsubscribedAt = &at
		RecordDeactivated(ch.Name())
		logger.Warn("Recipient permanently unreachable, subscription deactivated",
			slog.String("code", delivery.Code),
			slog.Any("error", delivery.Err))
		return &NotificationFailure{
			Channel:        ch.Name(),
			SubscriptionID: sub.ID,
			Outcome:        PermanentFailure,
			Code:           delivery.Code,
			Unsubscribed:   true,
			Err:            delivery.Err,
		}

	default:
		logger.Warn("Notification failed",
			slog.String("code", delivery.Code),
			slog.Any("error", delivery.Err))
		return &NotificationFailure{
			Channel:        ch.Name(),
			SubscriptionID: sub.ID,
			Outcome:        TransientFailure,
			Code:           delivery.Code,
			Err:            delivery.Err,
		}
	}
}

// deliver runs the channel send through the channel breaker. Only transient
// provider failures count against the breaker.
func (d *Dispatcher) deliver(ctx context.Context, ch Channel, creds *entity.ChannelCredentials, msg Message) Delivery {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var delivery Delivery
	err := d.breakers[ch.Name()].Run(func() error {
		delivery = ch.Send(sendCtx, creds, msg)
		if delivery.Outcome != TransientFailure {
			return nil
		}
		if delivery.Err == nil {
			return errors.New(delivery.Outcome.String())
		}
		return delivery.Err
	})
	if circuitbreaker.Rejected(err) {
		RecordRejected(ch.Name())
		return transient("circuit_open", ErrCircuitBreakerOpen)
	}
	return delivery
}

// channelBreakerConfig keeps missing credentials out of the failure ratio:
// they are a configuration problem of one publisher, not a provider outage.
func channelBreakerConfig(channel string) circuitbreaker.Config {
	cfg := circuitbreaker.ForChannel(channel)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrMissingCredentials)
	}
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		RecordBreakerState(channel, circuitbreaker.StateValue(to))
	}
	return cfg
}

// ChannelHealth returns the breaker state of every registered channel, sorted by name.
func (d *Dispatcher) ChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(d.breakers))
	for name, br := range d.breakers {
		statuses = append(statuses, ChannelHealthStatus{Name: name, CircuitBreaker: br.Snapshot()})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
