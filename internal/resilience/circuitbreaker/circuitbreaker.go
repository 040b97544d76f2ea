// Package circuitbreaker guards outbound notification channels with
// github.com/sony/gobreaker. One breaker is kept per channel so a failing
// provider stops receiving traffic without affecting the others.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config describes when a breaker trips and how it recovers.
type Config struct {
	Name string

	// HalfOpenProbes is the number of calls let through while half-open.
	HalfOpenProbes uint32

	// Window resets the closed-state counters. Zero keeps them until the
	// state changes.
	Window time.Duration

	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration

	// FailureRatio trips the breaker once at least MinRequests calls were
	// seen in the window.
	FailureRatio float64
	MinRequests  uint32

	// IsSuccessful decides which returned errors count as failures.
	// Nil counts every non-nil error.
	IsSuccessful func(err error) bool

	// OnStateChange is called after the logger records a transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// ForChannel returns the breaker settings for a notification channel.
func ForChannel(channel string) Config {
	return Config{
		Name:           "notify-" + channel,
		HalfOpenProbes: 3,
		Window:         60 * time.Second,
		Cooldown:       30 * time.Second,
		FailureRatio:   0.7,
		MinRequests:    10,
	}
}

// Breaker wraps gobreaker.CircuitBreaker.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// New builds a breaker. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	minRequests := cfg.MinRequests
	ratio := cfg.FailureRatio

	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.HalfOpenProbes,
		Interval:     cfg.Window,
		Timeout:      cfg.Cooldown,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings), name: cfg.Name}
}

// Run calls fn unless the breaker is open. The error from fn is returned
// unchanged; a rejected call returns gobreaker.ErrOpenState or
// gobreaker.ErrTooManyRequests, see Rejected.
func (b *Breaker) Run(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Snapshot is a point-in-time view of a breaker, rendered by the ops API.
type Snapshot struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	TotalFailures       uint32 `json:"total_failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

func (b *Breaker) Snapshot() Snapshot {
	c := b.cb.Counts()
	return Snapshot{
		Name:                b.name,
		State:               b.cb.State().String(),
		Requests:            c.Requests,
		TotalFailures:       c.TotalFailures,
		ConsecutiveFailures: c.ConsecutiveFailures,
	}
}

// Rejected reports whether err means the breaker refused the call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// StateValue maps a state to the gauge value exported for it.
func StateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
