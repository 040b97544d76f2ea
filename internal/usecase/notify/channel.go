// Package notify sends one event to one subscriber over a named channel and
// turns channel specific failure signals into an explicit Delivery outcome.
// Permanent failures deactivate the subscription; nothing is retried here.
package notify

import (
	"context"

	"feedwatch/internal/domain/entity"
)

// Outcome is the classification of one send attempt.
type Outcome int

const (
	Delivered Outcome = iota
	PermanentFailure
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case PermanentFailure:
		return "permanent_failure"
	case TransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Delivery is what a channel reports back for one message.
type Delivery struct {
	Outcome Outcome
	// Code is the provider error code, if any.
	Code string
	Err  error
}

func delivered() Delivery { return Delivery{Outcome: Delivered} }

func permanent(code string, err error) Delivery {
	return Delivery{Outcome: PermanentFailure, Code: code, Err: err}
}

func transient(code string, err error) Delivery {
	return Delivery{Outcome: TransientFailure, Code: code, Err: err}
}

// Message is the channel independent payload.
type Message struct {
	// To is the recipient address taken from the subscription.
	To          string
	Body        string
	Description string
	EventID     int64
}

// Channel is one notification transport.
//
// Send must never panic or retry. It classifies the provider answer:
// Delivered, PermanentFailure when the recipient can never be reached again,
// TransientFailure for everything else. creds is nil when the publisher has
// none configured for this channel.
//
// Implementations must be safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, creds *entity.ChannelCredentials, msg Message) Delivery
}
