package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for notify use case operations.
var (
	// ErrUnknownChannel indicates a subscription names a channel that is not registered.
	ErrUnknownChannel = errors.New("unknown notification channel")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and notifications are being rejected to prevent continuous failures.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")

	// ErrMissingCredentials indicates the publisher has no credentials for the channel.
	ErrMissingCredentials = errors.New("channel credentials not configured")

	// ErrSubscriptionInactive is returned when Send is called for an unsubscribed recipient.
	ErrSubscriptionInactive = errors.New("subscription is inactive")
)

// NotificationFailure is returned by Dispatcher.Send whenever a message was not delivered.
// Unsubscribed is true when the failure was permanent and the subscription has been deactivated.
type NotificationFailure struct {
	Channel        string
	SubscriptionID int64
	Outcome        Outcome
	Code           string
	Unsubscribed   bool
	Err            error
}

func (e *NotificationFailure) Error() string {
	msg := fmt.Sprintf("notify subscription %d via %s: %s", e.SubscriptionID, e.Channel, e.Outcome)
	if e.Code != "" {
		msg += " (code " + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NotificationFailure) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a NotificationFailure classified as permanent.
func IsPermanent(err error) bool {
	var nf *NotificationFailure
	return errors.As(err, &nf) && nf.Outcome == PermanentFailure
}
