package entity

import "time"

// Channel tags supported by the dispatcher.
const (
	ChannelSMS      = "sms"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
)

// Subscription binds a recipient address on one channel to a publisher.
// A subscription with UnsubscribedAt set is inactive and must not receive
// further dispatch attempts.
type Subscription struct {
	ID             int64
	PublisherID    int64
	Channel        string
	Address        string
	CreatedAt      time.Time
	UnsubscribedAt *time.Time
}

// Active reports whether the subscription can still receive notifications.
func (s *Subscription) Active() bool {
	return s.UnsubscribedAt == nil
}

// Validate validates the Subscription fields.
func (s *Subscription) Validate() error {
	if s.PublisherID <= 0 {
		return &ValidationError{Field: "publisher_id", Message: "publisher_id must be positive"}
	}
	if !IsKnownChannel(s.Channel) {
		return &ValidationError{Field: "channel", Message: "unsupported channel: " + s.Channel}
	}
	if s.Address == "" {
		return &ValidationError{Field: "address", Message: "address is required"}
	}
	return nil
}

// IsKnownChannel reports whether name is one of the supported channel tags.
func IsKnownChannel(name string) bool {
	switch name {
	case ChannelSMS, ChannelSlack, ChannelTelegram:
		return true
	}
	return false
}
