package notify

import (
	"context"
	"errors"
	"net/http"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/infra/notifier"
)

// Webhook answers meaning the webhook (the subscription address) is gone.
var slackUnsubscribeCodes = map[string]struct{}{
	"no_service":          {},
	"no_active_hooks":     {},
	"channel_not_found":   {},
	"channel_is_archived": {},
	"invalid_token":       {},
}

// SlackPoster is implemented by *notifier.SlackClient.
type SlackPoster interface {
	Post(ctx context.Context, webhookURL string, msg notifier.SlackMessage) error
}

// SlackChannel delivers events to a Slack incoming webhook. The subscription
// address is the webhook URL, so no publisher credentials are needed.
type SlackChannel struct {
	poster SlackPoster
}

func NewSlackChannel(poster SlackPoster) *SlackChannel {
	return &SlackChannel{poster: poster}
}

func (c *SlackChannel) Name() string { return entity.ChannelSlack }

func (c *SlackChannel) Send(ctx context.Context, _ *entity.ChannelCredentials, msg Message) Delivery {
	err := c.poster.Post(ctx, msg.To, notifier.SlackMessage{
		Title:       msg.Body,
		Description: msg.Description,
	})
	if err == nil {
		return delivered()
	}

	var apiErr *notifier.APIError
	if errors.As(err, &apiErr) {
		if _, ok := slackUnsubscribeCodes[apiErr.Code]; ok {
			return permanent(apiErr.Code, err)
		}
		if apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusGone {
			return permanent(apiErr.Code, err)
		}
		return transient(apiErr.Code, err)
	}
	return transient("", err)
}
