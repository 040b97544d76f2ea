package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackMessage is the content of one webhook post.
type SlackMessage struct {
	Title       string
	Description string
	// Context is shown under the message, usually the publisher name.
	Context string
}

// SlackClient posts messages to Slack incoming webhooks. The webhook URL
// is the recipient address, so one client serves every subscription.
type SlackClient struct {
	httpClient  *http.Client
	rateLimiter *KeyedRateLimiter
}

// NewSlackClient creates a SlackClient.
// Each webhook is limited to 1 message per second (the Slack webhook limit).
func NewSlackClient(config SlackConfig) *SlackClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SlackClient{
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewKeyedRateLimiter(20, 20, 1, 1),
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`
	Blocks []SlackBlock `json:"blocks"`
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`
	Text     *SlackTextObject  `json:"text,omitempty"`
	Elements []SlackTextObject `json:"elements,omitempty"`
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxContextTextLength = 2000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

func buildBlockKitPayload(msg SlackMessage) SlackWebhookPayload {
	fallback := truncate(msg.Title, maxFallbackLength, slackTruncationSuffix)

	sectionText := "*" + msg.Title + "*"
	if msg.Description != "" {
		sectionText += "\n\n" + msg.Description
	}

	blocks := []SlackBlock{{
		Type: "section",
		Text: &SlackTextObject{
			Type: "mrkdwn",
			Text: truncate(sectionText, maxSectionTextLength, slackTruncationSuffix),
		},
	}}
	if msg.Context != "" {
		blocks = append(blocks, SlackBlock{
			Type: "context",
			Elements: []SlackTextObject{{
				Type: "mrkdwn",
				Text: truncate(msg.Context, maxContextTextLength, slackTruncationSuffix),
			}},
		})
	}

	return SlackWebhookPayload{Text: fallback, Blocks: blocks}
}

// Post sends msg to the webhook. Slack answers failures with a short plain
// text body such as "no_service" or "channel_not_found", which becomes APIError.Code.
func (s *SlackClient) Post(ctx context.Context, webhookURL string, msg SlackMessage) error {
	if err := s.rateLimiter.Allow(ctx, webhookURL); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	jsonData, err := json.Marshal(buildBlockKitPayload(msg))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// the URL embeds the webhook secret
		return fmt.Errorf("execute http request: %w", redactURLError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	code := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		if e := gjson.GetBytes(body, "error"); e.Exists() {
			code = e.String()
		}
	}

	apiErr := &APIError{
		Provider:   "slack",
		StatusCode: resp.StatusCode,
		Code:       code,
		Message:    "webhook rejected message",
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = extractRetryAfter(resp, body, "retry_after")
	}
	return apiErr
}
