package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedwatch/internal/observability/logging"

	"github.com/tidwall/gjson"
)

// DefaultTwilioBaseURL is the production Twilio REST API host.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// maxSMSBodyLength is the Twilio limit for a single message body.
const maxSMSBodyLength = 1600

// TwilioConfig contains configuration for the Twilio SMS client.
type TwilioConfig struct {
	// BaseURL overrides the API host, used against a local stub.
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond is the send rate allowed per Twilio account.
	RequestsPerSecond float64
}

// SMS is one outbound text message.
type SMS struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	Body       string
}

// TwilioClient sends SMS through the Twilio Messages resource.
type TwilioClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *KeyedRateLimiter
}

// NewTwilioClient creates a Twilio client. Zero values fall back to the
// production host, a 10s timeout and 1 message per second per account.
func NewTwilioClient(cfg TwilioConfig) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	return &TwilioClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewKeyedRateLimiter(cfg.RequestsPerSecond*10, 10, cfg.RequestsPerSecond, 1),
	}
}

// SendSMS posts the message and returns the Twilio message SID.
// Any non-2xx answer is returned as *APIError carrying the Twilio error code.
func (c *TwilioClient) SendSMS(ctx context.Context, sms SMS) (string, error) {
	if sms.AccountSID == "" || sms.AuthToken == "" {
		return "", errors.New("twilio: account sid and auth token are required")
	}

	if err := c.rateLimiter.Allow(ctx, sms.AccountSID); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	form := url.Values{}
	form.Set("To", sms.To)
	form.Set("From", sms.From)
	form.Set("Body", truncate(sms.Body, maxSMSBodyLength, "..."))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(sms.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	req.SetBasicAuth(sms.AccountSID, sms.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sid := gjson.GetBytes(body, "sid").String()
		slog.Debug("Twilio message accepted",
			slog.String("request_id", logging.RequestIDFromContext(ctx)),
			slog.String("sid", sid),
			slog.String("status", gjson.GetBytes(body, "status").String()))
		return sid, nil
	}

	apiErr := &APIError{
		Provider:   "twilio",
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if gjson.ValidBytes(body) {
		// Twilio error bodies: {"code": 21211, "message": "...", "more_info": "...", "status": 400}
		if code := gjson.GetBytes(body, "code"); code.Exists() {
			apiErr.Code = code.String()
		}
		if msg := gjson.GetBytes(body, "message"); msg.Exists() {
			apiErr.Message = msg.String()
		}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = extractRetryAfter(resp, body, "")
	}
	return "", apiErr
}
