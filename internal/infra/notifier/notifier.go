// Package notifier holds the wire clients for the notification channels:
// the Twilio SMS REST API, Slack incoming webhooks and the Telegram Bot API.
//
// Clients do not retry and do not classify failures. They return an *APIError
// describing what the provider said; the notify use case decides whether that
// means the recipient is gone for good.
package notifier

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// maxResponseBytes caps how much of a provider response body is read.
const maxResponseBytes = 64 << 10

// APIError is a non-successful answer from a notification provider.
type APIError struct {
	Provider   string
	StatusCode int
	// Code is the provider specific error code, e.g. "21612" for Twilio or
	// "channel_not_found" for Slack.
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d (code %s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

// Retryable reports whether the provider signalled a temporary condition.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// extractRetryAfter reads the wait hint from a JSON body field or the Retry-After header.
func extractRetryAfter(resp *http.Response, body []byte, jsonPath string) time.Duration {
	if jsonPath != "" && gjson.ValidBytes(body) {
		if v := gjson.GetBytes(body, jsonPath); v.Exists() && v.Float() > 0 {
			return time.Duration(v.Float() * float64(time.Second))
		}
	}

	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// truncate cuts text to maxLength characters (runes), appending suffix when it
// had to cut. Provider limits count characters, not bytes.
func truncate(text string, maxLength int, suffix string) string {
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	keep := maxLength - utf8.RuneCountInString(suffix)
	if keep < 0 {
		keep = 0
	}

	// byte offset of the first rune past keep
	cut := 0
	for n := 0; n < keep && cut < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[cut:])
		cut += size
	}
	return text[:cut] + suffix
}

// redactURLError drops the request URL from transport errors.
func redactURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: "[redacted]", Err: uerr.Err}
	}
	return err
}
