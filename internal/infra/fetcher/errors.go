package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for page fetching.
var (
	// ErrInvalidURL indicates the URL is malformed or uses a scheme other than http/https.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP indicates the host resolves to a private, loopback or link-local address.
	ErrPrivateIP = errors.New("URL resolves to private IP address")

	// ErrBodyTooLarge indicates the response exceeded the configured size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTooManyRedirects indicates the redirect limit was exceeded.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrMalformedFeed indicates the body is not a feature collection.
	ErrMalformedFeed = errors.New("malformed feature collection")
)

// FetchError is a client or transport level failure of one page fetch.
// The poller records it as an outage.
type FetchError struct {
	URL string
	// StatusCode is 0 when no HTTP response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt may succeed.
func (e *FetchError) Retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, ErrInvalidURL) && !errors.Is(e.Err, ErrPrivateIP)
	}
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}
