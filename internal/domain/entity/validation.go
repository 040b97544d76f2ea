package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength defines the maximum allowed length for feed endpoints.
const maxURLLength = 2048

// ValidateEndpoint validates the format of a publisher feed URL.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, and has a host.
// Network-level checks (private address blocking) belong to the fetcher.
func ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "endpoint",
			Message: fmt.Sprintf("endpoint must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "endpoint", Message: "endpoint is not a valid URL"}
	}

	// HTTPまたはHTTPSスキームのみ許可
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint must have a valid host"}
	}

	return nil
}
