package fetcher

import (
	"fmt"
	"time"

	"feedwatch/internal/pkg/config"
)

// FetchConfig holds the configuration for page fetching.
type FetchConfig struct {
	// Timeout is the maximum duration for a single HTTP request.
	// Default: 30s
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// It is enforced while reading, not from Content-Length.
	// Default: 10485760 (10MB)
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	// Each redirect target is validated like the original URL.
	// Default: 5
	MaxRedirects int

	// DenyPrivateIPs rejects URLs resolving to private/loopback/link-local IPs.
	// Publisher endpoints are operator supplied, so this is off by default.
	// Default: false
	DenyPrivateIPs bool

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the default configuration for page fetching.
func DefaultConfig() FetchConfig {
	return FetchConfig{
		Timeout:        30 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: false,
		UserAgent:      "feedwatch/1.0",
	}
}

// Validate checks if the configuration values are valid and safe.
//
// Validation rules:
//   - Timeout: > 0
//   - MaxBodySize: 1KB-100MB
//   - MaxRedirects: 0-10
func (c *FetchConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	minBodySize := int64(1024)
	maxBodySize := int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	return nil
}

// LoadConfigFromEnv loads configuration from environment variables.
// Invalid values fall back to defaults and are returned as warnings.
//
// Environment variables:
//   - FETCH_TIMEOUT: duration string (default: 30s)
//   - FETCH_MAX_BODY_BYTES: integer in bytes (default: 10485760)
//   - FETCH_MAX_REDIRECTS: integer (default: 5)
//   - FETCH_DENY_PRIVATE_IPS: "true" or "false" (default: false)
//   - FETCH_USER_AGENT: string (default: feedwatch/1.0)
func LoadConfigFromEnv() (FetchConfig, []string) {
	cfg := DefaultConfig()
	var warnings []string

	timeout := config.LoadEnvDuration("FETCH_TIMEOUT", cfg.Timeout, func(d time.Duration) error {
		return config.ValidateDuration(d, time.Second, 5*time.Minute)
	})
	cfg.Timeout = timeout.Value
	warnings = append(warnings, timeout.Warnings...)

	bodySize := config.LoadEnvInt("FETCH_MAX_BODY_BYTES", int(cfg.MaxBodySize), func(v int) error {
		return config.ValidateIntRange(v, 1024, 100*1024*1024)
	})
	cfg.MaxBodySize = int64(bodySize.Value)
	warnings = append(warnings, bodySize.Warnings...)

	redirects := config.LoadEnvInt("FETCH_MAX_REDIRECTS", cfg.MaxRedirects, func(v int) error {
		return config.ValidateIntRange(v, 0, 10)
	})
	cfg.MaxRedirects = redirects.Value
	warnings = append(warnings, redirects.Warnings...)

	deny := config.LoadEnvBool("FETCH_DENY_PRIVATE_IPS", cfg.DenyPrivateIPs)
	cfg.DenyPrivateIPs = deny.Value
	warnings = append(warnings, deny.Warnings...)

	cfg.UserAgent = config.LoadEnvString("FETCH_USER_AGENT", cfg.UserAgent)

	return cfg, warnings
}
