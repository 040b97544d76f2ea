// Package fetcher fetches one page of a publisher feed over HTTP.
//
// A page is a JSON feature collection; the optional locator of the next page
// is carried in the Next-Page response header.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/observability/tracing"
)

// NextPageHeader carries the next page locator.
const NextPageHeader = "Next-Page"

// RequestTagHeader identifies the publisher a request is made for.
const RequestTagHeader = "X-Request-Tag"

// PageFetcher fetches feed pages. It is safe for concurrent use.
type PageFetcher struct {
	client *http.Client
	config FetchConfig
}

// NewPageFetcher creates a PageFetcher. Every redirect target is validated
// like the original URL.
func NewPageFetcher(cfg FetchConfig) *PageFetcher {
	f := &PageFetcher{config: cfg}
	f.client = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
	return f
}

// Fetch retrieves pageURL. tag is sent as X-Request-Tag so that the
// publisher's traffic can be told apart downstream.
//
// Every failure other than cancellation of ctx is returned as *FetchError:
// invalid URL, transport error, non-2xx status, oversized or malformed body.
func (f *PageFetcher) Fetch(ctx context.Context, tag, pageURL string) (*entity.FeedPage, error) {
	if err := validateURL(pageURL, f.config.DenyPrivateIPs); err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("User-Agent", f.config.UserAgent)
	if tag != "" {
		req.Header.Set(RequestTagHeader, tag)
	}
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			err = urlErr.Err
		}
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, f.config.MaxBodySize)}
	}

	features, err := DecodeFeatureCollection(body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, StatusCode: resp.StatusCode, Err: err}
	}

	return &entity.FeedPage{
		URL:      pageURL,
		Features: features,
		NextPage: strings.TrimSpace(resp.Header.Get(NextPageHeader)),
	}, nil
}
