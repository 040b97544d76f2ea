package entity

import (
	"net/url"
	"strings"
	"time"
)

// Publisher is a third-party feed provider polled on a schedule.
// Outage is the only field mutated by the polling core; everything else is
// managed externally.
type Publisher struct {
	ID       int64
	Title    string
	City     string
	Endpoint string
	Active   bool
	Outage   *Outage
}

// Outage records that a publisher's feed is currently failing to fetch.
// StartedAt is the first failure of the current outage and is preserved while
// the outage stays open; UpdatedAt and LastError track the latest failure.
type Outage struct {
	StartedAt time.Time
	UpdatedAt time.Time
	LastError string
}

// InOutage reports whether the publisher currently has an open outage.
func (p *Publisher) InOutage() bool {
	return p != nil && p.Outage != nil
}

// DisplayName returns "title for city" used in log lines and operator output.
func (p *Publisher) DisplayName() string {
	if p.City == "" {
		return p.Title
	}
	return p.Title + " for " + p.City
}

// Validate validates the Publisher fields.
func (p *Publisher) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	return ValidateEndpoint(p.Endpoint)
}

// SameHost reports whether two URLs name the same host. The comparison is
// case-insensitive and ignores the port. Unparseable URLs never match.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil || ua.Hostname() == "" {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil || ub.Hostname() == "" {
		return false
	}
	return strings.EqualFold(ua.Hostname(), ub.Hostname())
}
