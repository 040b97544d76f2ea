package entity

import (
	"encoding/json"
	"time"
)

// Event is an item derived from one feature record of a feed page.
// Its Title is used as the notification body. Events are immutable once created.
type Event struct {
	ID          int64
	PublisherID int64
	FeatureID   string
	Title       string
	Description string
	Properties  json.RawMessage
	CreatedAt   time.Time
}

// Feature is one decoded record of a fetched feature collection.
// Raw keeps the original JSON so nothing the publisher sent is lost.
type Feature struct {
	ID          string
	Title       string
	Description string
	Properties  json.RawMessage
	Raw         json.RawMessage
}

// FeedPage is a fetched document: the ordered feature records and the
// optional locator of the next page (taken from the Next-Page header).
// It is transient and never persisted.
type FeedPage struct {
	URL      string
	Features []Feature
	NextPage string
}

// HasNext reports whether the page carries a next-page locator.
func (p *FeedPage) HasNext() bool {
	return p != nil && p.NextPage != ""
}
