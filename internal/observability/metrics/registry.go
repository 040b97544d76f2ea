package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll metrics track individual page fetches
var (
	// FeedPollTotal counts poll invocations by outcome
	FeedPollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_poll_total",
			Help: "Total number of feed page polls",
		},
		[]string{"outcome"}, // outcome: success, fetch_failure, error
	)

	// FeedPollDuration measures one page poll including processing
	FeedPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_poll_duration_seconds",
			Help:    "Time taken to poll and process one feed page",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)

	// FeedEventsCreatedTotal counts events created from feed features
	FeedEventsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_created_total",
			Help: "Total number of events created from feed features",
		},
		[]string{"publisher_id"},
	)

	// FeedFeaturesSkippedTotal counts feature records that could not be decoded
	FeedFeaturesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_features_skipped_total",
			Help: "Total number of feature records skipped during decoding",
		},
		[]string{"reason"},
	)

	// FeedPaginationTotal counts continuation decisions
	FeedPaginationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pagination_decisions_total",
			Help: "Total number of pagination decisions by result",
		},
		[]string{"decision"}, // decision: continue, no_new_events, no_next_page, cross_host, page_limit
	)

	// NotificationsSuppressedTotal counts pages processed while dispatch is disabled
	NotificationsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_notifications_suppressed_total",
			Help: "Total number of pages whose processing was skipped because notifications are disabled",
		},
	)
)

// Outage metrics track publisher health
var (
	// PublisherOutageOpen is 1 while a publisher has an open outage
	PublisherOutageOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "publisher_outage_open",
			Help: "1 if the publisher currently has an open outage, 0 otherwise",
		},
		[]string{"publisher_id"},
	)

	// PublisherOutageTransitionsTotal counts outage state changes
	PublisherOutageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_outage_transitions_total",
			Help: "Total number of outage transitions",
		},
		[]string{"transition"}, // transition: opened, refreshed, closed
	)
)

// Database metrics track the connection pool
var (
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
