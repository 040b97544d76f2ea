package metrics

import (
	"strconv"
	"time"
)

// Poll outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeFetchFailure = "fetch_failure"
	OutcomeError        = "error"
)

// Outage transitions.
const (
	TransitionOpened    = "opened"
	TransitionRefreshed = "refreshed"
	TransitionClosed    = "closed"
)

// RecordPoll records the outcome and duration of one page poll.
func RecordPoll(outcome string, duration time.Duration) {
	FeedPollTotal.WithLabelValues(outcome).Inc()
	FeedPollDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordEventsCreated records events created for a publisher.
func RecordEventsCreated(publisherID int64, count int) {
	if count <= 0 {
		return
	}
	FeedEventsCreatedTotal.WithLabelValues(strconv.FormatInt(publisherID, 10)).Add(float64(count))
}

// RecordFeatureSkipped records a feature record that could not be decoded.
func RecordFeatureSkipped(reason string) {
	FeedFeaturesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordPaginationDecision records whether pagination continued and why not.
func RecordPaginationDecision(decision string) {
	FeedPaginationTotal.WithLabelValues(decision).Inc()
}

// RecordNotificationsSuppressed records a page processed with dispatch disabled.
func RecordNotificationsSuppressed() {
	NotificationsSuppressedTotal.Inc()
}

// RecordOutageOpened records an outage being opened or refreshed.
func RecordOutageOpened(publisherID int64, alreadyOpen bool) {
	transition := TransitionOpened
	if alreadyOpen {
		transition = TransitionRefreshed
	}
	PublisherOutageTransitionsTotal.WithLabelValues(transition).Inc()
	PublisherOutageOpen.WithLabelValues(strconv.FormatInt(publisherID, 10)).Set(1)
}

// RecordOutageClosed records an outage being cleared.
func RecordOutageClosed(publisherID int64) {
	PublisherOutageTransitionsTotal.WithLabelValues(TransitionClosed).Inc()
	PublisherOutageOpen.WithLabelValues(strconv.FormatInt(publisherID, 10)).Set(0)
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
