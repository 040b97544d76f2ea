// Package entity defines the core domain entities for feed polling and
// notification dispatch: publishers and their outage state, subscriptions,
// events derived from feed features, and per-channel credentials.
package entity
