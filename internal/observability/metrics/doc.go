// Package metrics provides the Prometheus metrics for feed polling.
//
// It covers poll outcomes and latency, outage transitions, event creation,
// pagination decisions and database pool statistics. Notification metrics
// live next to the dispatcher in usecase/notify and queue metrics in
// infra/queue.
//
// All metrics are registered with the Prometheus default registry and exposed
// via the ops server's /metrics endpoint.
package metrics
