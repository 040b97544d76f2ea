// Package observability groups the logging, metrics and tracing helpers
// shared by the worker and the operator CLI.
//
// Subpackages:
//   - logging: slog setup, request IDs and context propagation
//   - metrics: Prometheus recorders for polling, outages and events
//   - tracing: OpenTelemetry spans for publisher requests and the ops server
package observability
