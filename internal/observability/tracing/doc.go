// Package tracing provides OpenTelemetry spans for outgoing publisher requests
// and for the ops HTTP server.
//
// The tracer is obtained from the global provider, so the binaries decide on
// exporters; without one configured spans are no-ops.
package tracing
