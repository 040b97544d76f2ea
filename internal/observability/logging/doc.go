// Package logging provides structured logging utilities with context propagation.
//
// It wraps log/slog with helpers for the patterns used across the worker:
// JSON output in production, text output for the CLI, request ID propagation
// through context, and an adapter for libraries that expect a printf logger.
//
// Example usage:
//
//	logger := logging.NewLogger()
//	ctx = logging.ContextWithRequestID(ctx, logging.NewRequestID())
//	logging.WithRequestID(ctx, logger).Info("poll started")
package logging
