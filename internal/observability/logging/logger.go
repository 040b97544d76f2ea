package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
)

// NewLogger creates a structured logger with JSON output on stdout.
// LOG_LEVEL=debug enables debug output; any other value means info.
func NewLogger() *slog.Logger {
	return newLogger(os.Stdout, true)
}

// NewTextLogger creates a structured logger with human-readable text output.
// It is used by the operator CLI.
func NewTextLogger() *slog.Logger {
	return newLogger(os.Stderr, false)
}

func newLogger(w io.Writer, jsonOutput bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel <= slog.LevelWarn,
	}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewRequestID returns a fresh identifier for one unit of work (a poll run or
// a notification send).
func NewRequestID() string {
	return uuid.NewString()
}

// ContextWithRequestID stores a request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a logger that includes the request ID from the context.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := RequestIDFromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}

// FromContext returns the logger stored by WithLogger, or fallback.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	if fallback == nil {
		return slog.Default()
	}
	return fallback
}

// WithLogger stores a scoped logger, e.g. one carrying publisher fields, in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LgrAdapter exposes logger as an lgr.L for go-pkgz middlewares.
// lgr-style level prefixes ("WARN ", "ERROR ") are mapped to slog levels.
func LgrAdapter(logger *slog.Logger) lgr.L {
	return lgr.Func(func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		level := slog.LevelInfo
		for prefix, l := range map[string]slog.Level{
			"DEBUG ": slog.LevelDebug,
			"INFO ":  slog.LevelInfo,
			"WARN ":  slog.LevelWarn,
			"ERROR ": slog.LevelError,
		} {
			if strings.HasPrefix(msg, prefix) {
				level = l
				msg = strings.TrimPrefix(msg, prefix)
				break
			}
		}
		logger.Log(context.Background(), level, msg)
	})
}

type contextKey string

const (
	loggerContextKey    contextKey = "logger"
	requestIDContextKey contextKey = "request_id"
)
