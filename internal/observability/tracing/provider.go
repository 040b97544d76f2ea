package tracing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"feedwatch/internal/pkg/config"
)

// ProviderConfig controls the SDK tracer provider.
type ProviderConfig struct {
	Enabled       bool
	SamplePercent int
	ServiceName   string
	Version       string
}

// LoadProviderConfigFromEnv reads TRACING_ENABLED (default false) and
// TRACING_SAMPLE_PERCENT (0-100, default 100). Invalid values fall back to
// their defaults and are returned as warnings.
func LoadProviderConfigFromEnv(serviceName, version string) (ProviderConfig, []string) {
	enabled := config.LoadEnvBool("TRACING_ENABLED", false)
	percent := config.LoadEnvInt("TRACING_SAMPLE_PERCENT", 100, func(v int) error {
		return config.ValidateIntRange(v, 0, 100)
	})

	var warnings []string
	warnings = append(warnings, enabled.Warnings...)
	warnings = append(warnings, percent.Warnings...)
	return ProviderConfig{
		Enabled:       enabled.Value,
		SamplePercent: percent.Value,
		ServiceName:   serviceName,
		Version:       version,
	}, warnings
}

// Setup installs an SDK tracer provider that writes finished spans to logger
// at debug level, and the W3C trace context propagator. With tracing
// disabled the global no-op provider is left in place. The returned function
// flushes pending spans.
func Setup(cfg ProviderConfig, logger *slog.Logger) func(context.Context) error {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }
	}
	if logger == nil {
		logger = slog.Default()
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(float64(cfg.SamplePercent)/100))),
		sdktrace.WithBatcher(NewLogExporter(logger)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracing enabled", slog.Int("sample_percent", cfg.SamplePercent))
	return tp.Shutdown
}

// LogExporter is a sdktrace.SpanExporter that logs each finished span.
type LogExporter struct {
	logger *slog.Logger
}

func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.String("span_id", s.SpanContext().SpanID().String()),
			slog.String("span", s.Name()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime()).Round(time.Microsecond)),
			slog.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		if desc := s.Status().Description; desc != "" {
			attrs = append(attrs, slog.String("error", desc))
		}
		e.logger.DebugContext(ctx, "span finished", attrs...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
