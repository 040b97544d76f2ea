package tracing

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return exporter
}

func TestStartPublisherRequest(t *testing.T) {
	exporter := setupExporter(t)

	_, span := StartPublisherRequest(context.Background(), "request.publisher.7", 7, "https://h.example.com/p1", 1)
	RecordError(span, errors.New("status 503"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "request.publisher.7", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int64("publisher.id", 7))
	assert.Contains(t, spans[0].Attributes, attribute.Int("feed.page", 1))
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestRecordError_NilIsNoop(t *testing.T) {
	exporter := setupExporter(t)

	_, span := GetTracer().Start(context.Background(), "ok")
	RecordError(span, nil)
	span.End()

	require.Len(t, exporter.GetSpans(), 1)
	assert.Equal(t, codes.Unset, exporter.GetSpans()[0].Status.Code)
}

func TestInjectHeaders(t *testing.T) {
	setupExporter(t)

	ctx, span := GetTracer().Start(context.Background(), "outgoing")
	defer span.End()

	h := http.Header{}
	InjectHeaders(ctx, h)
	assert.NotEmpty(t, h.Get("traceparent"))
}

func TestMiddleware_CreatesSpan(t *testing.T) {
	exporter := setupExporter(t)

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /health/ready", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.Int("http.status_code", http.StatusServiceUnavailable))
	assert.Contains(t, spans[0].Attributes, attribute.Bool("error", true))
	assert.NotEmpty(t, rr.Header().Get("X-Trace-Id"))
}

func TestLoadProviderConfigFromEnv(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACING_SAMPLE_PERCENT", "25")

	cfg, warnings := LoadProviderConfigFromEnv("feedwatch-worker", "1.2.3")

	assert.Empty(t, warnings)
	assert.Equal(t, ProviderConfig{Enabled: true, SamplePercent: 25, ServiceName: "feedwatch-worker", Version: "1.2.3"}, cfg)
}

func TestLoadProviderConfigFromEnv_Fallback(t *testing.T) {
	t.Setenv("TRACING_SAMPLE_PERCENT", "250")

	cfg, warnings := LoadProviderConfigFromEnv("feedwatch-worker", "dev")

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 100, cfg.SamplePercent)
	assert.Len(t, warnings, 1)
}

func TestSetup_DisabledKeepsGlobalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()

	shutdown := Setup(ProviderConfig{Enabled: false}, nil)

	assert.Same(t, prev, otel.GetTracerProvider())
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_ExportsPublisherSpansToLog(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown := Setup(ProviderConfig{Enabled: true, SamplePercent: 100, ServiceName: "feedwatch-worker"}, logger)

	_, span := StartPublisherRequest(context.Background(), "request.publisher.9", 9, "https://h.example.com/p1", 2)
	RecordError(span, errors.New("status 502"))
	span.End()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"msg":"span finished"`)
	assert.Contains(t, out, `"span":"request.publisher.9"`)
	assert.Contains(t, out, `"publisher.id":"9"`)
	assert.Contains(t, out, `"error":"status 502"`)
}
