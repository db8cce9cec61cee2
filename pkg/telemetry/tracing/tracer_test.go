package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/courier/pkg/config"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Enabled:     true,
		Sampler:     SamplerAlways,
		ServiceName: "test-service",
	}, "test", exporter)
	if err != nil {
		t.Fatalf("Failed to create tracer: %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "disabled tracing",
			config: &config.TracingConfig{
				Enabled:     false,
				ServiceName: "test-service",
			},
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "ratio",
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				OTLP: config.OTLPConfig{
					Insecure: true,
					Timeout:  time.Second,
				},
			},
			wantEnabled: true,
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "sometimes",
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				OTLP:        config.OTLPConfig{Insecure: true},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer tracer.Shutdown(context.Background())

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
			if tracer.Tracer() == nil {
				t.Error("Tracer() returned nil")
			}
		})
	}
}

func TestTracer_DisabledIsNoop(t *testing.T) {
	tracer, err := New(&config.TracingConfig{Enabled: false}, "test")
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tracer.Start(context.Background(), "proxy.connection")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer produced a valid span context")
	}
	if TraceID(ctx) != "" {
		t.Error("disabled tracer exposed trace IDs")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "child" || spans[1].Name != "parent" {
		t.Errorf("span order = %q, %q", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child span is not linked to parent")
	}
	if spans[0].SpanContext.TraceID() != spans[1].SpanContext.TraceID() {
		t.Error("child and parent have different trace IDs")
	}
}

func TestContextHelpers(t *testing.T) {
	tracer, _ := newRecordingTracer(t)

	if TraceID(context.Background()) != "" {
		t.Error("expected empty trace ID without span")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if got := SpanContext(ctx); !got.Equal(span.SpanContext()) {
		t.Error("SpanContext returned a different span context")
	}
	if got := TraceID(ctx); got != span.SpanContext().TraceID().String() || len(got) != 32 {
		t.Errorf("TraceID() = %q", got)
	}
	if !SpanContext(ctx).IsSampled() {
		t.Error("always sampler should sample")
	}
}

func TestSetErrorAndStatus(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, ok := tracer.Start(context.Background(), "ok")
	SetErrorAttributes(ok, nil, "none")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	err := errors.New("connection refused")
	SetErrorAttributes(failed, err, "upstream_unreachable")
	SetStatus(failed, err)
	failed.End()

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	if spans[0].Status.Code != codes.Ok {
		t.Errorf("ok span status = %v", spans[0].Status.Code)
	}
	if len(spans[0].Events) != 0 {
		t.Error("nil error recorded an event")
	}

	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "connection refused" {
		t.Errorf("failed span status = %+v", spans[1].Status)
	}
	if len(spans[1].Events) != 1 || spans[1].Events[0].Name != "exception" {
		t.Errorf("expected one exception event, got %+v", spans[1].Events)
	}
	attrs := attrMap(spans[1].Attributes)
	if v := attrs[AttrErrorMessage]; v.AsString() != "connection refused" {
		t.Errorf("error.message = %q", v.AsString())
	}
	if v := attrs[AttrErrorKind]; v.AsString() != "upstream_unreachable" {
		t.Errorf("error.kind = %q", v.AsString())
	}
}

func TestAttributeHelpers(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "proxy.connection")
	SetRequestAttributes(span, "GET", "/index.html")
	SetTargetAttributes(span, "example.com", 8080)
	SetUpstreamAttributes(span, "93.184.216.34:8080", 2, 1)
	SetOutcomeAttributes(span, "rejected", "error_response", 503, 64, 0)
	AddEvent(span, "resolve", attribute.Int("addrs", 1))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	attrs := attrMap(spans[0].Attributes)

	checks := map[attribute.Key]string{
		AttrHTTPMethod:    "GET",
		AttrURLPath:       "/index.html",
		AttrServerAddress: "example.com",
		AttrPeerAddress:   "93.184.216.34:8080",
		AttrResult:        "rejected",
		AttrState:         "error_response",
	}
	for key, want := range checks {
		if got := attrs[key].AsString(); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if got := attrs[AttrServerPort].AsInt64(); got != 8080 {
		t.Errorf("%s = %d", AttrServerPort, got)
	}
	if got := attrs[AttrStatus].AsInt64(); got != 503 {
		t.Errorf("%s = %d", AttrStatus, got)
	}
	if got := attrs[AttrDroppedHeaders].AsInt64(); got != 1 {
		t.Errorf("%s = %d", AttrDroppedHeaders, got)
	}
	if len(spans[0].Events) != 1 || spans[0].Events[0].Name != "resolve" {
		t.Errorf("events = %+v", spans[0].Events)
	}
}

func TestSetOutcomeAttributes_OmitsZeroStatus(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	_, span := tracer.Start(context.Background(), "proxy.connection")
	SetOutcomeAttributes(span, "forwarded", "relay_response", 0, 80, 2048)
	span.End()

	attrs := attrMap(exporter.GetSpans()[0].Attributes)
	if _, ok := attrs[AttrStatus]; ok {
		t.Error("zero status should not be recorded")
	}
	if got := attrs[AttrResponseBytes].AsInt64(); got != 2048 {
		t.Errorf("response bytes = %d", got)
	}
}

func TestHTTPMiddleware(t *testing.T) {
	tracer, exporter := newRecordingTracer(t)

	var gotTraceID string
	handler := tracer.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if gotTraceID == "" {
		t.Fatal("handler context has no trace")
	}
	if rec.Header().Get(TraceIDHeader) != gotTraceID {
		t.Errorf("%s = %q, want %q", TraceIDHeader, rec.Header().Get(TraceIDHeader), gotTraceID)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "admin /metrics" {
		t.Fatalf("spans = %+v", spans)
	}
	if spans[0].SpanKind != trace.SpanKindServer {
		t.Errorf("span kind = %v", spans[0].SpanKind)
	}
}
