package tracing

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/courier/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName names the tracer handed to the proxy handler.
const InstrumentationName = "mercator-courier"

var errNilConfig = errors.New("tracing config is nil")

// Tracer owns the span pipeline of one courier process. A disabled Tracer
// hands out noop spans and has nothing to flush.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds the Tracer for cfg. When tracing is enabled spans are batched
// and exported to cfg.Endpoint over OTLP gRPC, and the provider becomes the
// global one. The gRPC connection is established lazily so a missing
// collector never delays startup.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
func New(cfg *config.TracingConfig, version string) (*Tracer, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if !cfg.Enabled {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	client := otlptracegrpc.NewClient(exporterOptions(cfg, version)...)
	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	t, err := build(cfg, version, sdktrace.NewBatchSpanProcessor(exporter))
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// NewWithExporter builds an enabled Tracer that hands every finished span to
// exporter synchronously. The global provider is left alone.
func NewWithExporter(cfg *config.TracingConfig, version string, exporter sdktrace.SpanExporter) (*Tracer, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	return build(cfg, version, sdktrace.NewSimpleSpanProcessor(exporter))
}

func exporterOptions(cfg *config.TracingConfig, version string) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(InstrumentationName + "/" + version)),
	}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if cfg.OTLP.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.OTLP.Timeout))
	}
	return opts
}

func build(cfg *config.TracingConfig, version string, processor sdktrace.SpanProcessor) (*Tracer, error) {
	sampler, err := createSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
	)
	return &Tracer{
		tracer:   provider.Tracer(InstrumentationName),
		provider: provider,
	}, nil
}

// Start opens a span named name as a child of the span in ctx, if any.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// Tracer exposes the OpenTelemetry tracer for the proxy handler.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// Enabled reports whether spans are recorded and exported.
func (t *Tracer) Enabled() bool {
	return t.provider != nil
}

// Shutdown exports buffered spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// SpanContext returns the span context carried by ctx.
func SpanContext(ctx context.Context) trace.SpanContext {
	return trace.SpanFromContext(ctx).SpanContext()
}

// TraceID returns the hex trace ID carried by ctx, or "" outside a trace.
func TraceID(ctx context.Context) string {
	if sc := SpanContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// SetStatus marks span Ok for a nil err and Error otherwise.
func SetStatus(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, err.Error())
}
