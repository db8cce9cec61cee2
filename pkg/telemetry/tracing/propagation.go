package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// W3C Trace Context propagation (traceparent, tracestate).
//
// Proxied HTTP/1.0 traffic never carries these headers: the header
// allow-list drops traceparent and tracestate before forwarding. Propagation
// applies to the admin HTTP server only, where a scraper or operator tool
// may send a traceparent and get its trace ID echoed back.

// TraceIDHeader is set on admin responses that belong to a valid trace.
const TraceIDHeader = "X-Trace-ID"

// Propagator returns the configured text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract extracts trace context from HTTP headers. If none is present the
// original context is returned.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context from ctx into HTTP headers.
func Inject(ctx context.Context, headers http.Header) {
	Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware extracts incoming trace context, starts a server span for
// each admin request and echoes the trace ID in the X-Trace-ID header.
//
//	mux.Handle("/", tracer.HTTPMiddleware(handler))
func (t *Tracer) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)

		ctx, span := t.Start(ctx, "admin "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(AttrHTTPMethod, r.Method),
				attribute.String(AttrURLPath, r.URL.Path),
				attribute.String(AttrClientAddress, r.RemoteAddr),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.IsValid() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
