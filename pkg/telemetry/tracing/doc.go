// Package tracing provides OpenTelemetry tracing for Mercator Courier.
//
// # Overview
//
// Each client connection gets one "proxy.connection" server span. The proxy
// handler adds an event for every state it enters (parse, resolve, connect,
// send_request, relay_response, error_response) and, when the connection
// closes, the outcome attributes: result, last state, error status and byte
// counts. The trace ID is copied into the access log record so a slow or
// failed request can be looked up in the tracing backend.
//
// Spans are exported over OTLP gRPC. When tracing is disabled the package
// hands out a noop tracer, so callers never branch on configuration.
//
// # Sampling Strategies
//
//   - always: Sample all connections (development/debugging)
//   - never: Sample nothing
//   - ratio: Sample a fraction of connections by trace ID (production)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	handler := proxy.NewHandler(proxy.Options{Tracer: tracer.Tracer()})
//
// # Admin Requests
//
// HTTPMiddleware wraps the admin server. It honours an incoming W3C
// traceparent and returns the trace ID in X-Trace-ID.
//
// # Testing
//
// NewWithExporter accepts any sdktrace.SpanExporter, typically a
// tracetest.InMemoryExporter, and exports synchronously.
package tracing
