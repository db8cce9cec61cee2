package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. Network attributes follow OpenTelemetry semantic
// conventions; proxy-specific ones use the "courier.*" namespace.
const (
	// Network attributes
	AttrClientAddress = "client.address"
	AttrServerAddress = "server.address"
	AttrServerPort    = "server.port"
	AttrPeerAddress   = "network.peer.address"

	// Request attributes
	AttrHTTPMethod = "http.request.method"
	AttrURLPath    = "url.path"

	// Proxy attributes
	AttrConnID           = "courier.conn_id"
	AttrResult           = "courier.result"
	AttrState            = "courier.state"
	AttrStatus           = "courier.error_status"
	AttrRequestBytes     = "courier.request_bytes"
	AttrResponseBytes    = "courier.response_bytes"
	AttrForwardedHeaders = "courier.headers.forwarded"
	AttrDroppedHeaders   = "courier.headers.dropped"

	// Error attributes
	AttrErrorKind    = "courier.error.kind"
	AttrErrorMessage = "error.message"
)

// SetRequestAttributes records the parsed request line.
func SetRequestAttributes(span trace.Span, method, path string) {
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrURLPath, path),
	)
}

// SetTargetAttributes records the origin server a request is routed to.
func SetTargetAttributes(span trace.Span, host string, port int) {
	span.SetAttributes(
		attribute.String(AttrServerAddress, host),
		attribute.Int(AttrServerPort, port),
	)
}

// SetUpstreamAttributes records the endpoint that accepted the upstream
// connection and the header filter counts.
func SetUpstreamAttributes(span trace.Span, peer string, forwarded, dropped int) {
	span.SetAttributes(
		attribute.String(AttrPeerAddress, peer),
		attribute.Int(AttrForwardedHeaders, forwarded),
		attribute.Int(AttrDroppedHeaders, dropped),
	)
}

// SetOutcomeAttributes records how the connection ended. A zero status is
// omitted.
func SetOutcomeAttributes(span trace.Span, result, state string, status, requestBytes int, responseBytes int64) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrResult, result),
		attribute.String(AttrState, state),
		attribute.Int(AttrRequestBytes, requestBytes),
		attribute.Int64(AttrResponseBytes, responseBytes),
	}
	if status != 0 {
		attrs = append(attrs, attribute.Int(AttrStatus, status))
	}
	span.SetAttributes(attrs...)
}

// SetErrorAttributes records an error with its classification.
//
// Example:
//
//	SetErrorAttributes(span, err, "upstream_unreachable")
func SetErrorAttributes(span trace.Span, err error, kind string) {
	if err == nil {
		return
	}
	span.SetAttributes(
		attribute.Bool("error", true),
		attribute.String(AttrErrorKind, kind),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
}

// AddEvent adds a named event to the span with optional attributes.
//
// Example:
//
//	AddEvent(span, "resolve", attribute.Int("addrs", 2))
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
