package logging

import "context"

// contextKey is also the attribute name the field is logged under.
type contextKey string

// Fields picked up from the context by every handler built by New, in
// output order.
const (
	ConnIDKey     contextKey = "conn_id"
	ClientAddrKey contextKey = "client_addr"
	TargetHostKey contextKey = "target_host"
	RequestIDKey  contextKey = "request_id"
	TraceIDKey    contextKey = "trace_id"
)

var contextKeys = []contextKey{ConnIDKey, ClientAddrKey, TargetHostKey, RequestIDKey, TraceIDKey}

func with(ctx context.Context, key contextKey, v string) context.Context {
	return context.WithValue(ctx, key, v)
}

func get(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithConnID tags ctx with the ID the server assigned to a client
// connection.
func WithConnID(ctx context.Context, id string) context.Context { return with(ctx, ConnIDKey, id) }

// GetConnID returns the connection ID in ctx, or "".
func GetConnID(ctx context.Context) string { return get(ctx, ConnIDKey) }

// WithClientAddr tags ctx with the client's remote address.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return with(ctx, ClientAddrKey, addr)
}

// GetClientAddr returns the client address in ctx, or "".
func GetClientAddr(ctx context.Context) string { return get(ctx, ClientAddrKey) }

// WithTargetHost tags ctx with the origin host named in the request.
func WithTargetHost(ctx context.Context, host string) context.Context {
	return with(ctx, TargetHostKey, host)
}

// GetTargetHost returns the origin host in ctx, or "".
func GetTargetHost(ctx context.Context) string { return get(ctx, TargetHostKey) }

// WithRequestID tags ctx with an admin request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, RequestIDKey, id)
}

// GetRequestID returns the admin request ID in ctx, or "".
func GetRequestID(ctx context.Context) string { return get(ctx, RequestIDKey) }

// WithTraceID tags ctx with the trace of the current connection span.
func WithTraceID(ctx context.Context, id string) context.Context { return with(ctx, TraceIDKey, id) }

// GetTraceID returns the trace ID in ctx, or "".
func GetTraceID(ctx context.Context) string { return get(ctx, TraceIDKey) }

// extractContextFields returns the non-empty context fields as slog
// key/value pairs.
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	for _, key := range contextKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}
