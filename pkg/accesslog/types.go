package accesslog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mercator-hq/courier/pkg/proxy"
)

// Record is one access log entry, written once per client connection after
// it closes.
type Record struct {
	// ID is a UUID assigned when the connection was accepted. It matches the
	// conn_id attribute on log lines for the same connection.
	ID string `json:"id"`

	// Timestamps
	StartTime  time.Time `json:"start_time"`
	RecordedAt time.Time `json:"recorded_at"`

	ClientAddr string `json:"client_addr"`

	// Request line and resolved target. Empty when the request never parsed.
	Method string `json:"method,omitempty"`
	Target string `json:"target,omitempty"`
	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	Path   string `json:"path,omitempty"`

	// Upstream is the endpoint address that accepted the connection.
	Upstream string `json:"upstream,omitempty"`

	// Result is "forwarded", "rejected" or "aborted".
	Result string `json:"result"`

	// State is the last state entered before the connection closed.
	State string `json:"state"`

	// Status is the error status written to the client, 0 if none.
	Status int `json:"status,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	ForwardedHeaders int `json:"forwarded_headers"`
	DroppedHeaders   int `json:"dropped_headers"`

	RequestBytes  int   `json:"request_bytes"`
	ResponseBytes int64 `json:"response_bytes"`

	// Durations in milliseconds
	DurationMs float64 `json:"duration_ms"`
	ResolveMs  float64 `json:"resolve_ms,omitempty"`
	ConnectMs  float64 `json:"connect_ms,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
}

// FromOutcome builds a record for a finished connection.
func FromOutcome(id, clientAddr string, out *proxy.Outcome) *Record {
	rec := &Record{
		ID:               id,
		StartTime:        out.Started,
		ClientAddr:       clientAddr,
		Method:           out.Method,
		Target:           out.Target,
		Host:             out.Host,
		Port:             out.Port,
		Path:             out.Path,
		Upstream:         out.Upstream,
		Result:           string(out.Result),
		State:            string(out.State),
		Status:           out.Status,
		ForwardedHeaders: out.ForwardedHeaders,
		DroppedHeaders:   out.DroppedHeaders,
		RequestBytes:     out.RequestBytes,
		ResponseBytes:    out.ResponseBytes,
		DurationMs:       millis(out.Duration),
		ResolveMs:        millis(out.ResolveDuration),
		ConnectMs:        millis(out.ConnectDuration),
		TraceID:          out.TraceID,
	}

	if out.Err != nil {
		rec.Error = out.Err.Error()
		rec.ErrorKind = "io"
		if pe, ok := proxy.AsProxyError(out.Err); ok {
			rec.ErrorKind = string(pe.Kind)
		}
	}

	return rec
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Query specifies filters for querying access log records.
// All filters are optional and combined with AND logic.
type Query struct {
	// Time range filters, applied to StartTime.
	StartTime *time.Time
	EndTime   *time.Time

	// Host matches the target host exactly.
	Host string

	// ClientAddr matches the client address exactly, port included.
	ClientAddr string

	// Result matches "forwarded", "rejected" or "aborted".
	Result string

	// Status matches the error status. 0 means any.
	Status int

	// Pagination
	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" by StartTime. Default: "desc".
	SortOrder string
}

// Storage is the interface for access log persistence backends.
type Storage interface {
	// Backend returns the backend name used in errors and metrics.
	Backend() string

	// Store persists a single record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the query.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the query, ignoring
	// pagination.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the query and returns how many were
	// removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// DeleteOldest removes the n records with the earliest StartTime.
	DeleteOldest(ctx context.Context, n int64) (int64, error)

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}

// NewID returns a fresh connection ID.
func NewID() string {
	return uuid.NewString()
}
