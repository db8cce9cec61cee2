package accesslog

import (
	"fmt"
	"time"
)

const (
	// DefaultLimit is the number of records returned when a query sets none.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records a single query may return.
	MaxLimit = 10000
)

var validResults = map[string]bool{
	"forwarded": true,
	"rejected":  true,
	"aborted":   true,
}

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.Result != "" && !validResults[q.Result] {
		return NewQueryError(q, fmt.Errorf("invalid result: %s (must be 'forwarded', 'rejected', or 'aborted')", q.Result))
	}
	if q.Status != 0 && (q.Status < 100 || q.Status > 599) {
		return NewQueryError(q, fmt.Errorf("invalid status: %d", q.Status))
	}
	return nil
}

// ApplyDefaults fills in the default limit and sort order.
func (q *Query) ApplyDefaults() {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Matches reports whether a record passes the query filters. Pagination
// and ordering are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.StartTime.Before(*q.StartTime) {
		return false
	}
	// EndTime is inclusive, as the retention cutoff relies on it.
	if q.EndTime != nil && r.StartTime.After(*q.EndTime) {
		return false
	}
	if q.Host != "" && r.Host != q.Host {
		return false
	}
	if q.ClientAddr != "" && r.ClientAddr != q.ClientAddr {
		return false
	}
	if q.Result != "" && r.Result != q.Result {
		return false
	}
	if q.Status != 0 && r.Status != q.Status {
		return false
	}
	return true
}

// Since returns a query for records started within the last d.
func Since(d time.Duration) *Query {
	start := time.Now().Add(-d)
	return &Query{StartTime: &start}
}
