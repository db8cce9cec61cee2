package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
)

var base = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func testRecord(i int, host, result string, status int) *accesslog.Record {
	return &accesslog.Record{
		ID:            fmt.Sprintf("rec-%03d", i),
		StartTime:     base.Add(time.Duration(i) * time.Minute),
		ClientAddr:    "127.0.0.1:50000",
		Method:        "GET",
		Target:        "http://" + host + "/",
		Host:          host,
		Port:          80,
		Path:          "/",
		Result:        result,
		State:         "relay_response",
		Status:        status,
		RequestBytes:  42,
		ResponseBytes: int64(100 * i),
		DurationMs:    1.5,
	}
}

// backends returns a fresh instance of every backend under test.
func backends(t *testing.T) map[string]accesslog.Storage {
	t.Helper()

	out := map[string]accesslog.Storage{
		"memory": NewMemoryStorage(100),
	}
	for _, driver := range []string{config.SQLiteDriverCGO, config.SQLiteDriverPure} {
		s, err := NewSQLiteStorage(config.SQLiteConfig{
			Path:        filepath.Join(t.TempDir(), "accesslog.db"),
			Driver:      driver,
			WALMode:     true,
			BusyTimeout: time.Second,
		}, nil)
		if err != nil {
			t.Fatalf("NewSQLiteStorage(%s) error = %v", driver, err)
		}
		out["sqlite/"+driver] = s
	}

	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func seed(t *testing.T, s accesslog.Storage) {
	t.Helper()
	records := []*accesslog.Record{
		testRecord(1, "a.example", "forwarded", 0),
		testRecord(2, "b.example", "rejected", 503),
		testRecord(3, "a.example", "rejected", 400),
		testRecord(4, "c.example", "aborted", 0),
		testRecord(5, "a.example", "forwarded", 0),
	}
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
}

func ids(records []*accesslog.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestStorage_Query(t *testing.T) {
	since := base.Add(2 * time.Minute)

	tests := []struct {
		name  string
		query *accesslog.Query
		want  []string
	}{
		{name: "all newest first", query: &accesslog.Query{}, want: []string{"rec-005", "rec-004", "rec-003", "rec-002", "rec-001"}},
		{name: "ascending", query: &accesslog.Query{SortOrder: "asc", Limit: 2}, want: []string{"rec-001", "rec-002"}},
		{name: "by host", query: &accesslog.Query{Host: "a.example"}, want: []string{"rec-005", "rec-003", "rec-001"}},
		{name: "by status", query: &accesslog.Query{Status: 503}, want: []string{"rec-002"}},
		{name: "by result", query: &accesslog.Query{Result: "rejected"}, want: []string{"rec-003", "rec-002"}},
		{name: "since", query: &accesslog.Query{StartTime: &since, SortOrder: "asc"}, want: []string{"rec-002", "rec-003", "rec-004", "rec-005"}},
		{name: "offset", query: &accesslog.Query{Offset: 3}, want: []string{"rec-002", "rec-001"}},
		{name: "no match", query: &accesslog.Query{Host: "none.example"}, want: []string{}},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := s.Query(context.Background(), tt.query)
				if err != nil {
					t.Fatalf("Query() error = %v", err)
				}
				if fmt.Sprint(ids(got)) != fmt.Sprint(tt.want) {
					t.Errorf("Query() = %v, want %v", ids(got), tt.want)
				}
			})
		}
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := testRecord(7, "example.com", "rejected", 503)
			want.Error = "Could not connect to host!"
			want.ErrorKind = "upstream_unavailable"
			want.TraceID = "4bf92f3577b34da6a3ce929d0e0e4736"
			want.Upstream = "93.184.216.34:80"
			want.ForwardedHeaders = 2
			want.DroppedHeaders = 3

			if err := s.Store(context.Background(), want); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			got, err := s.Query(context.Background(), &accesslog.Query{})
			if err != nil || len(got) != 1 {
				t.Fatalf("Query() = %v, %v", got, err)
			}
			r := got[0]
			if r.ID != want.ID || !r.StartTime.Equal(want.StartTime) || r.Host != want.Host ||
				r.Status != want.Status || r.Error != want.Error || r.ErrorKind != want.ErrorKind ||
				r.TraceID != want.TraceID || r.Upstream != want.Upstream ||
				r.ForwardedHeaders != 2 || r.DroppedHeaders != 3 || r.ResponseBytes != want.ResponseBytes {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", r, want)
			}
		})
	}
}

func TestStorage_CountAndDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)
			ctx := context.Background()

			n, err := s.Count(ctx, &accesslog.Query{Host: "a.example"})
			if err != nil || n != 3 {
				t.Fatalf("Count() = %d, %v; want 3", n, err)
			}

			cutoff := base.Add(2 * time.Minute)
			deleted, err := s.Delete(ctx, &accesslog.Query{EndTime: &cutoff})
			if err != nil || deleted != 2 {
				t.Fatalf("Delete() = %d, %v; want 2", deleted, err)
			}

			deleted, err = s.DeleteOldest(ctx, 2)
			if err != nil || deleted != 2 {
				t.Fatalf("DeleteOldest() = %d, %v; want 2", deleted, err)
			}

			left, _ := s.Query(ctx, &accesslog.Query{})
			if fmt.Sprint(ids(left)) != "[rec-005]" {
				t.Errorf("remaining = %v, want [rec-005]", ids(left))
			}

			if err := s.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestMemoryStorage_Eviction(t *testing.T) {
	s := NewMemoryStorage(3)
	for i := 1; i <= 5; i++ {
		s.Store(context.Background(), testRecord(i, "a.example", "forwarded", 0))
	}

	got, _ := s.Query(context.Background(), &accesslog.Query{SortOrder: "asc"})
	if fmt.Sprint(ids(got)) != "[rec-003 rec-004 rec-005]" {
		t.Errorf("Query() = %v", ids(got))
	}
	if s.Evicted() != 2 {
		t.Errorf("Evicted() = %d, want 2", s.Evicted())
	}

	// Storing after a delete must not overwrite live records.
	s.DeleteOldest(context.Background(), 1)
	s.Store(context.Background(), testRecord(6, "a.example", "forwarded", 0))
	got, _ = s.Query(context.Background(), &accesslog.Query{SortOrder: "asc"})
	if fmt.Sprint(ids(got)) != "[rec-004 rec-005 rec-006]" {
		t.Errorf("after delete Query() = %v", ids(got))
	}
}

func TestMemoryStorage_CopiesRecords(t *testing.T) {
	s := NewMemoryStorage(10)
	rec := testRecord(1, "a.example", "forwarded", 0)
	s.Store(context.Background(), rec)
	rec.Host = "mutated"

	got, _ := s.Query(context.Background(), &accesslog.Query{})
	if got[0].Host != "a.example" {
		t.Errorf("stored record was mutated: %q", got[0].Host)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.AccessLogConfig
		wantBackend string
		wantErr     bool
	}{
		{name: "default memory", cfg: config.AccessLogConfig{}, wantBackend: BackendMemory},
		{
			name: "sqlite",
			cfg: config.AccessLogConfig{
				Backend: config.AccessLogBackendSQLite,
				SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "a.db"), Driver: config.SQLiteDriverPure},
			},
			wantBackend: BackendSQLite,
		},
		{name: "unknown", cfg: config.AccessLogConfig{Backend: "postgres"}, wantErr: true},
		{
			name: "unknown driver",
			cfg: config.AccessLogConfig{
				Backend: config.AccessLogBackendSQLite,
				SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "b.db"), Driver: "pgx"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, nil)
			if tt.wantErr {
				var se *accesslog.StorageError
				if !errors.As(err, &se) {
					t.Fatalf("New() error = %v, want StorageError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer s.Close()
			if s.Backend() != tt.wantBackend {
				t.Errorf("Backend() = %q, want %q", s.Backend(), tt.wantBackend)
			}
		})
	}
}
