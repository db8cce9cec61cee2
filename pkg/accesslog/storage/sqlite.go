package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"mercator-hq/courier/pkg/accesslog"
	"mercator-hq/courier/pkg/config"
)

// BackendSQLite is the name reported by SQLiteStorage.
const BackendSQLite = "sqlite"

// SQLiteStorage implements accesslog.Storage on SQLite. The database/sql
// driver is chosen by configuration: "sqlite3" for mattn/go-sqlite3 or
// "sqlite" for modernc.org/sqlite.
type SQLiteStorage struct {
	db     *sql.DB
	config config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, applies pragmas and creates the
// schema.
func NewSQLiteStorage(cfg config.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if cfg.Driver == "" {
		cfg.Driver = config.SQLiteDriverCGO
	}
	if cfg.Path == "" {
		return nil, accesslog.NewStorageError(BackendSQLite, "open", fmt.Errorf("database path is required"))
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "accesslog.storage.sqlite")

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, accesslog.NewStorageError(BackendSQLite, "open", err)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, accesslog.NewStorageError(BackendSQLite, "open", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite access log initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

// buildDSN encodes the pragmas in the driver's own DSN syntax so every
// pooled connection gets them, not only the first.
func buildDSN(cfg config.SQLiteConfig) (string, error) {
	busy := cfg.BusyTimeout.Milliseconds()
	params := url.Values{}

	switch cfg.Driver {
	case config.SQLiteDriverCGO:
		params.Set("_busy_timeout", fmt.Sprint(busy))
		if cfg.WALMode {
			params.Set("_journal_mode", "WAL")
		}
	case config.SQLiteDriverPure:
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
		if cfg.WALMode {
			params.Add("_pragma", "journal_mode(WAL)")
		}
	default:
		return "", fmt.Errorf("unknown sqlite driver %q", cfg.Driver)
	}

	return "file:" + cfg.Path + "?" + params.Encode(), nil
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return accesslog.NewStorageError(BackendSQLite, "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return accesslog.NewStorageError(BackendSQLite, "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return accesslog.NewStorageError(BackendSQLite, "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return accesslog.NewStorageError(BackendSQLite, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	s.logger.Debug("schema version verified", "version", version.Int64)
	return nil
}

// Backend implements accesslog.Storage.
func (s *SQLiteStorage) Backend() string { return BackendSQLite }

// Store inserts a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *accesslog.Record) error {
	recordedAt := record.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_log (`+selectColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.StartTime.UnixNano(), recordedAt.UnixNano(), record.ClientAddr,
		nullString(record.Method), nullString(record.Target), nullString(record.Host), record.Port,
		nullString(record.Path), nullString(record.Upstream),
		record.Result, record.State, record.Status, nullString(record.Error), nullString(record.ErrorKind),
		record.ForwardedHeaders, record.DroppedHeaders, record.RequestBytes, record.ResponseBytes,
		record.DurationMs, record.ResolveMs, record.ConnectMs, nullString(record.TraceID),
	)
	if err != nil {
		return accesslog.NewStorageError(BackendSQLite, "store", err)
	}
	return nil
}

// Query retrieves records matching the query.
func (s *SQLiteStorage) Query(ctx context.Context, query *accesslog.Query) ([]*accesslog.Record, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	where, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM access_log" + where

	order := "DESC"
	if query.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += " ORDER BY start_time " + order

	// LIMIT -1 means no limit in SQLite; OFFSET requires a LIMIT clause.
	limit := -1
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, accesslog.NewStorageError(BackendSQLite, "query", err)
	}
	defer rows.Close()

	records := []*accesslog.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, accesslog.NewStorageError(BackendSQLite, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, accesslog.NewStorageError(BackendSQLite, "query", err)
	}

	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *accesslog.Query) (int64, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	where, args := buildWhereClause(query)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM access_log"+where, args...).Scan(&count); err != nil {
		return 0, accesslog.NewStorageError(BackendSQLite, "count", err)
	}
	return count, nil
}

// Delete removes matching records.
func (s *SQLiteStorage) Delete(ctx context.Context, query *accesslog.Query) (int64, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	where, args := buildWhereClause(query)

	result, err := s.db.ExecContext(ctx, "DELETE FROM access_log"+where, args...)
	if err != nil {
		return 0, accesslog.NewStorageError(BackendSQLite, "delete", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, accesslog.NewStorageError(BackendSQLite, "delete", err)
	}

	s.logger.Debug("deleted access log records", "count", deleted)
	return deleted, nil
}

// DeleteOldest removes the n records with the earliest start time.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM access_log WHERE id IN (
			SELECT id FROM access_log ORDER BY start_time ASC LIMIT ?
		)`, n)
	if err != nil {
		return 0, accesslog.NewStorageError(BackendSQLite, "delete_oldest", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, accesslog.NewStorageError(BackendSQLite, "delete_oldest", err)
	}
	return deleted, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return accesslog.NewStorageError(BackendSQLite, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return accesslog.NewStorageError(BackendSQLite, "close", err)
	}
	return nil
}

// buildWhereClause returns " WHERE ..." (or "") and its arguments.
func buildWhereClause(q *accesslog.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "start_time >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "start_time <= ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.Host != "" {
		conditions = append(conditions, "host = ?")
		args = append(args, q.Host)
	}
	if q.ClientAddr != "" {
		conditions = append(conditions, "client_addr = ?")
		args = append(args, q.ClientAddr)
	}
	if q.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, q.Result)
	}
	if q.Status != 0 {
		conditions = append(conditions, "status = ?")
		args = append(args, q.Status)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRow(rows *sql.Rows) (*accesslog.Record, error) {
	var (
		r                                          accesslog.Record
		startNanos, recordedNanos                  int64
		method, target, host, path, upstream       sql.NullString
		errMsg, errKind, traceID                   sql.NullString
		port, status, forwarded, dropped, reqBytes sql.NullInt64
		respBytes                                  sql.NullInt64
		durationMs, resolveMs, connectMs           sql.NullFloat64
	)

	err := rows.Scan(
		&r.ID, &startNanos, &recordedNanos, &r.ClientAddr,
		&method, &target, &host, &port, &path, &upstream,
		&r.Result, &r.State, &status, &errMsg, &errKind,
		&forwarded, &dropped, &reqBytes, &respBytes,
		&durationMs, &resolveMs, &connectMs, &traceID,
	)
	if err != nil {
		return nil, err
	}

	r.StartTime = time.Unix(0, startNanos)
	r.RecordedAt = time.Unix(0, recordedNanos)
	r.Method = method.String
	r.Target = target.String
	r.Host = host.String
	r.Port = int(port.Int64)
	r.Path = path.String
	r.Upstream = upstream.String
	r.Status = int(status.Int64)
	r.Error = errMsg.String
	r.ErrorKind = errKind.String
	r.ForwardedHeaders = int(forwarded.Int64)
	r.DroppedHeaders = int(dropped.Int64)
	r.RequestBytes = int(reqBytes.Int64)
	r.ResponseBytes = respBytes.Int64
	r.DurationMs = durationMs.Float64
	r.ResolveMs = resolveMs.Float64
	r.ConnectMs = connectMs.Float64
	r.TraceID = traceID.String

	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
