package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the access log table. Timestamps are stored as Unix
// nanoseconds so ordering and range filters behave the same on both
// drivers.
const Schema = `
CREATE TABLE IF NOT EXISTS access_log (
    id TEXT PRIMARY KEY,

    start_time INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,

    client_addr TEXT NOT NULL,

    method TEXT,
    target TEXT,
    host TEXT,
    port INTEGER,
    path TEXT,
    upstream TEXT,

    result TEXT NOT NULL,
    state TEXT NOT NULL,
    status INTEGER,
    error TEXT,
    error_kind TEXT,

    forwarded_headers INTEGER,
    dropped_headers INTEGER,
    request_bytes INTEGER,
    response_bytes INTEGER,

    duration_ms REAL,
    resolve_ms REAL,
    connect_ms REAL,

    trace_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_access_log_start_time ON access_log(start_time);
CREATE INDEX IF NOT EXISTS idx_access_log_host ON access_log(host);
CREATE INDEX IF NOT EXISTS idx_access_log_result ON access_log(result);
CREATE INDEX IF NOT EXISTS idx_access_log_status ON access_log(status);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the latest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const selectColumns = `
    id, start_time, recorded_at, client_addr,
    method, target, host, port, path, upstream,
    result, state, status, error, error_kind,
    forwarded_headers, dropped_headers, request_bytes, response_bytes,
    duration_ms, resolve_ms, connect_ms, trace_id`
