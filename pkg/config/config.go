package config

import "time"

// Config is the root configuration structure for Mercator Courier.
// It contains all configuration sections for the forwarding proxy, upstream
// connections, name resolution, connection handling, the admin interface,
// the access log, and telemetry.
type Config struct {
	// Proxy contains the client-facing proxy listener and request limits.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains timeouts for connections to origin servers.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Resolver selects and configures target host resolution.
	Resolver ResolverConfig `yaml:"resolver"`

	// Server contains connection admission and shutdown settings.
	Server ServerConfig `yaml:"server"`

	// Admin contains the admin HTTP listener (metrics, health, access log).
	Admin AdminConfig `yaml:"admin"`

	// AccessLog contains per-connection access log storage and retention.
	AccessLog AccessLogConfig `yaml:"access_log"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch enables automatic reloading when the configuration file changes.
	// Only the log level is applied at runtime; other changes need a restart.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ProxyConfig contains configuration for the client-facing proxy listener.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ClientIdleTimeout bounds each read while waiting for the request head.
	// A client that stays silent this long is disconnected without a reply.
	// Default: 5s
	ClientIdleTimeout time.Duration `yaml:"client_idle_timeout"`

	// MaxRequestBytes is the inbound buffer capacity. A request head that
	// does not fit is answered with 400 "Request too large!".
	// Default: 65536 (64 KiB)
	MaxRequestBytes int `yaml:"max_request_bytes"`

	// RelayBufferBytes is the chunk size used when relaying origin bytes.
	// Default: 32768 (32 KiB)
	RelayBufferBytes int `yaml:"relay_buffer_bytes"`
}

// UpstreamConfig contains timeouts for origin connections.
type UpstreamConfig struct {
	// ConnectTimeout bounds each connect attempt to a resolved endpoint.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout bounds each read from the origin while relaying.
	// 0 disables the timeout.
	// Default: 60s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds sending the rebuilt request to the origin.
	// 0 disables the timeout.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ResolverConfig configures how target hosts are resolved.
type ResolverConfig struct {
	// Mode selects the resolver.
	// Options: "system" (operating system resolver), "external" (query DNS
	// servers directly with caching)
	// Default: "system"
	Mode string `yaml:"mode"`

	// Servers are the DNS servers queried in "external" mode, in order.
	// Format: "host:port"
	// Default: ["8.8.8.8:53", "1.1.1.1:53"]
	Servers []string `yaml:"servers"`

	// Timeout bounds each DNS query.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// CacheTTL is how long an answer is reused. 0 disables caching.
	// Default: 60s
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached hosts.
	// Default: 1024
	CacheSize int `yaml:"cache_size"`

	// PreferIPv4 tries IPv4 endpoints before IPv6 endpoints.
	// Default: true
	PreferIPv4 bool `yaml:"prefer_ipv4"`
}

// ServerConfig contains connection admission and lifecycle settings.
type ServerConfig struct {
	// MaxConnections caps concurrently served connections. Connections over
	// the cap receive 503 "Too many connections". 0 means unlimited.
	// Default: 0
	MaxConnections int `yaml:"max_connections"`

	// AcceptRate limits accepted connections per second. 0 means unlimited.
	// Default: 0
	AcceptRate float64 `yaml:"accept_rate"`

	// AcceptBurst is the token bucket size for AcceptRate.
	// Default: 0 (uses max(1, AcceptRate))
	AcceptBurst int `yaml:"accept_burst"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// connections during graceful shutdown. Remaining connections are
	// closed when it expires.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ReuseAddress sets SO_REUSEADDR on the listening socket.
	// Default: true
	ReuseAddress bool `yaml:"reuse_address"`
}

// AdminConfig contains configuration for the admin HTTP server.
type AdminConfig struct {
	// Enabled controls whether the admin server is started.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the admin listener address.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading an admin request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing an admin response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AccessLogConfig contains access log configuration.
type AccessLogConfig struct {
	// Enabled controls whether connection outcomes are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend specifies the storage backend for access log records.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// MemoryCapacity bounds the number of records held by the memory backend.
	// Default: 10000
	MemoryCapacity int `yaml:"memory_capacity"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder contains async recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/accesslog.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite3" (github.com/mattn/go-sqlite3, cgo),
	// "sqlite" (modernc.org/sqlite, pure Go)
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig contains access log recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the async write channel buffer. Records
	// are dropped, never blocking a connection, when the buffer is full.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is the number of days to retain access log records.
	// 0 means keep records forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords is the maximum number of records to keep.
	// 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig groups the observability settings under telemetry:.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig is telemetry.logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`      // debug, info (default), warn, error
	Format    string `yaml:"format"`     // json (default), text, console
	AddSource bool   `yaml:"add_source"` // file:line on every entry

	// Redact masks Authorization values and URL userinfo in log output.
	// Default: true
	Redact bool `yaml:"redact"`

	// RedactPatterns are applied after the built-in patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern replaces every match of Pattern with Replacement.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig is telemetry.metrics. The Prometheus endpoint is served on
// the admin listener at Path (default "/metrics").
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"` // default "courier"
	Subsystem string `yaml:"subsystem"` // default "proxy"

	// DurationBuckets are histogram buckets in seconds for connection and
	// stage durations.
	// Default: [0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// SizeBuckets are histogram buckets in bytes for relayed payloads.
	// Default: [512, 4096, 32768, 262144, 1048576, 8388608, 67108864]
	SizeBuckets []float64 `yaml:"size_buckets"`
}

// TracingConfig is telemetry.tracing. When enabled, every client
// connection becomes one span exported over OTLP gRPC.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampler is always, never or ratio (default). SampleRatio applies to
	// ratio only and defaults to 0.1.
	Sampler     string  `yaml:"sampler"`
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the collector address, e.g. "localhost:4317". Required
	// when Enabled.
	Endpoint string `yaml:"endpoint"`

	// ServiceName defaults to "mercator-courier".
	ServiceName string `yaml:"service_name"`

	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig tunes the OTLP exporter.
type OTLPConfig struct {
	Insecure bool          `yaml:"insecure"` // plaintext gRPC; default true
	Timeout  time.Duration `yaml:"timeout"`  // per export; default 10s
}

// HealthConfig is telemetry.health. The probes are served on the admin
// listener.
type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	LivenessPath  string `yaml:"liveness_path"`  // default "/health"
	ReadinessPath string `yaml:"readiness_path"` // default "/ready"
	VersionPath   string `yaml:"version_path"`   // default "/version"

	// CheckTimeout bounds each readiness check. Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
