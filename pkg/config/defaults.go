package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress     = "127.0.0.1:8080"
	DefaultClientIdleTimeout = 5 * time.Second
	DefaultMaxRequestBytes   = 65536 // 64 KiB
	DefaultRelayBufferBytes  = 32768 // 32 KiB

	// Upstream defaults
	DefaultConnectTimeout       = 10 * time.Second
	DefaultUpstreamReadTimeout  = 60 * time.Second
	DefaultUpstreamWriteTimeout = 10 * time.Second

	// Resolver defaults
	ResolverModeSystem        = "system"
	ResolverModeExternal      = "external"
	DefaultResolverMode       = ResolverModeSystem
	DefaultResolverTimeout    = 5 * time.Second
	DefaultResolverCacheTTL   = 60 * time.Second
	DefaultResolverCacheSize  = 1024
	DefaultResolverPreferIPv4 = true

	// Server defaults
	DefaultShutdownTimeout = 30 * time.Second
	DefaultReuseAddress    = true

	// Admin defaults
	DefaultAdminEnabled       = true
	DefaultAdminListenAddress = "127.0.0.1:9090"
	DefaultAdminReadTimeout   = 10 * time.Second
	DefaultAdminWriteTimeout  = 10 * time.Second

	// Access log defaults
	AccessLogBackendMemory             = "memory"
	AccessLogBackendSQLite             = "sqlite"
	SQLiteDriverCGO                    = "sqlite3"
	SQLiteDriverPure                   = "sqlite"
	DefaultAccessLogEnabled            = true
	DefaultAccessLogBackend            = AccessLogBackendMemory
	DefaultAccessLogMemoryCapacity     = 10000
	DefaultAccessLogSQLitePath         = "data/accesslog.db"
	DefaultAccessLogSQLiteDriver       = SQLiteDriverCGO
	DefaultAccessLogSQLiteMaxOpenConns = 10
	DefaultAccessLogSQLiteMaxIdleConns = 5
	DefaultAccessLogSQLiteWALMode      = true
	DefaultAccessLogSQLiteBusyTimeout  = 5 * time.Second
	DefaultRecorderAsyncBuffer         = 1000
	DefaultRecorderWriteTimeout        = 5 * time.Second
	DefaultRetentionDays               = 30
	DefaultRetentionSchedule           = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultLoggingRedact      = true
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "courier"
	DefaultMetricsSubsystem   = "proxy"
	DefaultTracingEnabled     = false
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "mercator-courier"
	DefaultOTLPInsecure       = true
	DefaultOTLPTimeout        = 10 * time.Second
	DefaultHealthEnabled      = true
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultResolverServers are the DNS servers used in external resolver mode.
var DefaultResolverServers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// DefaultDurationBuckets are histogram buckets in seconds.
var DefaultDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}

// DefaultSizeBuckets are histogram buckets in bytes.
var DefaultSizeBuckets = []float64{512, 4096, 32768, 262144, 1048576, 8388608, 67108864}

// NewDefault returns a Config with every field set to its default.
//
// Options where false or 0 is a meaningful setting are only defaulted here:
// YAML decoding into a NewDefault config keeps them unless the file says
// otherwise, while ApplyDefaults cannot tell an explicit zero from a missing
// key.
func NewDefault() *Config {
	cfg := &Config{}
	cfg.Upstream.ReadTimeout = DefaultUpstreamReadTimeout
	cfg.Upstream.WriteTimeout = DefaultUpstreamWriteTimeout
	cfg.Resolver.CacheTTL = DefaultResolverCacheTTL
	cfg.AccessLog.Retention.Days = DefaultRetentionDays
	cfg.Resolver.PreferIPv4 = DefaultResolverPreferIPv4
	cfg.Server.ReuseAddress = DefaultReuseAddress
	cfg.Admin.Enabled = DefaultAdminEnabled
	cfg.AccessLog.Enabled = DefaultAccessLogEnabled
	cfg.AccessLog.SQLite.WALMode = DefaultAccessLogSQLiteWALMode
	cfg.Telemetry.Logging.Redact = DefaultLoggingRedact
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Tracing.Enabled = DefaultTracingEnabled
	cfg.Telemetry.Tracing.OTLP.Insecure = DefaultOTLPInsecure
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ClientIdleTimeout == 0 {
		cfg.Proxy.ClientIdleTimeout = DefaultClientIdleTimeout
	}
	if cfg.Proxy.MaxRequestBytes == 0 {
		cfg.Proxy.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if cfg.Proxy.RelayBufferBytes == 0 {
		cfg.Proxy.RelayBufferBytes = DefaultRelayBufferBytes
	}

	// Upstream read and write timeouts treat 0 as disabled; see NewDefault.
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultConnectTimeout
	}

	// Resolver defaults
	if cfg.Resolver.Mode == "" {
		cfg.Resolver.Mode = DefaultResolverMode
	}
	if len(cfg.Resolver.Servers) == 0 {
		cfg.Resolver.Servers = append([]string(nil), DefaultResolverServers...)
	}
	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = DefaultResolverTimeout
	}
	if cfg.Resolver.CacheSize == 0 {
		cfg.Resolver.CacheSize = DefaultResolverCacheSize
	}

	// Server defaults
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Admin defaults
	if cfg.Admin.ListenAddress == "" {
		cfg.Admin.ListenAddress = DefaultAdminListenAddress
	}
	if cfg.Admin.ReadTimeout == 0 {
		cfg.Admin.ReadTimeout = DefaultAdminReadTimeout
	}
	if cfg.Admin.WriteTimeout == 0 {
		cfg.Admin.WriteTimeout = DefaultAdminWriteTimeout
	}

	applyAccessLogDefaults(&cfg.AccessLog)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// applyAccessLogDefaults applies default values to access log configuration.
func applyAccessLogDefaults(al *AccessLogConfig) {
	if al.Backend == "" {
		al.Backend = DefaultAccessLogBackend
	}
	if al.MemoryCapacity == 0 {
		al.MemoryCapacity = DefaultAccessLogMemoryCapacity
	}

	// SQLite defaults
	if al.SQLite.Path == "" {
		al.SQLite.Path = DefaultAccessLogSQLitePath
	}
	if al.SQLite.Driver == "" {
		al.SQLite.Driver = DefaultAccessLogSQLiteDriver
	}
	if al.SQLite.MaxOpenConns == 0 {
		al.SQLite.MaxOpenConns = DefaultAccessLogSQLiteMaxOpenConns
	}
	if al.SQLite.MaxIdleConns == 0 {
		al.SQLite.MaxIdleConns = DefaultAccessLogSQLiteMaxIdleConns
	}
	if al.SQLite.BusyTimeout == 0 {
		al.SQLite.BusyTimeout = DefaultAccessLogSQLiteBusyTimeout
	}

	// Recorder defaults
	if al.Recorder.AsyncBuffer == 0 {
		al.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if al.Recorder.WriteTimeout == 0 {
		al.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}

	// Retention defaults
	if al.Retention.PruneSchedule == "" {
		al.Retention.PruneSchedule = DefaultRetentionSchedule
	}
}

// applyTelemetryDefaults applies default values to telemetry configuration.
func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultPrometheusPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if len(t.Metrics.SizeBuckets) == 0 {
		t.Metrics.SizeBuckets = append([]float64(nil), DefaultSizeBuckets...)
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 && t.Tracing.Sampler == "ratio" {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
