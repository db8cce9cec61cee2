package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: NewDefault()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the proxy listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Proxy.ListenAddress = addr
	return b
}

// WithClientIdleTimeout sets the client idle timeout.
func (b *ConfigBuilder) WithClientIdleTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Proxy.ClientIdleTimeout = d
	return b
}

// WithExternalResolver switches to external DNS mode with the given servers.
func (b *ConfigBuilder) WithExternalResolver(servers ...string) *ConfigBuilder {
	b.cfg.Resolver.Mode = ResolverModeExternal
	b.cfg.Resolver.Servers = servers
	return b
}

// WithMaxConnections sets the connection cap.
func (b *ConfigBuilder) WithMaxConnections(n int) *ConfigBuilder {
	b.cfg.Server.MaxConnections = n
	return b
}

// WithAccessLogBackend sets the access log backend.
func (b *ConfigBuilder) WithAccessLogBackend(backend string) *ConfigBuilder {
	b.cfg.AccessLog.Backend = backend
	return b
}

// WithSQLitePath sets the SQLite database path for the access log.
func (b *ConfigBuilder) WithSQLitePath(path string) *ConfigBuilder {
	b.cfg.AccessLog.SQLite.Path = path
	b.cfg.AccessLog.Backend = AccessLogBackendSQLite
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracingEnabled sets whether tracing is enabled.
func (b *ConfigBuilder) WithTracingEnabled(enabled bool, endpoint string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = enabled
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
