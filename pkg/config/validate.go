package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Limits beyond which a value is almost certainly a typo.
const (
	maxRequestBytesLimit = 10 * 1024 * 1024
	maxRetentionDays     = 3650
	maxCheckTimeout      = 60 * time.Second

	// The request line plus the blank-line terminator needs some room.
	minRequestBytes = 64
)

// FieldError is one invalid configuration field.
type FieldError struct {
	// Field is the dotted YAML path, e.g. "proxy.listen_address".
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects every invalid field found in one pass, so an
// operator can fix a config file in one edit.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "configuration validation failed"
	case 1:
		return "configuration validation failed: " + e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, fe := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", fe.Error())
	}
	return sb.String()
}

// validator accumulates field errors.
type validator struct {
	errs []FieldError
}

func (v *validator) fail(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// check records message against field unless ok holds.
func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.fail(field, "%s", message)
	}
}

func (v *validator) hostPort(field, addr string) {
	if addr == "" {
		v.fail(field, "listen address is required")
		return
	}
	if err := validateHostPort(addr); err != nil {
		v.fail(field, "%v", err)
	}
}

func (v *validator) path(field, p string) {
	v.check(strings.HasPrefix(p, "/"), field, "path must start with /")
}

// Validate checks cfg after defaults and overrides have been applied. It
// returns a ValidationError listing every problem, or nil.
func Validate(cfg *Config) error {
	v := &validator{}

	v.proxy(&cfg.Proxy)
	v.upstream(&cfg.Upstream)
	v.resolver(&cfg.Resolver)
	v.server(&cfg.Server)
	v.admin(&cfg.Admin, cfg.Proxy.ListenAddress)
	v.accessLog(&cfg.AccessLog)
	v.telemetry(&cfg.Telemetry)

	if len(v.errs) > 0 {
		return ValidationError{Errors: v.errs}
	}
	return nil
}

func (v *validator) proxy(cfg *ProxyConfig) {
	v.hostPort("proxy.listen_address", cfg.ListenAddress)
	v.check(cfg.ClientIdleTimeout > 0, "proxy.client_idle_timeout", "client idle timeout must be positive")
	v.check(cfg.MaxRequestBytes >= minRequestBytes, "proxy.max_request_bytes",
		fmt.Sprintf("max request bytes must be at least %d", minRequestBytes))
	v.check(cfg.MaxRequestBytes <= maxRequestBytesLimit, "proxy.max_request_bytes",
		"max request bytes exceeds reasonable limit (10MB)")
	v.check(cfg.RelayBufferBytes > 0, "proxy.relay_buffer_bytes", "relay buffer bytes must be positive")
}

func (v *validator) upstream(cfg *UpstreamConfig) {
	v.check(cfg.ConnectTimeout > 0, "upstream.connect_timeout", "connect timeout must be positive")
	v.check(cfg.ReadTimeout >= 0, "upstream.read_timeout", "read timeout must be non-negative")
	v.check(cfg.WriteTimeout >= 0, "upstream.write_timeout", "write timeout must be non-negative")
}

func (v *validator) resolver(cfg *ResolverConfig) {
	switch cfg.Mode {
	case ResolverModeSystem:
	case ResolverModeExternal:
		v.check(len(cfg.Servers) > 0, "resolver.servers", "at least one server is required in external mode")
		for i, server := range cfg.Servers {
			if err := validateHostPort(server); err != nil {
				v.fail(fmt.Sprintf("resolver.servers[%d]", i), "%v", err)
			}
		}
	default:
		v.fail("resolver.mode", "invalid mode %q: must be 'system' or 'external'", cfg.Mode)
	}

	v.check(cfg.Timeout > 0, "resolver.timeout", "timeout must be positive")
	v.check(cfg.CacheTTL >= 0, "resolver.cache_ttl", "cache TTL must be non-negative")
	v.check(cfg.CacheSize >= 0, "resolver.cache_size", "cache size must be non-negative")
}

func (v *validator) server(cfg *ServerConfig) {
	v.check(cfg.MaxConnections >= 0, "server.max_connections", "max connections must be non-negative")
	v.check(cfg.AcceptRate >= 0, "server.accept_rate", "accept rate must be non-negative")
	v.check(cfg.AcceptBurst >= 0, "server.accept_burst", "accept burst must be non-negative")
	v.check(cfg.ShutdownTimeout > 0, "server.shutdown_timeout", "shutdown timeout must be positive")
}

func (v *validator) admin(cfg *AdminConfig, proxyAddress string) {
	if !cfg.Enabled {
		return
	}

	before := len(v.errs)
	v.hostPort("admin.listen_address", cfg.ListenAddress)
	if len(v.errs) == before && cfg.ListenAddress == proxyAddress {
		v.fail("admin.listen_address", "admin and proxy cannot share a listen address")
	}
	v.check(cfg.ReadTimeout >= 0, "admin.read_timeout", "read timeout must be non-negative")
	v.check(cfg.WriteTimeout >= 0, "admin.write_timeout", "write timeout must be non-negative")
}

func (v *validator) accessLog(cfg *AccessLogConfig) {
	if !cfg.Enabled {
		return
	}

	switch cfg.Backend {
	case AccessLogBackendMemory:
		v.check(cfg.MemoryCapacity > 0, "access_log.memory_capacity", "memory capacity must be positive")
	case AccessLogBackendSQLite:
		v.check(cfg.SQLite.Path != "", "access_log.sqlite.path", "SQLite path is required when backend is 'sqlite'")
		if cfg.SQLite.Driver != SQLiteDriverCGO && cfg.SQLite.Driver != SQLiteDriverPure {
			v.fail("access_log.sqlite.driver", "invalid driver %q: must be '%s' or '%s'",
				cfg.SQLite.Driver, SQLiteDriverCGO, SQLiteDriverPure)
		}
		v.check(cfg.SQLite.MaxOpenConns >= 0, "access_log.sqlite.max_open_conns", "max open connections must be non-negative")
	default:
		v.fail("access_log.backend", "invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend)
	}

	v.check(cfg.Recorder.AsyncBuffer >= 0, "access_log.recorder.async_buffer", "async buffer must be non-negative")

	r := cfg.Retention
	v.check(r.Days >= 0, "access_log.retention.days", "retention days must be non-negative")
	v.check(r.Days <= maxRetentionDays, "access_log.retention.days",
		fmt.Sprintf("retention days exceeds reasonable limit (%d)", maxRetentionDays))
	v.check(r.MaxRecords >= 0, "access_log.retention.max_records", "max records must be non-negative")
	if r.PruneSchedule != "" {
		if _, err := cron.ParseStandard(r.PruneSchedule); err != nil {
			v.fail("access_log.retention.prune_schedule", "invalid cron expression: %v", err)
		}
	}
}

func (v *validator) telemetry(cfg *TelemetryConfig) {
	oneOf(v, "telemetry.logging.level", "logging level", cfg.Logging.Level, "debug", "info", "warn", "error")
	oneOf(v, "telemetry.logging.format", "logging format", cfg.Logging.Format, "json", "text", "console")
	for i, p := range cfg.Logging.RedactPatterns {
		v.check(p.Pattern != "", fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i), "pattern is required")
	}

	if cfg.Metrics.Enabled {
		v.path("telemetry.metrics.path", cfg.Metrics.Path)
	}

	t := cfg.Tracing
	v.check(!t.Enabled || t.Endpoint != "", "telemetry.tracing.endpoint", "tracing endpoint is required when tracing is enabled")
	oneOf(v, "telemetry.tracing.sampler", "sampler", t.Sampler, "always", "never", "ratio")
	v.check(t.SampleRatio >= 0 && t.SampleRatio <= 1, "telemetry.tracing.sample_ratio", "sample ratio must be between 0.0 and 1.0")

	h := cfg.Health
	if !h.Enabled {
		return
	}
	v.path("telemetry.health.liveness_path", h.LivenessPath)
	v.path("telemetry.health.readiness_path", h.ReadinessPath)
	v.path("telemetry.health.version_path", h.VersionPath)
	v.check(h.CheckTimeout >= 0, "telemetry.health.check_timeout", "check timeout must be non-negative")
	v.check(h.CheckTimeout <= maxCheckTimeout, "telemetry.health.check_timeout", "check timeout exceeds reasonable limit (60s)")
}

// oneOf requires value to be one of allowed.
func oneOf(v *validator, field, what, value string, allowed ...string) {
	switch {
	case value == "":
		v.fail(field, "%s is required", what)
	case !slices.Contains(allowed, value):
		v.fail(field, "invalid %s %q: must be one of %s", what, value, strings.Join(allowed, ", "))
	}
}

// validateHostPort checks a "host:port" address with a numeric port. Port
// 0 is accepted and asks the kernel for a free port.
func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %v", addr, err)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port in address %q", addr)
	}
	return nil
}
