package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "COURIER_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention COURIER_SECTION_FIELD (e.g., COURIER_PROXY_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path loads the defaults alone.
//
// The loading sequence is:
// 1. Load YAML from file over the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefault()
	} else {
		var err error
		if cfg, err = loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML data over the defaults without validating.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(val string) error
}

func stringVar(p *string) func(string) error {
	return func(val string) error {
		*p = val
		return nil
	}
}

func durationVar(p *time.Duration) func(string) error {
	return func(val string) error {
		d, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(val string) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func int64Var(p *int64) func(string) error {
	return func(val string) error {
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func floatVar(p *float64) func(string) error {
	return func(val string) error {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		*p = f
		return nil
	}
}

func boolVar(p *bool) func(string) error {
	return func(val string) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		*p = b
		return nil
	}
}

func listVar(p *[]string) func(string) error {
	return func(val string) error {
		var out []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*p = out
		return nil
	}
}

func envOverrides(cfg *Config) []envOverride {
	return []envOverride{
		// Proxy
		{"PROXY_LISTEN_ADDRESS", stringVar(&cfg.Proxy.ListenAddress)},
		{"PROXY_CLIENT_IDLE_TIMEOUT", durationVar(&cfg.Proxy.ClientIdleTimeout)},
		{"PROXY_MAX_REQUEST_BYTES", intVar(&cfg.Proxy.MaxRequestBytes)},
		{"PROXY_RELAY_BUFFER_BYTES", intVar(&cfg.Proxy.RelayBufferBytes)},

		// Upstream
		{"UPSTREAM_CONNECT_TIMEOUT", durationVar(&cfg.Upstream.ConnectTimeout)},
		{"UPSTREAM_READ_TIMEOUT", durationVar(&cfg.Upstream.ReadTimeout)},
		{"UPSTREAM_WRITE_TIMEOUT", durationVar(&cfg.Upstream.WriteTimeout)},

		// Resolver
		{"RESOLVER_MODE", stringVar(&cfg.Resolver.Mode)},
		{"RESOLVER_SERVERS", listVar(&cfg.Resolver.Servers)},
		{"RESOLVER_TIMEOUT", durationVar(&cfg.Resolver.Timeout)},
		{"RESOLVER_CACHE_TTL", durationVar(&cfg.Resolver.CacheTTL)},
		{"RESOLVER_CACHE_SIZE", intVar(&cfg.Resolver.CacheSize)},
		{"RESOLVER_PREFER_IPV4", boolVar(&cfg.Resolver.PreferIPv4)},

		// Server
		{"SERVER_MAX_CONNECTIONS", intVar(&cfg.Server.MaxConnections)},
		{"SERVER_ACCEPT_RATE", floatVar(&cfg.Server.AcceptRate)},
		{"SERVER_ACCEPT_BURST", intVar(&cfg.Server.AcceptBurst)},
		{"SERVER_SHUTDOWN_TIMEOUT", durationVar(&cfg.Server.ShutdownTimeout)},
		{"SERVER_REUSE_ADDRESS", boolVar(&cfg.Server.ReuseAddress)},

		// Admin
		{"ADMIN_ENABLED", boolVar(&cfg.Admin.Enabled)},
		{"ADMIN_LISTEN_ADDRESS", stringVar(&cfg.Admin.ListenAddress)},

		// Access log
		{"ACCESS_LOG_ENABLED", boolVar(&cfg.AccessLog.Enabled)},
		{"ACCESS_LOG_BACKEND", stringVar(&cfg.AccessLog.Backend)},
		{"ACCESS_LOG_SQLITE_PATH", stringVar(&cfg.AccessLog.SQLite.Path)},
		{"ACCESS_LOG_SQLITE_DRIVER", stringVar(&cfg.AccessLog.SQLite.Driver)},
		{"ACCESS_LOG_RETENTION_DAYS", intVar(&cfg.AccessLog.Retention.Days)},
		{"ACCESS_LOG_RETENTION_MAX_RECORDS", int64Var(&cfg.AccessLog.Retention.MaxRecords)},
		{"ACCESS_LOG_RETENTION_PRUNE_SCHEDULE", stringVar(&cfg.AccessLog.Retention.PruneSchedule)},

		// Telemetry
		{"TELEMETRY_LOGGING_LEVEL", stringVar(&cfg.Telemetry.Logging.Level)},
		{"TELEMETRY_LOGGING_FORMAT", stringVar(&cfg.Telemetry.Logging.Format)},
		{"TELEMETRY_METRICS_ENABLED", boolVar(&cfg.Telemetry.Metrics.Enabled)},
		{"TELEMETRY_METRICS_PATH", stringVar(&cfg.Telemetry.Metrics.Path)},
		{"TELEMETRY_TRACING_ENABLED", boolVar(&cfg.Telemetry.Tracing.Enabled)},
		{"TELEMETRY_TRACING_ENDPOINT", stringVar(&cfg.Telemetry.Tracing.Endpoint)},
		{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(&cfg.Telemetry.Tracing.SampleRatio)},

		{"WATCH", boolVar(&cfg.Watch)},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format COURIER_SECTION_FIELD. A value that
// does not parse for its field type is reported as a ValidationError.
func applyEnvOverrides(cfg *Config) error {
	v := &validator{}
	for _, o := range envOverrides(cfg) {
		name := EnvPrefix + o.name
		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			v.fail(name, "invalid value %q: %v", val, err)
		}
	}
	if len(v.errs) > 0 {
		return ValidationError{Errors: v.errs}
	}
	return nil
}
