package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:      "bad listen address",
			modify:    func(c *Config) { c.Proxy.ListenAddress = "localhost" },
			wantField: "proxy.listen_address",
		},
		{
			name:      "non-numeric port",
			modify:    func(c *Config) { c.Proxy.ListenAddress = "127.0.0.1:http" },
			wantField: "proxy.listen_address",
		},
		{
			name:      "zero idle timeout",
			modify:    func(c *Config) { c.Proxy.ClientIdleTimeout = 0 },
			wantField: "proxy.client_idle_timeout",
		},
		{
			name:      "tiny request buffer",
			modify:    func(c *Config) { c.Proxy.MaxRequestBytes = 16 },
			wantField: "proxy.max_request_bytes",
		},
		{
			name:      "negative upstream read timeout",
			modify:    func(c *Config) { c.Upstream.ReadTimeout = -time.Second },
			wantField: "upstream.read_timeout",
		},
		{
			name:      "unknown resolver mode",
			modify:    func(c *Config) { c.Resolver.Mode = "mdns" },
			wantField: "resolver.mode",
		},
		{
			name: "external resolver without servers",
			modify: func(c *Config) {
				c.Resolver.Mode = ResolverModeExternal
				c.Resolver.Servers = nil
			},
			wantField: "resolver.servers",
		},
		{
			name: "external resolver bad server",
			modify: func(c *Config) {
				c.Resolver.Mode = ResolverModeExternal
				c.Resolver.Servers = []string{"8.8.8.8"}
			},
			wantField: "resolver.servers[0]",
		},
		{
			name:      "negative max connections",
			modify:    func(c *Config) { c.Server.MaxConnections = -1 },
			wantField: "server.max_connections",
		},
		{
			name:      "admin shares proxy address",
			modify:    func(c *Config) { c.Admin.ListenAddress = c.Proxy.ListenAddress },
			wantField: "admin.listen_address",
		},
		{
			name: "admin disabled skips checks",
			modify: func(c *Config) {
				c.Admin.Enabled = false
				c.Admin.ListenAddress = "bogus"
			},
		},
		{
			name:      "unknown sqlite driver",
			modify:    func(c *Config) { c.AccessLog.Backend = "sqlite"; c.AccessLog.SQLite.Driver = "pgx" },
			wantField: "access_log.sqlite.driver",
		},
		{
			name:      "bad prune schedule",
			modify:    func(c *Config) { c.AccessLog.Retention.PruneSchedule = "every day" },
			wantField: "access_log.retention.prune_schedule",
		},
		{
			name:      "invalid log level",
			modify:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "tracing without endpoint",
			modify:    func(c *Config) { c.Telemetry.Tracing.Enabled = true },
			wantField: "telemetry.tracing.endpoint",
		},
		{
			name:      "sample ratio out of range",
			modify:    func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 },
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name:      "relative health path",
			modify:    func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" },
			wantField: "telemetry.health.readiness_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("expected valid config, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("unexpected message %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	got := multi.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("unexpected message %q", got)
	}
}
