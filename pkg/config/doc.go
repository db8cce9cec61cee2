// Package config provides configuration management for Mercator Courier.
//
// Configuration is loaded from a YAML file, decoded over the defaults from
// NewDefault, then overridden by environment variables and validated.
// Validation collects every problem into a single ValidationError.
//
// # Basic Usage
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// # Environment Variables
//
// Every commonly tuned field can be overridden with COURIER_SECTION_FIELD:
//
//	COURIER_PROXY_LISTEN_ADDRESS=0.0.0.0:3128
//	COURIER_RESOLVER_MODE=external
//	COURIER_RESOLVER_SERVERS=9.9.9.9:53,1.1.1.1:53
//	COURIER_TELEMETRY_LOGGING_LEVEL=debug
//
// An override that does not parse for its field type fails loading.
//
// # Example Configuration
//
//	proxy:
//	  listen_address: "127.0.0.1:8080"
//	  client_idle_timeout: "5s"
//	  max_request_bytes: 65536
//
//	upstream:
//	  connect_timeout: "10s"
//	  read_timeout: "60s"
//
//	resolver:
//	  mode: "external"
//	  servers: ["8.8.8.8:53", "1.1.1.1:53"]
//	  cache_ttl: "60s"
//
//	server:
//	  max_connections: 1000
//	  shutdown_timeout: "30s"
//
//	access_log:
//	  backend: "sqlite"
//	  sqlite:
//	    path: "data/accesslog.db"
//	  retention:
//	    days: 30
//	    prune_schedule: "0 3 * * *"
//
// # Hot Reload
//
// With watch: true, the run command starts a Watcher that reloads the file
// when it changes and applies the new log level without a restart. A reload
// that fails validation keeps the previous configuration. Command line
// overrides registered with Watcher.SetOverrides are applied to every
// reloaded file.
//
// # Thread Safety
//
// GetConfig, SetConfig and ReloadConfig are safe for concurrent use. The
// returned *Config must be treated as read-only.
package config
