// Mercator Courier is a minimal HTTP/1.0 forwarding proxy.
//
// It accepts absolute-form GET requests from clients, forwards them to the
// origin as canonical HTTP/1.0 requests carrying only an allow-listed set
// of headers, and relays the origin response back byte for byte. Around
// that core it provides:
//   - Concurrent connection handling with admission limits
//   - System or external (direct DNS) name resolution with caching
//   - A per-connection access log with retention
//   - Prometheus metrics, OpenTelemetry tracing and health probes
//
// Usage:
//
//	# Start on the configured address (127.0.0.1:8080 by default)
//	courier run
//
//	# Start on port 3128, keeping the configured host
//	courier run 3128
//
//	# Start with a configuration file
//	courier run --config /etc/courier/config.yaml
//
//	# Validate a configuration file
//	courier validate --config /etc/courier/config.yaml
//
//	# Show the last hour of failed connections
//	courier accesslog query --since 1h --result rejected
//
//	# Show version information
//	courier version
package main

import "os"

func main() {
	os.Exit(Execute())
}
