// Package metrics provides Prometheus metrics collection for Mercator Courier.
//
// # Overview
//
// A Collector owns a prometheus.Registry and records every event the proxy
// exposes: connection admission, outcomes, stage latency, relayed bytes,
// hostname resolution and the access log pipeline. All names are prefixed
// with the configured namespace and subsystem (default "courier_proxy").
//
// # Metrics Categories
//
//   - Connection Metrics: admitted, active, rejected, outcomes, duration, bytes
//   - Resolver Metrics: lookups by result, lookup latency, cache size
//   - Access Log Metrics: records written, dropped and pruned
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.ConnectionAccepted()
//	defer collector.ConnectionClosed()
//
//	collector.RecordOutcome("rejected", 503, 4*time.Millisecond, 96, 0)
//
//	// The collector satisfies dns.Recorder
//	resolver := dns.New(dns.Config{Recorder: collector})
//
//	// Expose on the admin server
//	mux.Handle("/metrics", collector.Handler())
//
// # Labels
//
// Label values are drawn from small fixed sets (results, stages, reasons,
// backends, status codes). Hosts and client addresses are never used as
// labels; they belong in the access log.
package metrics
