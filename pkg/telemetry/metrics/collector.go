package metrics

import (
	"time"

	"mercator-hq/courier/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in Mercator
// Courier. It owns the registry and exposes one method per observable event
// so callers never touch metric vectors directly.
//
// All methods are no-ops when metrics are disabled, and all are safe for
// concurrent use from connection goroutines.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Connection lifecycle and outcome metrics
	connectionMetrics *ConnectionMetrics

	// Hostname resolution metrics
	resolverMetrics *ResolverMetrics

	// Access log pipeline metrics
	accessLogMetrics *AccessLogMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "courier",
//		Subsystem: "proxy",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}
	if len(cfg.SizeBuckets) == 0 {
		cfg.SizeBuckets = append([]float64(nil), config.DefaultSizeBuckets...)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.connectionMetrics = NewConnectionMetrics(cfg, registry)
	c.resolverMetrics = NewResolverMetrics(cfg, registry)
	c.accessLogMetrics = NewAccessLogMetrics(cfg, registry)

	return c
}

// ConnectionAccepted records a client connection admitted by the listener.
// Pair with ConnectionClosed.
func (c *Collector) ConnectionAccepted() {
	if !c.config.Enabled {
		return
	}

	c.connectionMetrics.RecordAccepted()
}

// ConnectionClosed records the end of an admitted connection.
func (c *Collector) ConnectionClosed() {
	if !c.config.Enabled {
		return
	}

	c.connectionMetrics.RecordClosed()
}

// ConnectionRejected records a connection turned away before handling.
//
// Parameters:
//   - reason: "max_connections", "rate_limited" or "shutdown"
func (c *Collector) ConnectionRejected(reason string) {
	if !c.config.Enabled {
		return
	}

	c.connectionMetrics.RecordRejected(reason)
}

// RecordOutcome records how a handled connection ended.
//
// Parameters:
//   - result: "forwarded", "rejected" or "aborted"
//   - status: error status code sent to the client, 0 if none
//   - duration: total time the connection was handled
//   - requestBytes: size of the client request head
//   - responseBytes: bytes relayed from the origin
//
// Example:
//
//	collector.RecordOutcome("forwarded", 0, 120*time.Millisecond, 180, 5120)
func (c *Collector) RecordOutcome(result string, status int, duration time.Duration, requestBytes int, responseBytes int64) {
	if !c.config.Enabled {
		return
	}

	c.connectionMetrics.RecordOutcome(result, status, duration)
	c.connectionMetrics.RecordSize("request", float64(requestBytes))
	c.connectionMetrics.RecordSize("response", float64(responseBytes))
}

// RecordStage records the duration of one processing stage ("resolve",
// "connect").
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.connectionMetrics.RecordStage(stage, duration)
}

// RecordDNSLookup records one hostname lookup. It satisfies dns.Recorder.
//
// Parameters:
//   - result: "cache_hit", "resolved" or "failed"
//   - duration: time spent resolving
func (c *Collector) RecordDNSLookup(result string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.resolverMetrics.RecordLookup(result, duration)
}

// UpdateDNSCacheSize updates the current size of the resolver cache.
func (c *Collector) UpdateDNSCacheSize(size int) {
	if !c.config.Enabled {
		return
	}

	c.resolverMetrics.UpdateCacheSize(size)
}

// RecordAccessLogWrite records an access log batch write.
//
// Parameters:
//   - backend: "memory" or "sqlite"
//   - ok: whether the write succeeded
//   - records: number of records in the batch
func (c *Collector) RecordAccessLogWrite(backend string, ok bool, records int) {
	if !c.config.Enabled {
		return
	}

	c.accessLogMetrics.RecordWrite(backend, ok, records)
}

// RecordAccessLogDrop records a record discarded because the recorder
// buffer was full.
func (c *Collector) RecordAccessLogDrop() {
	if !c.config.Enabled {
		return
	}

	c.accessLogMetrics.RecordDrop()
}

// RecordAccessLogPrune records records removed by a retention run.
func (c *Collector) RecordAccessLogPrune(removed int64) {
	if !c.config.Enabled {
		return
	}

	c.accessLogMetrics.RecordPrune(removed)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
