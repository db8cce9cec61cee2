package metrics

import (
	"strconv"
	"time"

	"mercator-hq/courier/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionMetrics tracks client connections and how they ended.
//
// Metrics:
//   - courier_proxy_connections_total: Connections admitted by the listener
//   - courier_proxy_connections_active: Connections currently being handled
//   - courier_proxy_connections_rejected_total: Connections turned away, by reason
//   - courier_proxy_outcomes_total: Handled connections by result and status
//   - courier_proxy_connection_duration_seconds: Handling time by result
//   - courier_proxy_stage_duration_seconds: Resolve and connect latency
//   - courier_proxy_bytes: Request head and relayed response sizes
type ConnectionMetrics struct {
	connectionsTotal prometheus.Counter

	connectionsActive prometheus.Gauge

	rejectedTotal *prometheus.CounterVec

	outcomesTotal *prometheus.CounterVec

	duration *prometheus.HistogramVec

	stageDuration *prometheus.HistogramVec

	sizeBytes *prometheus.HistogramVec
}

// NewConnectionMetrics creates and registers connection metrics with the
// provided registry.
func NewConnectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConnectionMetrics {
	cm := &ConnectionMetrics{
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_total",
				Help:      "Total number of client connections admitted",
			},
		),

		connectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_active",
				Help:      "Number of client connections currently being handled",
			},
		),

		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connections_rejected_total",
				Help:      "Total number of client connections rejected before handling",
			},
			[]string{"reason"},
		),

		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "outcomes_total",
				Help:      "Total number of handled connections by result and error status",
			},
			[]string{"result", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "connection_duration_seconds",
				Help:      "Time spent handling a client connection in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"result"},
		),

		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stage_duration_seconds",
				Help:      "Duration of the resolve and connect stages in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"stage"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "bytes",
				Help:      "Size of client request heads and relayed responses in bytes",
				Buckets:   cfg.SizeBuckets,
			},
			[]string{"direction"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		cm.connectionsTotal,
		cm.connectionsActive,
		cm.rejectedTotal,
		cm.outcomesTotal,
		cm.duration,
		cm.stageDuration,
		cm.sizeBytes,
	)

	return cm
}

// RecordAccepted counts an admitted connection and marks it active.
func (cm *ConnectionMetrics) RecordAccepted() {
	cm.connectionsTotal.Inc()
	cm.connectionsActive.Inc()
}

// RecordClosed marks an admitted connection as finished.
func (cm *ConnectionMetrics) RecordClosed() {
	cm.connectionsActive.Dec()
}

// RecordRejected counts a connection turned away before handling.
func (cm *ConnectionMetrics) RecordRejected(reason string) {
	cm.rejectedTotal.WithLabelValues(reason).Inc()
}

// RecordOutcome counts a finished connection and observes its duration.
// A zero status is recorded as "none".
func (cm *ConnectionMetrics) RecordOutcome(result string, status int, duration time.Duration) {
	cm.outcomesTotal.WithLabelValues(result, statusLabel(status)).Inc()
	cm.duration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordStage observes one stage duration.
func (cm *ConnectionMetrics) RecordStage(stage string, duration time.Duration) {
	cm.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordSize observes a byte count for "request" or "response". Empty
// transfers are skipped.
func (cm *ConnectionMetrics) RecordSize(direction string, size float64) {
	if size > 0 {
		cm.sizeBytes.WithLabelValues(direction).Observe(size)
	}
}

func statusLabel(status int) string {
	if status == 0 {
		return "none"
	}
	return strconv.Itoa(status)
}
