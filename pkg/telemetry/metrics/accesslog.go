package metrics

import (
	"mercator-hq/courier/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AccessLogMetrics tracks the asynchronous access log pipeline.
//
// Metrics:
//   - courier_proxy_accesslog_records_total: Records written by backend and status
//   - courier_proxy_accesslog_dropped_total: Records dropped on a full buffer
//   - courier_proxy_accesslog_pruned_total: Records removed by retention
type AccessLogMetrics struct {
	recordsTotal *prometheus.CounterVec

	droppedTotal prometheus.Counter

	prunedTotal prometheus.Counter
}

// NewAccessLogMetrics creates and registers access log metrics with the
// provided registry.
func NewAccessLogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AccessLogMetrics {
	am := &AccessLogMetrics{
		recordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "accesslog_records_total",
				Help:      "Total number of access log records written",
			},
			[]string{"backend", "status"},
		),

		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "accesslog_dropped_total",
				Help:      "Total number of access log records dropped because the buffer was full",
			},
		),

		prunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "accesslog_pruned_total",
				Help:      "Total number of access log records removed by retention",
			},
		),
	}

	registry.MustRegister(
		am.recordsTotal,
		am.droppedTotal,
		am.prunedTotal,
	)

	return am
}

// RecordWrite counts records in a written batch.
func (am *AccessLogMetrics) RecordWrite(backend string, ok bool, records int) {
	status := "success"
	if !ok {
		status = "error"
	}
	am.recordsTotal.WithLabelValues(backend, status).Add(float64(records))
}

// RecordDrop counts one dropped record.
func (am *AccessLogMetrics) RecordDrop() {
	am.droppedTotal.Inc()
}

// RecordPrune counts records removed by a retention run.
func (am *AccessLogMetrics) RecordPrune(removed int64) {
	if removed > 0 {
		am.prunedTotal.Add(float64(removed))
	}
}
