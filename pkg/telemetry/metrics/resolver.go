package metrics

import (
	"time"

	"mercator-hq/courier/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ResolverMetrics tracks hostname resolution.
//
// Metrics:
//   - courier_proxy_dns_lookups_total: Lookups by result (cache_hit, resolved, failed)
//   - courier_proxy_dns_lookup_duration_seconds: Lookup latency
//   - courier_proxy_dns_cache_entries: Current number of cached hostnames
//
// Hit rate is derived in PromQL:
//
//	rate(courier_proxy_dns_lookups_total{result="cache_hit"}[5m]) /
//	rate(courier_proxy_dns_lookups_total[5m])
type ResolverMetrics struct {
	lookupsTotal *prometheus.CounterVec

	lookupDuration prometheus.Histogram

	cacheEntries prometheus.Gauge
}

// NewResolverMetrics creates and registers resolver metrics with the
// provided registry.
func NewResolverMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ResolverMetrics {
	rm := &ResolverMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dns_lookups_total",
				Help:      "Total number of hostname lookups by result",
			},
			[]string{"result"},
		),

		lookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dns_lookup_duration_seconds",
				Help:      "Duration of hostname lookups in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dns_cache_entries",
				Help:      "Current number of hostnames in the resolver cache",
			},
		),
	}

	registry.MustRegister(
		rm.lookupsTotal,
		rm.lookupDuration,
		rm.cacheEntries,
	)

	return rm
}

// RecordLookup counts a lookup and observes its latency.
func (rm *ResolverMetrics) RecordLookup(result string, duration time.Duration) {
	rm.lookupsTotal.WithLabelValues(result).Inc()
	rm.lookupDuration.Observe(duration.Seconds())
}

// UpdateCacheSize sets the resolver cache gauge.
func (rm *ResolverMetrics) UpdateCacheSize(size int) {
	rm.cacheEntries.Set(float64(size))
}
