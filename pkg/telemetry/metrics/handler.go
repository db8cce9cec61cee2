package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxConcurrentScrapes caps parallel /metrics requests on the admin server.
const maxConcurrentScrapes = 4

// Handler serves the collector's registry in Prometheus or OpenMetrics
// format, whichever the scraper negotiates. A failing collector is reported
// under promhttp_metric_handler_errors_total and the remaining metrics are
// still served.
func (c *Collector) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(c.registry, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics:   true,
		ErrorHandling:       promhttp.ContinueOnError,
		MaxRequestsInFlight: maxConcurrentScrapes,
		Registry:            c.registry,
	}))
}
