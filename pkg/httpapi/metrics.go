package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the HTTP surface exposes on the metrics
// listener, separate from the API listener so a scraper never competes
// with API traffic for rate-limit budget.
type Metrics struct {
	requestsTotal        *prometheus.CounterVec
	rateLimitRejections  prometheus.Counter
	registry             *prometheus.Registry
}

// NewMetrics builds a fresh registry and registers the zoned counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zoned_http_requests_total",
			Help: "Total HTTP requests handled by the zoned API, by path and status.",
		}, []string{"path", "method", "status"}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zoned_rate_limit_rejections_total",
			Help: "Total requests rejected by the per-caller rate limiter.",
		}),
		registry: registry,
	}
	registry.MustRegister(m.requestsTotal, m.rateLimitRejections)
	return m
}

// Handler exposes the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(path, method string, status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(path, method, http.StatusText(status)).Inc()
}

func (m *Metrics) observeRateLimitRejection() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}
