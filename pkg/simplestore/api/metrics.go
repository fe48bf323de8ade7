package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector is a MetricsCollector backed by Prometheus
type PrometheusCollector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.CounterVec
	paths    map[string]bool
}

// NewPrometheusCollector registers the HTTP collectors with reg. Only the
// listed paths are used as labels; anything else is reported as "other".
func NewPrometheusCollector(reg prometheus.Registerer, paths ...string) *PrometheusCollector {
	factory := promauto.With(reg)
	c := &PrometheusCollector{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplestore_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simplestore_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		size: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simplestore_http_response_bytes_total",
			Help: "Bytes written in HTTP responses.",
		}, []string{"method", "path"}),
		paths: make(map[string]bool, len(paths)),
	}
	for _, p := range paths {
		c.paths[p] = true
	}
	return c
}

func (c *PrometheusCollector) RecordRequest(method, path string, statusCode int, duration time.Duration, size int64) {
	if !c.paths[path] {
		path = "other"
	}
	c.requests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	c.duration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.size.WithLabelValues(method, path).Add(float64(size))
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
