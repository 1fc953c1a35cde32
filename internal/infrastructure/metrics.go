package infrastructure

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the pipeline service.
type Metrics struct {
	registry *prometheus.Registry

	OperationsStarted  *prometheus.CounterVec
	OperationsFinished *prometheus.CounterVec
	StepDuration       *prometheus.HistogramVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates the instrument set on its own registry so tests
// can build independent instances.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		OperationsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepipe_operations_started_total",
			Help: "Number of pipeline operations started.",
		}, []string{"operation"}),
		OperationsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepipe_operations_finished_total",
			Help: "Number of pipeline operations finished, by status.",
		}, []string{"operation", "status"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricepipe_step_duration_seconds",
			Help:    "Execution time of individual pipeline steps.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"step", "status"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pricepipe_http_requests_total",
			Help: "Number of HTTP requests handled, by route and code.",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pricepipe_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns the /metrics endpoint handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStep records one step execution.
func (m *Metrics) ObserveStep(step, status string, elapsed time.Duration) {
	m.StepDuration.WithLabelValues(step, status).Observe(elapsed.Seconds())
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	route := method + " " + path
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
