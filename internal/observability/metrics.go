package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one service. Methods are
// safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	challenges *prometheus.CounterVec
	published  *prometheus.CounterVec
	consumed   *prometheus.CounterVec
}

// NewMetrics creates and registers collectors on a private registry.
func NewMetrics(service string) *Metrics {
	constLabels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustmesh_http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "trustmesh_http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "path"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustmesh_http_errors_total",
			Help:        "Error responses by error code",
			ConstLabels: constLabels,
		}, []string{"method", "path", "code"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustmesh_challenge_outcomes_total",
			Help:        "One-time code operations by outcome",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustmesh_deletion_events_published_total",
			Help:        "Media deletion events handed to the broker",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "trustmesh_deletion_events_consumed_total",
			Help:        "Media deletion deliveries by final disposition",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.errors,
		m.challenges,
		m.published,
		m.consumed,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

func (m *Metrics) RecordChallenge(operation, outcome string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordPublish(outcome string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordConsumed(outcome string) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
