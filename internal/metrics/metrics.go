// Package metrics exposes the server's prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reqlens"

type Metrics struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	responseSize *prometheus.HistogramVec
	inFlight     *prometheus.GaugeVec
	connections  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests answered, by transport, method, matched action and status.",
		}, []string{"transport", "method", "match", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request head parsed to response written.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "match"}),
		responseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Response body sizes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}, []string{"transport"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		}, []string{"transport"}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted connections, by transport.",
		}, []string{"transport"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.responseSize,
		m.inFlight,
		m.connections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(transport, method, match string, status int, elapsed time.Duration) {
	if match == "" {
		match = "none"
	}
	m.requests.WithLabelValues(transport, method, match, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(transport, match).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveResponseSize(transport string, n int) {
	m.responseSize.WithLabelValues(transport).Observe(float64(n))
}

func (m *Metrics) ConnectionAccepted(transport string) {
	m.connections.WithLabelValues(transport).Inc()
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight(transport string) func() {
	g := m.inFlight.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}
