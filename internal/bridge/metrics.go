package bridge

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	keysSent  *prometheus.CounterVec
	wsClients prometheus.Gauge
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freesat_bridge_requests_total",
			Help: "Bridge API requests by operation and result",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "freesat_bridge_request_duration_seconds",
			Help:    "Bridge API request latency by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		keysSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freesat_bridge_keys_sent_total",
			Help: "Key presses accepted by each box",
		}, []string{"identity"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freesat_bridge_ws_clients",
			Help: "Connected event stream clients",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.keysSent,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(op string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(op, resultLabel(status)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func resultLabel(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status < 500:
		return "client_error"
	default:
		return "error"
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps h so every call is counted and timed under op
func (m *Metrics) instrument(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rec, r)
		m.observe(op, rec.status, time.Since(start))
	}
}
