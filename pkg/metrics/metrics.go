// Package metrics defines the Prometheus metric collectors used by the model
// store, the parsers and the HTTP services, and exposes a scrape handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ModelLoadsTotal      *prometheus.CounterVec
	ModelLoadDuration    *prometheus.HistogramVec
	UserDictionarySize   prometheus.Gauge
	ParseRequestsTotal   *prometheus.CounterVec
	ParseLatency         prometheus.Histogram
	ParseSentenceTokens  prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg. Tests
// pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
// When reg is also a Gatherer, Handler and Serve expose reg; otherwise they
// expose the default registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	gatherer, ok := reg.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ModelLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_loads_total",
				Help: "Model resource load attempts by resource and status (ok, error).",
			},
			[]string{"resource", "status"},
		),
		ModelLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_load_duration_seconds",
				Help:    "Time spent constructing a model resource.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"resource"},
		),
		UserDictionarySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "user_dictionary_entries",
				Help: "Number of entries in the active user dictionary.",
			},
		),
		ParseRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parse_requests_total",
				Help: "Dependency parse requests by status (ok, invalid, error).",
			},
			[]string{"status"},
		),
		ParseLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "parse_latency_seconds",
				Help:    "Dependency parse latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
		),
		ParseSentenceTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "parse_sentence_tokens",
				Help:    "Number of tokens per parsed sentence.",
				Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parse_cache_hits_total",
				Help: "Total number of parse cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parse_cache_misses_total",
				Help: "Total number of parse cache misses.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ModelLoadsTotal,
		m.ModelLoadDuration,
		m.UserDictionarySize,
		m.ParseRequestsTotal,
		m.ParseLatency,
		m.ParseSentenceTokens,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	m.gatherer = gatherer

	return m
}

// ObserveModelLoad records one resource construction attempt. It is safe to
// call on a nil *Metrics.
func (m *Metrics) ObserveModelLoad(resource string, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelLoadsTotal.WithLabelValues(resource, status).Inc()
	m.ModelLoadDuration.WithLabelValues(resource).Observe(took.Seconds())
}

// ObserveParse records one parse request. It is safe to call on a nil *Metrics.
func (m *Metrics) ObserveParse(status string, tokens int, took time.Duration) {
	if m == nil {
		return
	}
	m.ParseRequestsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.ParseLatency.Observe(took.Seconds())
		m.ParseSentenceTokens.Observe(float64(tokens))
	}
}

// Handler returns the scrape handler for the registry m was built with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
