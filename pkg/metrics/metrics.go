// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	EstimatesTotal       *prometheus.CounterVec
	EstimateLatency      *prometheus.HistogramVec
	CategoryFallbacks    *prometheus.CounterVec
	HistoryMatches       prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DatasetRecords       prometheus.Gauge
	EventsPublished      *prometheus.CounterVec
	RateLimitedTotal     prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		EstimatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salary_estimates_total",
				Help: "Total salary queries by operation and result (ok, no_data, invalid, error).",
			},
			[]string{"operation", "result"},
		),
		EstimateLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salary_estimate_latency_seconds",
				Help:    "Salary query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"operation"},
		),
		CategoryFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "category_fallbacks_total",
				Help: "Labels remapped to the fallback category, by encoding.",
			},
			[]string{"encoding"},
		),
		HistoryMatches: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "history_matched_records",
				Help:    "Number of historical records matched per lookup.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of overview cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of overview cache misses.",
			},
		),
		DatasetRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataset_records",
				Help: "Number of historical records loaded.",
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prediction_events_published_total",
				Help: "Prediction events handed to the broker by status (ok, error, dropped).",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.EstimatesTotal,
		m.EstimateLatency,
		m.CategoryFallbacks,
		m.HistoryMatches,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DatasetRecords,
		m.EventsPublished,
		m.RateLimitedTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
