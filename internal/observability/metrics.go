package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ccc_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard API.
type Metrics struct {
	Computations        prometheus.Counter
	ComputationDuration prometheus.Histogram
	CacheLookups        *prometheus.CounterVec // labels: result={hit,miss}

	// Dataset metrics.
	DatasetRows    prometheus.Gauge
	DatasetReloads *prometheus.CounterVec // labels: outcome={success,error}

	// HTTP metrics.
	HTTPRequests        *prometheus.CounterVec   // labels: method, route, status
	HTTPRequestDuration *prometheus.HistogramVec // labels: method, route

	Submissions *prometheus.CounterVec // labels: outcome={accepted,invalid,error}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can build as
// many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Computations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Total pipeline runs (filter, map, series and KPIs).",
		}),
		ComputationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "computation_duration_seconds",
			Help:      "Duration of a full pipeline run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Number of event rows in the loaded dataset.",
		}),
		DatasetReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_reloads_total",
			Help:      "Dataset loads by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Manual event submissions by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Computations,
		m.ComputationDuration,
		m.CacheLookups,
		m.DatasetRows,
		m.DatasetReloads,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.Submissions,
	}
}

// RecordCacheLookup counts a result cache hit or miss. It matches the cache lookup hook
// signature.
func (m *Metrics) RecordCacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}
