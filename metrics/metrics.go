// Package metrics provides Prometheus metrics for the capacity service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every metric the service exports. It is built once in main
// and injected; there is no package-level instance.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Analysis
	analysisFindings *prometheus.CounterVec
	fteUpserts       *prometheus.CounterVec

	// Upstream
	upstreamAttempts *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	// Sync
	syncRuns    *prometheus.CounterVec
	syncRecords *prometheus.CounterVec
	syncLastRun *prometheus.GaugeVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for duration histograms (seconds).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "capacity",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.analysisFindings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "analysis",
		Name:      "findings_total",
		Help:      "Classified subject-days reported by analysis runs",
	}, []string{"model", "status"})

	m.fteUpserts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "fte",
		Name:      "assignments_total",
		Help:      "FTE assignments written, by outcome",
	}, []string{"outcome"})

	m.upstreamAttempts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "attempts_total",
		Help:      "Calls to external services by endpoint and outcome",
	}, []string{"service", "endpoint", "outcome"})

	m.upstreamDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of calls to external services",
		Buckets:   m.histogramBuckets,
	}, []string{"service"})

	m.syncRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Directory synchronization runs by kind and status",
	}, []string{"kind", "status"})

	m.syncRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Directory records written by synchronization, by kind and outcome",
	}, []string{"kind", "outcome"})

	m.syncLastRun = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last finished synchronization run",
	}, []string{"kind"})
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// RECORDERS
// =============================================================================

func (m *Manager) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Manager) ObserveFindings(model string, overloaded, underutilized int) {
	m.analysisFindings.WithLabelValues(model, "overloaded").Add(float64(overloaded))
	m.analysisFindings.WithLabelValues(model, "underutilized").Add(float64(underutilized))
}

func (m *Manager) ObserveFTEUpserts(created, updated, failed int) {
	m.fteUpserts.WithLabelValues("created").Add(float64(created))
	m.fteUpserts.WithLabelValues("updated").Add(float64(updated))
	m.fteUpserts.WithLabelValues("failed").Add(float64(failed))
}

// ObserveUpstream records one attempt against an external endpoint.
func (m *Manager) ObserveUpstream(service, endpoint, outcome string, d time.Duration) {
	m.upstreamAttempts.WithLabelValues(service, endpoint, outcome).Inc()
	m.upstreamDuration.WithLabelValues(service).Observe(d.Seconds())
}

func (m *Manager) ObserveSync(kind, status string, created, updated int, finished time.Time) {
	m.syncRuns.WithLabelValues(kind, status).Inc()
	m.syncRecords.WithLabelValues(kind, "created").Add(float64(created))
	m.syncRecords.WithLabelValues(kind, "updated").Add(float64(updated))
	m.syncLastRun.WithLabelValues(kind).Set(float64(finished.Unix()))
}
