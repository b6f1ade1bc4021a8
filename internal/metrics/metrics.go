// Package metrics exposes fetchpackd counters and histograms on a private
// prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fetchpack"

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeSizeLimit = "size_limit"
	OutcomeStatus    = "http_status"
	OutcomeNetwork   = "network"
	OutcomeFS        = "filesystem"
	OutcomeInvalid   = "invalid"
)

// Metrics is safe for concurrent use.
type Metrics struct {
	reg *prometheus.Registry

	requests       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	fetches        *prometheus.CounterVec
	fetchedBytes   prometheus.Histogram
	archives       *prometheus.CounterVec
	archiveEntries prometheus.Histogram
	inFlight       prometheus.Gauge
	swept          prometheus.Counter
}

// New registers every collector, plus the go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetch attempts by outcome.",
		}, []string{"outcome"}),
		fetchedBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetched_bytes",
			Help:      "Size of successfully fetched files.",
			Buckets:   prometheus.ExponentialBuckets(1024, 10, 7), // 1KB..1GB
		}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_total",
			Help:      "Archive attempts by outcome.",
		}, []string{"outcome"}),
		archiveEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_entries",
			Help:      "Number of files in each created archive.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetches_in_flight",
			Help:      "Fetches currently streaming.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workspaces_swept_total",
			Help:      "Stale download workspaces removed.",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestSeconds,
		m.fetches,
		m.fetchedBytes,
		m.archives,
		m.archiveEntries,
		m.inFlight,
		m.swept,
	)

	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

// FetchStarted marks a fetch in flight and returns the func that records
// its outcome.
func (m *Metrics) FetchStarted() func(outcome string, bytes int64) {
	m.inFlight.Inc()

	return func(outcome string, bytes int64) {
		m.inFlight.Dec()
		m.fetches.WithLabelValues(outcome).Inc()
		if outcome == OutcomeOK {
			m.fetchedBytes.Observe(float64(bytes))
		}
	}
}

// ObserveArchive records one archive attempt.
func (m *Metrics) ObserveArchive(outcome string, entries int) {
	m.archives.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.archiveEntries.Observe(float64(entries))
	}
}

// WorkspacesSwept adds n removed workspaces.
func (m *Metrics) WorkspacesSwept(n int) {
	m.swept.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
