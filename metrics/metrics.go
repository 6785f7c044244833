// Package metrics exposes Prometheus counters, gauges, and histograms
// for every stage of the Local PKD pipeline, adapted from the
// teacher's statsd-based HTTPMonitor/FBAdapter (the same shape of
// per-request counter plus in-flight gauge) onto
// github.com/prometheus/client_golang, grounded on the rest of the
// retrieval pack's Prometheus usage.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PKDMetrics is the process-wide metrics registry, constructed once at
// startup and threaded into every component that needs to record an
// observation.
type PKDMetrics struct {
	IngestFilesTotal      *prometheus.CounterVec
	IngestEntriesTotal    *prometheus.CounterVec
	IngestDuplicatesTotal prometheus.Counter

	ValidatorRunsTotal      *prometheus.CounterVec
	ValidatorCertsProcessed *prometheus.CounterVec
	ValidatorPassDuration   *prometheus.HistogramVec

	DirectoryWritesTotal    *prometheus.CounterVec
	DirectoryBatchFallbacks prometheus.Counter

	PAInvocationsTotal  *prometheus.CounterVec
	PAStepDuration      *prometheus.HistogramVec
	PADataGroupResults  *prometheus.CounterVec

	httpInFlight int64
}

// NewPKDMetrics constructs and registers every collector against reg.
func NewPKDMetrics(reg prometheus.Registerer) *PKDMetrics {
	m := &PKDMetrics{
		IngestFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "ingest", Name: "files_total",
			Help: "Files ingested, labeled by format and outcome.",
		}, []string{"format", "outcome"}),
		IngestEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "ingest", Name: "entries_total",
			Help: "Certificate/CRL entries parsed, labeled by entry type.",
		}, []string{"entry_type"}),
		IngestDuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "ingest", Name: "duplicates_total",
			Help: "Entries rejected as duplicates within a single ParsedFile.",
		}),
		ValidatorRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "validator", Name: "runs_total",
			Help: "Validator passes run, labeled by pass and outcome.",
		}, []string{"pass", "outcome"}),
		ValidatorCertsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "validator", Name: "certs_processed_total",
			Help: "Certificates processed by the validator, labeled by resulting status.",
		}, []string{"status"}),
		ValidatorPassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pkd", Subsystem: "validator", Name: "pass_duration_seconds",
			Help:    "Wall-clock duration of one validator pass.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),
		DirectoryWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "directory", Name: "writes_total",
			Help: "Directory publish attempts, labeled by outcome.",
		}, []string{"outcome"}),
		DirectoryBatchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "directory", Name: "batch_fallbacks_total",
			Help: "Batch publishes that fell back to per-entry writes.",
		}),
		PAInvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "pa", Name: "invocations_total",
			Help: "Passive Authentication invocations, labeled by overall status.",
		}, []string{"overall_status"}),
		PAStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pkd", Subsystem: "pa", Name: "step_duration_seconds",
			Help:    "Per-step duration within one PA invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
		PADataGroupResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pkd", Subsystem: "pa", Name: "data_group_results_total",
			Help: "Per-data-group verification outcomes.",
		}, []string{"dg_number", "valid"}),
	}
	reg.MustRegister(
		m.IngestFilesTotal, m.IngestEntriesTotal, m.IngestDuplicatesTotal,
		m.ValidatorRunsTotal, m.ValidatorCertsProcessed, m.ValidatorPassDuration,
		m.DirectoryWritesTotal, m.DirectoryBatchFallbacks,
		m.PAInvocationsTotal, m.PAStepDuration, m.PADataGroupResults,
	)
	return m
}

// HTTPMonitor wraps an http.Handler with a request-rate counter and an
// in-flight gauge, the Prometheus-native counterpart of the teacher's
// statsd HTTPMonitor.
type HTTPMonitor struct {
	handler  http.Handler
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
	counter  int64
}

// NewHTTPMonitor registers its collectors against reg and wraps handler.
func NewHTTPMonitor(reg prometheus.Registerer, handler http.Handler, subsystem string) *HTTPMonitor {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkd", Subsystem: subsystem, Name: "http_requests_total",
		Help: "HTTP requests served, labeled by status code.",
	}, []string{"code"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pkd", Subsystem: subsystem, Name: "http_connections_in_flight",
		Help: "HTTP connections currently being served.",
	})
	reg.MustRegister(requests, inFlight)
	return &HTTPMonitor{handler: handler, requests: requests, inFlight: inFlight}
}

func (h *HTTPMonitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&h.counter, 1)
	h.inFlight.Inc()
	defer h.inFlight.Dec()

	rw := &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
	h.handler.ServeHTTP(rw, r)
	h.requests.WithLabelValues(statusBucket(rw.status)).Inc()
}

type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusBucket(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Timer records the duration between its creation and a call to
// ObserveDuration against h.
type Timer struct {
	started time.Time
	hist    prometheus.Observer
}

// NewTimer starts a timer against hist (typically a HistogramVec's
// WithLabelValues result).
func NewTimer(hist prometheus.Observer) Timer {
	return Timer{started: time.Now(), hist: hist}
}

// ObserveDuration records the elapsed time since NewTimer.
func (t Timer) ObserveDuration() {
	t.hist.Observe(time.Since(t.started).Seconds())
}
