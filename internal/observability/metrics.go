// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Extraction metrics
	EventsTotal        *prometheus.CounterVec
	WindowResolutions  *prometheus.CounterVec
	FallbackDays       prometheus.Histogram
	Completeness       prometheus.Histogram
	ExtractionDuration prometheus.Histogram

	// Batch metrics
	BatchRunsTotal *prometheus.CounterVec
	BatchDuration  *prometheus.HistogramVec

	// Store metrics
	StoreReadDuration *prometheus.HistogramVec
	StoreReadErrors   *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	GuardRejections   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBatch prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "event_feature_lab"
	}

	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "events_total",
			Help:      "Total number of events by terminal state",
		}, []string{"state"}),
		WindowResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "window_resolutions_total",
			Help:      "Total number of window resolutions by outcome",
		}, []string{"outcome"}),
		FallbackDays: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fallback_days",
			Help:      "Calendar days the nearest-price search fell back across",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		Completeness: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "completeness_ratio",
			Help:      "Completeness score of extracted feature records",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1},
		}),
		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "Per-event extraction duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		BatchRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of batch runs by mode and status",
		}, []string{"mode", "status"}),
		BatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode"}),

		StoreReadDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_duration_seconds",
			Help:      "Store read duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreReadErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "read_errors_total",
			Help:      "Total number of failed store reads",
		}, []string{"store", "operation"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Price query cache lookups by result",
		}, []string{"result"}),
		GuardRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "guard",
			Name:      "rejections_total",
			Help:      "Price reads rejected by the read guard",
		}, []string{"reason"}),

		LastSuccessfulBatch: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last successful batch run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvent increments the events counter for a terminal state.
func RecordEvent(state string) {
	DefaultMetrics.EventsTotal.WithLabelValues(state).Inc()
}

// RecordWindow records one window resolution outcome (exact, approximated, missing).
func RecordWindow(outcome string, fallbackDays int) {
	DefaultMetrics.WindowResolutions.WithLabelValues(outcome).Inc()
	if outcome != "missing" {
		DefaultMetrics.FallbackDays.Observe(float64(fallbackDays))
	}
}

// RecordExtraction records the duration and completeness of one extraction.
func RecordExtraction(seconds, completeness float64) {
	DefaultMetrics.ExtractionDuration.Observe(seconds)
	DefaultMetrics.Completeness.Observe(completeness)
}

// RecordStoreRead records store read metrics.
func RecordStoreRead(store, operation string, seconds float64, err error) {
	DefaultMetrics.StoreReadDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreReadErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordGuardRejection records a read rejected by the rate limiter or breaker.
func RecordGuardRejection(reason string) {
	DefaultMetrics.GuardRejections.WithLabelValues(reason).Inc()
}

// RecordBatchRun records a batch run.
func RecordBatchRun(mode, status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.BatchRunsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.BatchDuration.WithLabelValues(mode).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulBatch.Set(float64(finishedUnix))
	}
}
