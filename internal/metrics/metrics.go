// Package metrics holds the Prometheus instruments for the extraction pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"notam_parser/internal/engine"
)

const namespace = "notam"

// Metrics holds the Prometheus counters and histograms for extraction.
type Metrics struct {
	Processed       *prometheus.CounterVec // labels: status
	Errors          *prometheus.CounterVec // labels: code
	Closures        prometheus.Counter
	ProcessDuration prometheus.Histogram
	Confidence      prometheus.Histogram
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss}
	BusMessages     *prometheus.CounterVec // labels: outcome={ok,decode_error,publish_error}
	HistoryFailures prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		Processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processed_total",
			Help:      "NOTAMs processed by result status.",
		}, []string{"status"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Recoverable errors reported in results, by code.",
		}, []string{"code"}),
		Closures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closures_total",
			Help:      "Closure lines produced by the parser.",
		}),
		ProcessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Time to process one NOTAM including fallbacks.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence",
			Help:      "Confidence of parsed results.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "API result cache lookups by result.",
		}, []string{"result"}),
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      "Messages handled by the bus worker by outcome.",
		}, []string{"outcome"}),
		HistoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_failures_total",
			Help:      "Failed writes to the extraction history.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Processed,
		m.Errors,
		m.Closures,
		m.ProcessDuration,
		m.Confidence,
		m.CacheLookups,
		m.BusMessages,
		m.HistoryFailures,
	}
}

// New creates and registers all metrics with the default Prometheus registry.
func New() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewForTesting creates Metrics that are not registered anywhere, so tests
// can create as many as they like.
func NewForTesting() *Metrics {
	return newMetrics()
}

// Register registers the metrics with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one processed result. A nil Metrics does nothing.
func (m *Metrics) Observe(res engine.Result, took time.Duration) {
	if m == nil {
		return
	}
	m.Processed.WithLabelValues(string(res.Status)).Inc()
	for _, code := range res.Errors {
		m.Errors.WithLabelValues(string(code)).Inc()
	}
	m.ProcessDuration.Observe(took.Seconds())
	if res.Status == engine.StatusOK {
		m.Closures.Add(float64(len(res.Outputs)))
		m.Confidence.Observe(res.Confidence)
	}
}

// CacheHit records a cache lookup. A nil Metrics does nothing.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// BusMessage records a bus outcome. A nil Metrics does nothing.
func (m *Metrics) BusMessage(outcome string) {
	if m == nil {
		return
	}
	m.BusMessages.WithLabelValues(outcome).Inc()
}

// HistoryFailed records a failed history write. A nil Metrics does nothing.
func (m *Metrics) HistoryFailed() {
	if m == nil {
		return
	}
	m.HistoryFailures.Inc()
}
