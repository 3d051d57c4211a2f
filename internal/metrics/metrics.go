// Package metrics holds the Prometheus collectors for the call interceptor and the
// failure layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aspect"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheWrites      *prometheus.CounterVec
	StoreErrors      *prometheus.CounterVec
	FailureOutcomes  *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	ProceedDurations *prometheus.HistogramVec
}

// New creates and registers all metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total intercepted calls answered from the store.",
		}, []string{"method"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total intercepted calls that invoked the target.",
		}, []string{"method"}),

		CacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_writes_total",
			Help:      "Total results added to the store.",
		}, []string{"method"}),

		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total store operations that failed.",
		}, []string{"method", "op"}),

		FailureOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failure_outcomes_total",
			Help:      "Total request failures handled by the failure layer, by outcome.",
		}, []string{"outcome"}),

		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Total log sink writes that failed.",
		}, []string{"sink"}),

		ProceedDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proceed_duration_seconds",
			Help:      "Duration of target invocations on a cache miss.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.CacheWrites,
		m.StoreErrors,
		m.FailureOutcomes,
		m.SinkErrors,
		m.ProceedDurations,
	)

	return m
}

// CacheHit records a call answered from the store.
func (m *Metrics) CacheHit(method string) {
	m.CacheHits.WithLabelValues(method).Inc()
}

// CacheMiss records a call that reached the target.
func (m *Metrics) CacheMiss(method string) {
	m.CacheMisses.WithLabelValues(method).Inc()
}

// CacheWrite records a result added to the store.
func (m *Metrics) CacheWrite(method string) {
	m.CacheWrites.WithLabelValues(method).Inc()
}

// StoreError records a failed store operation.
func (m *Metrics) StoreError(method, op string) {
	m.StoreErrors.WithLabelValues(method, op).Inc()
}

// ObserveProceed records how long a target invocation took.
func (m *Metrics) ObserveProceed(method string, seconds float64) {
	m.ProceedDurations.WithLabelValues(method).Observe(seconds)
}

// FailureOutcome records a request failure classified as outcome.
func (m *Metrics) FailureOutcome(outcome string) {
	m.FailureOutcomes.WithLabelValues(outcome).Inc()
}

// SinkError records a sink write that failed.
func (m *Metrics) SinkError(sink string) {
	m.SinkErrors.WithLabelValues(sink).Inc()
}
