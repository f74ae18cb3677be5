package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the extractor.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ExtractionTotal *prometheus.CounterVec
	PriceMethods    *prometheus.CounterVec
	CacheHitsTotal  prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyobobook_fetch_attempts_total",
			Help: "Fetch attempts by result.",
		},
		[]string{"result"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kyobobook_fetch_duration_seconds",
			Help:    "HTTP latency of a single fetch attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kyobobook_fetch_retries_total",
			Help: "Total number of delayed retry attempts.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyobobook_errors_total",
			Help: "Total number of fetch errors by type.",
		},
		[]string{"error_type"},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyobobook_extractions_total",
			Help: "Extraction requests by terminal state.",
		},
		[]string{"state"},
	)
	priceMethods := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kyobobook_price_method_total",
			Help: "Successful price extractions by method.",
		},
		[]string{"method"},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kyobobook_cache_hits_total",
			Help: "Extractions served from the result cache.",
		},
	)

	registry.MustRegister(attempts, requestDuration, retries, errorsTotal, extractions, priceMethods, cacheHits)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		RequestDuration: requestDuration,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		ExtractionTotal: extractions,
		PriceMethods:    priceMethods,
		CacheHitsTotal:  cacheHits,
	}
}

// IncAttempt increments the attempts counter for a result label.
func (m *Metrics) IncAttempt(result string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncExtraction records the terminal state of one extraction.
func (m *Metrics) IncExtraction(state string) {
	if m == nil {
		return
	}
	m.ExtractionTotal.WithLabelValues(state).Inc()
}

// IncPriceMethod records which rule produced a price.
func (m *Metrics) IncPriceMethod(method string) {
	if m == nil {
		return
	}
	m.PriceMethods.WithLabelValues(method).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
