package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics using Prometheus with zero-allocation hot path
type PrometheusMetrics struct {
	// Decision counters (atomic for the fast path)
	decisionsAllow atomic.Uint64
	decisionsDeny  atomic.Uint64

	decisionsTotal   *prometheus.CounterVec
	evaluationErrors *prometheus.CounterVec
	activeRequests   prometheus.Gauge
	decisionDuration prometheus.Histogram

	cacheRefreshes     prometheus.Counter
	cacheInvalidations prometheus.Counter
	policyCount        prometheus.Gauge

	fieldsFiltered prometheus.Counter

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	// Register standard Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of access decisions by effect",
		},
		[]string{"effect"},
	)

	evaluationErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_errors_total",
			Help:      "Total number of evaluation errors by type",
		},
		[]string{"type"},
	)

	activeRequests := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_requests",
			Help:      "Number of in-flight evaluation requests",
		},
	)

	// Decision latency: 1µs to 10ms (sub-millisecond expected)
	decisionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_microseconds",
			Help:      "Access decision latency in microseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
		},
	)

	cacheRefreshes := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy_cache",
			Name:      "refreshes_total",
			Help:      "Total number of policy cache refreshes",
		},
	)

	cacheInvalidations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy_cache",
			Name:      "invalidations_total",
			Help:      "Total number of policy cache invalidations",
		},
	)

	policyCount := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "policy_cache",
			Name:      "policies",
			Help:      "Number of policies in the active policy set",
		},
	)

	fieldsFiltered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_filtered_total",
			Help:      "Total number of fields removed by field filtering",
		},
	)

	registry.MustRegister(
		decisionsTotal,
		evaluationErrors,
		activeRequests,
		decisionDuration,
		cacheRefreshes,
		cacheInvalidations,
		policyCount,
		fieldsFiltered,
	)

	return &PrometheusMetrics{
		decisionsTotal:     decisionsTotal,
		evaluationErrors:   evaluationErrors,
		activeRequests:     activeRequests,
		decisionDuration:   decisionDuration,
		cacheRefreshes:     cacheRefreshes,
		cacheInvalidations: cacheInvalidations,
		policyCount:        policyCount,
		fieldsFiltered:     fieldsFiltered,
		registry:           registry,
	}
}

// RecordDecision records an access decision (zero-allocation hot path)
func (p *PrometheusMetrics) RecordDecision(effect string, duration time.Duration) {
	if effect == "allow" {
		p.decisionsAllow.Add(1)
	} else {
		p.decisionsDeny.Add(1)
	}

	p.decisionsTotal.WithLabelValues(effect).Inc()
	p.decisionDuration.Observe(float64(duration.Microseconds()))
}

// RecordEvaluationError records an evaluation error
func (p *PrometheusMetrics) RecordEvaluationError(errorType string) {
	p.evaluationErrors.WithLabelValues(errorType).Inc()
}

// IncActiveRequests increments in-flight requests
func (p *PrometheusMetrics) IncActiveRequests() {
	p.activeRequests.Inc()
}

// DecActiveRequests decrements in-flight requests
func (p *PrometheusMetrics) DecActiveRequests() {
	p.activeRequests.Dec()
}

// RecordCacheRefresh records a policy cache refresh
func (p *PrometheusMetrics) RecordCacheRefresh() {
	p.cacheRefreshes.Inc()
}

// RecordCacheInvalidation records a policy cache invalidation
func (p *PrometheusMetrics) RecordCacheInvalidation() {
	p.cacheInvalidations.Inc()
}

// UpdatePolicyCount updates the active policy set size
func (p *PrometheusMetrics) UpdatePolicyCount(count int) {
	p.policyCount.Set(float64(count))
}

// RecordFieldsFiltered records the number of fields removed from a response
func (p *PrometheusMetrics) RecordFieldsFiltered(removed int) {
	if removed > 0 {
		p.fieldsFiltered.Add(float64(removed))
	}
}

// Decisions returns the fast-path allow/deny counters
func (p *PrometheusMetrics) Decisions() (allow, deny uint64) {
	return p.decisionsAllow.Load(), p.decisionsDeny.Load()
}

// HTTPHandler returns the Prometheus HTTP handler for /metrics endpoint
func (p *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
