// Package metrics provides observability for the access decision engine
package metrics

import (
	"net/http"
	"time"
)

// Metrics records operational counters for the decision engine
type Metrics interface {
	// Decision metrics
	RecordDecision(effect string, duration time.Duration)
	RecordEvaluationError(errorType string)
	IncActiveRequests()
	DecActiveRequests()

	// Policy cache metrics
	RecordCacheRefresh()
	RecordCacheInvalidation()
	UpdatePolicyCount(count int)

	// Field filtering metrics
	RecordFieldsFiltered(removed int)

	// HTTP handler for Prometheus scraping
	HTTPHandler() http.Handler
}

// NoOpMetrics provides a no-op implementation for testing/disabled monitoring
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new no-op metrics instance
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordDecision(effect string, duration time.Duration) {}
func (n *NoOpMetrics) RecordEvaluationError(errorType string)               {}
func (n *NoOpMetrics) IncActiveRequests()                                   {}
func (n *NoOpMetrics) DecActiveRequests()                                   {}
func (n *NoOpMetrics) RecordCacheRefresh()                                  {}
func (n *NoOpMetrics) RecordCacheInvalidation()                             {}
func (n *NoOpMetrics) UpdatePolicyCount(count int)                          {}
func (n *NoOpMetrics) RecordFieldsFiltered(removed int)                     {}

func (n *NoOpMetrics) HTTPHandler() http.Handler {
	return http.NotFoundHandler()
}
