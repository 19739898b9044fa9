package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/formhive/abac-core/pkg/types"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EvaluateRequest represents a REST evaluation request
type EvaluateRequest struct {
	Subject      types.Subject       `json:"subject"`
	Resource     types.Resource      `json:"resource"`
	Action       string              `json:"action"`
	Subscription *types.Subscription `json:"subscription,omitempty"`
	Environment  *types.Environment  `json:"environment,omitempty"`
}

// Context converts the request into an evaluation context
func (r *EvaluateRequest) Context() *types.EvaluationContext {
	return &types.EvaluationContext{
		Subject:      r.Subject,
		Resource:     r.Resource,
		Action:       r.Action,
		Subscription: r.Subscription,
		Environment:  r.Environment,
	}
}

// EvaluateResponse represents a REST evaluation response
type EvaluateResponse struct {
	Allowed   bool              `json:"allowed"`
	DeniedBy  []string          `json:"deniedBy,omitempty"`
	AllowedBy []string          `json:"allowedBy,omitempty"`
	Metadata  *ResponseMetadata `json:"metadata,omitempty"`
}

// ResponseMetadata carries timing and tracing information
type ResponseMetadata struct {
	DurationMs float64   `json:"duration_ms"`
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// FilterFieldsRequest represents a REST field filtering request
type FilterFieldsRequest struct {
	Subject      types.Subject       `json:"subject"`
	Resource     types.Resource      `json:"resource"`
	Subscription *types.Subscription `json:"subscription,omitempty"`
	Environment  *types.Environment  `json:"environment,omitempty"`
	Fields       []types.Field       `json:"fields"`
}

// Context converts the request into an evaluation context
func (r *FilterFieldsRequest) Context() *types.EvaluationContext {
	return &types.EvaluationContext{
		Subject:      r.Subject,
		Resource:     r.Resource,
		Action:       "read",
		Subscription: r.Subscription,
		Environment:  r.Environment,
	}
}

// FilterFieldsResponse represents a REST field filtering response
type FilterFieldsResponse struct {
	Fields   []types.Field     `json:"fields"`
	Removed  int               `json:"removed"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
}

// HealthResponse represents the health endpoint payload
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
