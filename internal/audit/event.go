// Package audit provides structured audit logging for access decisions
package audit

import (
	"time"
)

// EventType represents the type of audit event
type EventType string

const (
	EventTypeDecision       EventType = "access_decision"
	EventTypePolicyChange   EventType = "policy_change"
	EventTypeSystemStartup  EventType = "system_startup"
	EventTypeSystemShutdown EventType = "system_shutdown"
)

// Event represents a generic audit event
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	EventID   string                 `json:"event_id"`
	RequestID string                 `json:"request_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// DecisionEvent records a single access decision
type DecisionEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   EventType              `json:"event_type"`
	EventID     string                 `json:"event_id"`
	RequestID   string                 `json:"request_id,omitempty"`
	Subject     SubjectRef             `json:"subject"`
	Resource    ResourceRef            `json:"resource"`
	Action      string                 `json:"action"`
	Allowed     bool                   `json:"allowed"`
	AllowedBy   []string               `json:"allowed_by,omitempty"`
	DeniedBy    []string               `json:"denied_by,omitempty"`
	Performance Performance            `json:"performance"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SubjectRef identifies the subject of a decision
type SubjectRef struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	Tier string `json:"tier,omitempty"`
}

// ResourceRef identifies the resource of a decision
type ResourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Performance contains timing information for a decision
type Performance struct {
	DurationUs int64 `json:"duration_us"`
}

// PolicyChangeEvent records a change to the policy set
type PolicyChangeEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType EventType              `json:"event_type"`
	EventID   string                 `json:"event_id"`
	RequestID string                 `json:"request_id,omitempty"`
	Operation string                 `json:"operation"` // add, remove, enable, disable, reload
	PolicyID  string                 `json:"policy_id,omitempty"`
	ActorID   string                 `json:"actor_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// PolicyChange represents policy change details supplied by callers
type PolicyChange struct {
	Operation string
	PolicyID  string
	ActorID   string
	SourceIP  string
}
