// Package types provides shared types for the ABAC evaluation engine
package types

import (
	"time"
)

// Effect represents the authorization decision of a policy
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Valid reports whether the effect is a known value
func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// Operator is a comparison operator used in attribute and ownership clauses.
// Unrecognized operators evaluate to false.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "notEquals"
	OpIn             Operator = "in"
	OpNotIn          Operator = "notIn"
	OpGreater        Operator = "greater"
	OpLess           Operator = "less"
	OpGreaterOrEqual Operator = "greaterOrEqual"
	OpLessOrEqual    Operator = "lessOrEqual"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
)

// KnownOperators lists every operator the condition evaluator understands.
var KnownOperators = []Operator{
	OpEquals, OpNotEquals, OpIn, OpNotIn,
	OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual,
	OpContains, OpStartsWith, OpEndsWith,
}

// ClauseSource selects which side of the evaluation context an attribute
// clause reads from.
type ClauseSource string

const (
	SourceSubject  ClauseSource = "subject"
	SourceResource ClauseSource = "resource"
)

// Policy represents one access rule. A policy applies when its resource and
// action patterns match the request, its subject scope (if any) matches the
// caller, and every clause of its condition set holds.
type Policy struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Resource    string        `json:"resource" yaml:"resource"`
	Action      string        `json:"action" yaml:"action"`
	Effect      Effect        `json:"effect" yaml:"effect"`
	Conditions  *ConditionSet `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Priority    int           `json:"priority" yaml:"priority"`
	UserID      string        `json:"userId,omitempty" yaml:"userId,omitempty"`
	Enabled     bool          `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time     `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Scoped reports whether the policy is restricted to a single owning subject
func (p *Policy) Scoped() bool {
	return p.UserID != ""
}

// ConditionSet groups the optional clauses of a policy. All present clauses
// must hold (AND semantics). A nil ConditionSet matches unconditionally.
type ConditionSet struct {
	Attribute *AttributeCondition `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Ownership *AttributeCondition `json:"ownership,omitempty" yaml:"ownership,omitempty"`
	Time      *TimeCondition      `json:"time,omitempty" yaml:"time,omitempty"`
	Geo       *GeoCondition       `json:"geo,omitempty" yaml:"geo,omitempty"`
	Custom    string              `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Empty reports whether no clause is present
func (c *ConditionSet) Empty() bool {
	if c == nil {
		return true
	}
	return c.Attribute == nil && c.Ownership == nil && c.Time == nil &&
		c.Geo == nil && c.Custom == ""
}

// AttributeCondition compares one attribute of the subject or resource
// against an expected value. For ownership clauses the expected value may be
// the placeholder "{{user.id}}", resolved to the subject id at evaluation
// time.
type AttributeCondition struct {
	Source   ClauseSource `json:"source,omitempty" yaml:"source,omitempty"`
	Field    string       `json:"field" yaml:"field"`
	Operator Operator     `json:"operator" yaml:"operator"`
	Value    interface{}  `json:"value" yaml:"value"`
}

// TimeCondition restricts a policy to a time window. All specified sub-checks
// must pass. An hour range with StartHour > EndHour wraps around midnight
// (22-6 means 22:00 through 05:59).
type TimeCondition struct {
	After      *time.Time `json:"after,omitempty" yaml:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty" yaml:"before,omitempty"`
	StartHour  *int       `json:"startHour,omitempty" yaml:"startHour,omitempty"`
	EndHour    *int       `json:"endHour,omitempty" yaml:"endHour,omitempty"`
	DaysOfWeek []int      `json:"daysOfWeek,omitempty" yaml:"daysOfWeek,omitempty"`
}

// GeoCondition restricts a policy by request origin country. When the request
// country is unknown the clause passes unconditionally.
type GeoCondition struct {
	AllowedCountries []string `json:"allowedCountries,omitempty" yaml:"allowedCountries,omitempty"`
	BlockedCountries []string `json:"blockedCountries,omitempty" yaml:"blockedCountries,omitempty"`
}

// Subject is the entity requesting access
type Subject struct {
	ID         string                 `json:"id"`
	Role       string                 `json:"role,omitempty"`
	Tier       string                 `json:"tier,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Stats      map[string]interface{} `json:"stats,omitempty"`
}

// ToMap converts Subject to a map for sandbox evaluation
func (s *Subject) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":         s.ID,
		"role":       s.Role,
		"tier":       s.Tier,
		"attributes": s.Attributes,
		"attr":       s.Attributes, // alias
		"stats":      s.Stats,
	}
}

// Resource is the resource being accessed
type Resource struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	OwnerID    string                 `json:"ownerId,omitempty"`
	Visibility string                 `json:"visibility,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// ToMap converts Resource to a map for sandbox evaluation
func (r *Resource) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"type":       r.Type,
		"id":         r.ID,
		"ownerId":    r.OwnerID,
		"visibility": r.Visibility,
		"attributes": r.Attributes,
		"attr":       r.Attributes, // alias
	}
}

// Subscription carries the caller's plan limits for custom expressions
type Subscription struct {
	Plan   string                 `json:"plan,omitempty"`
	Limits map[string]interface{} `json:"limits,omitempty"`
}

// ToMap converts Subscription to a map for sandbox evaluation
func (s *Subscription) ToMap() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"plan": "", "limits": map[string]interface{}{}}
	}
	limits := s.Limits
	if limits == nil {
		limits = map[string]interface{}{}
	}
	return map[string]interface{}{
		"plan":   s.Plan,
		"limits": limits,
	}
}

// Environment carries request-level context (origin, time)
type Environment struct {
	IP        string    `json:"ip,omitempty"`
	Country   string    `json:"country,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Now returns the environment timestamp, falling back to the wall clock when
// the caller did not set one.
func (e *Environment) Now() time.Time {
	if e == nil || e.Timestamp.IsZero() {
		return time.Now()
	}
	return e.Timestamp
}

// EvaluationContext is the full input to one authorization decision. The
// engine is pure with respect to it: subject and resource attributes are
// resolved by the caller, never fetched here.
type EvaluationContext struct {
	Subject      Subject       `json:"subject"`
	Resource     Resource      `json:"resource"`
	Action       string        `json:"action"`
	Subscription *Subscription `json:"subscription,omitempty"`
	Environment  *Environment  `json:"environment,omitempty"`
}

// EvaluationResult is the outcome of one authorization decision. Allowed
// holds iff no matching policy denied and at least one matching policy
// allowed. Both id lists are always fully collected for audit.
type EvaluationResult struct {
	Allowed   bool     `json:"allowed"`
	DeniedBy  []string `json:"deniedBy,omitempty"`
	AllowedBy []string `json:"allowedBy,omitempty"`
}

// Field is one child attribute of a resource, subject to per-field
// authorization filtering.
type Field struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label,omitempty"`
	Type       string                 `json:"type,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}
