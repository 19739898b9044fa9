package policy

import (
	"fmt"
	"regexp"

	"github.com/formhive/abac-core/internal/sandbox"
	"github.com/formhive/abac-core/pkg/types"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.-]*$`)

// Validator validates policy structure at load and refresh time so malformed
// policies are rejected with a diagnostic instead of silently failing closed
// per request.
type Validator struct {
	sandbox *sandbox.Sandbox
}

// NewValidator creates a policy validator. The sandbox is used to compile
// custom condition expressions; validation fails when an expression does not
// produce a boolean.
func NewValidator(sb *sandbox.Sandbox) *Validator {
	return &Validator{sandbox: sb}
}

// ValidatePolicy validates the structure of a single policy
func (v *Validator) ValidatePolicy(policy *types.Policy) error {
	if policy == nil {
		return fmt.Errorf("policy cannot be nil")
	}
	if policy.ID == "" {
		return fmt.Errorf("policy id is required")
	}
	if !identifierPattern.MatchString(policy.ID) {
		return fmt.Errorf("invalid policy id format: %s", policy.ID)
	}
	if policy.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if policy.Resource == "" {
		return fmt.Errorf("policy resource pattern is required")
	}
	if policy.Action == "" {
		return fmt.Errorf("policy action pattern is required")
	}
	if !policy.Effect.Valid() {
		return fmt.Errorf("invalid effect: %s (must be 'allow' or 'deny')", policy.Effect)
	}
	if err := v.validateConditions(policy.Conditions); err != nil {
		return fmt.Errorf("invalid conditions: %w", err)
	}
	return nil
}

// ValidateAll validates a batch, returning the first failure annotated with
// the offending policy id.
func (v *Validator) ValidateAll(policies []*types.Policy) error {
	for _, p := range policies {
		if err := v.ValidatePolicy(p); err != nil {
			id := "(nil)"
			if p != nil {
				id = p.ID
			}
			return fmt.Errorf("policy %s: %w", id, err)
		}
	}
	return nil
}

func (v *Validator) validateConditions(set *types.ConditionSet) error {
	if set.Empty() {
		return nil
	}

	if set.Attribute != nil {
		if err := validateAttributeClause(set.Attribute, false); err != nil {
			return fmt.Errorf("attribute clause: %w", err)
		}
	}
	if set.Ownership != nil {
		if err := validateAttributeClause(set.Ownership, true); err != nil {
			return fmt.Errorf("ownership clause: %w", err)
		}
	}
	if set.Time != nil {
		if err := validateTimeClause(set.Time); err != nil {
			return fmt.Errorf("time clause: %w", err)
		}
	}
	if set.Geo != nil {
		if err := validateGeoClause(set.Geo); err != nil {
			return fmt.Errorf("geo clause: %w", err)
		}
	}
	if set.Custom != "" && v.sandbox != nil {
		if _, err := v.sandbox.Compile(set.Custom); err != nil {
			return fmt.Errorf("custom clause: %w", err)
		}
	}
	return nil
}

func validateAttributeClause(clause *types.AttributeCondition, ownership bool) error {
	if clause.Field == "" {
		return fmt.Errorf("field is required")
	}
	if clause.Source != "" && clause.Source != types.SourceSubject && clause.Source != types.SourceResource {
		return fmt.Errorf("unknown source: %s", clause.Source)
	}
	// Ownership clauses default to equality; plain attribute clauses must
	// name a known operator up front.
	if clause.Operator == "" {
		if !ownership {
			return fmt.Errorf("operator is required")
		}
		return nil
	}
	for _, op := range types.KnownOperators {
		if clause.Operator == op {
			return nil
		}
	}
	return fmt.Errorf("unknown operator: %s", clause.Operator)
}

func validateTimeClause(clause *types.TimeCondition) error {
	if (clause.StartHour == nil) != (clause.EndHour == nil) {
		return fmt.Errorf("startHour and endHour must be set together")
	}
	if clause.StartHour != nil {
		if *clause.StartHour < 0 || *clause.StartHour > 23 {
			return fmt.Errorf("startHour out of range: %d", *clause.StartHour)
		}
		if *clause.EndHour < 0 || *clause.EndHour > 23 {
			return fmt.Errorf("endHour out of range: %d", *clause.EndHour)
		}
	}
	for _, d := range clause.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("day of week out of range: %d", d)
		}
	}
	if clause.After != nil && clause.Before != nil && !clause.After.Before(*clause.Before) {
		return fmt.Errorf("after bound must precede before bound")
	}
	return nil
}

func validateGeoClause(clause *types.GeoCondition) error {
	for _, c := range clause.AllowedCountries {
		if c == "" {
			return fmt.Errorf("empty country code in allow list")
		}
	}
	for _, c := range clause.BlockedCountries {
		if c == "" {
			return fmt.Errorf("empty country code in block list")
		}
	}
	return nil
}
