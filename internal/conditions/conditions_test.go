package conditions

import (
	"context"
	"testing"
	"time"

	"github.com/formhive/abac-core/internal/sandbox"
	"github.com/formhive/abac-core/pkg/types"
)

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	sb, err := sandbox.New()
	if err != nil {
		t.Fatalf("Failed to create sandbox: %v", err)
	}
	return New(sb, nil)
}

func TestCompare_Operators(t *testing.T) {
	tests := []struct {
		name     string
		op       types.Operator
		actual   interface{}
		expected interface{}
		want     bool
	}{
		{"equals strings", types.OpEquals, "admin", "admin", true},
		{"equals mismatch", types.OpEquals, "user", "admin", false},
		{"equals cross-type numeric", types.OpEquals, 10, float64(10), true},
		{"notEquals", types.OpNotEquals, "user", "admin", true},
		{"in list", types.OpIn, "pro", []interface{}{"pro", "enterprise"}, true},
		{"in list miss", types.OpIn, "free", []interface{}{"pro", "enterprise"}, false},
		{"in string slice", types.OpIn, "pro", []string{"pro"}, true},
		{"notIn", types.OpNotIn, "free", []interface{}{"pro"}, true},
		{"greater", types.OpGreater, 11, 10, true},
		{"greater equal values", types.OpGreater, 10, 10, false},
		{"less", types.OpLess, 9, 10, true},
		{"greaterOrEqual boundary", types.OpGreaterOrEqual, 10, 10, true},
		{"lessOrEqual boundary", types.OpLessOrEqual, 10, 10, true},
		{"greater non-numeric", types.OpGreater, "abc", 10, false},
		{"numeric string coerces", types.OpGreater, "11", 10, true},
		{"contains substring", types.OpContains, "administrator", "admin", true},
		{"contains list element", types.OpContains, []interface{}{"a", "b"}, "b", true},
		{"startsWith", types.OpStartsWith, "form:field", "form", true},
		{"endsWith", types.OpEndsWith, "form:field", "field", true},
		{"unrecognized operator fails closed", types.Operator("matches"), "x", "x", false},
		{"empty operator fails closed", types.Operator(""), "x", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.op, tt.actual, tt.expected); got != tt.want {
				t.Errorf("Compare(%q, %v, %v) = %v, want %v", tt.op, tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}

func TestSatisfied_EmptySet(t *testing.T) {
	e := newEvaluator(t)
	ec := &types.EvaluationContext{Action: "read"}

	if !e.Satisfied(context.Background(), "p1", nil, ec) {
		t.Error("nil condition set should be satisfied")
	}
	if !e.Satisfied(context.Background(), "p1", &types.ConditionSet{}, ec) {
		t.Error("empty condition set should be satisfied")
	}
}

func TestSatisfied_AttributeClause(t *testing.T) {
	e := newEvaluator(t)
	ec := &types.EvaluationContext{
		Subject: types.Subject{
			ID:   "u1",
			Role: "user",
			Attributes: map[string]interface{}{
				"department": "sales",
			},
		},
		Resource: types.Resource{
			Type:       "form",
			Visibility: "private",
		},
	}

	tests := []struct {
		name string
		cond *types.AttributeCondition
		want bool
	}{
		{
			name: "subject role matches",
			cond: &types.AttributeCondition{Field: "role", Operator: types.OpEquals, Value: "user"},
			want: true,
		},
		{
			name: "subject role notEquals admin",
			cond: &types.AttributeCondition{Field: "role", Operator: types.OpNotEquals, Value: "admin"},
			want: true,
		},
		{
			name: "subject custom attribute",
			cond: &types.AttributeCondition{Field: "department", Operator: types.OpEquals, Value: "sales"},
			want: true,
		},
		{
			name: "resource visibility",
			cond: &types.AttributeCondition{Source: types.SourceResource, Field: "visibility", Operator: types.OpEquals, Value: "private"},
			want: true,
		},
		{
			name: "missing attribute fails closed",
			cond: &types.AttributeCondition{Field: "clearance", Operator: types.OpEquals, Value: "top"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := &types.ConditionSet{Attribute: tt.cond}
			if got := e.Satisfied(context.Background(), "p1", set, ec); got != tt.want {
				t.Errorf("Satisfied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSatisfied_OwnershipPlaceholder(t *testing.T) {
	e := newEvaluator(t)
	set := &types.ConditionSet{
		Ownership: &types.AttributeCondition{
			Field: "userId",
			Value: "{{user.id}}",
		},
	}

	owned := &types.EvaluationContext{
		Subject: types.Subject{ID: "u1"},
		Resource: types.Resource{
			Type:       "form",
			Attributes: map[string]interface{}{"userId": "u1"},
		},
	}
	if !e.Satisfied(context.Background(), "p1", set, owned) {
		t.Error("ownership clause should match the owning subject")
	}

	foreign := &types.EvaluationContext{
		Subject: types.Subject{ID: "u2"},
		Resource: types.Resource{
			Type:       "form",
			Attributes: map[string]interface{}{"userId": "u1"},
		},
	}
	if e.Satisfied(context.Background(), "p1", set, foreign) {
		t.Error("ownership clause should reject a non-owner")
	}
}

func TestEvaluateTime_HourWraparound(t *testing.T) {
	start, end := 22, 6
	cond := &types.TimeCondition{StartHour: &start, EndHour: &end}

	at := func(hour int) *types.Environment {
		return &types.Environment{
			Timestamp: time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC),
		}
	}

	if !evaluateTime(cond, at(23)) {
		t.Error("23:00 should pass a 22-6 hour range")
	}
	if !evaluateTime(cond, at(3)) {
		t.Error("03:00 should pass a 22-6 hour range")
	}
	if evaluateTime(cond, at(10)) {
		t.Error("10:00 should fail a 22-6 hour range")
	}
	if evaluateTime(cond, at(6)) {
		t.Error("06:00 should fail a 22-6 hour range (end exclusive)")
	}
}

func TestEvaluateTime_BoundsAndDays(t *testing.T) {
	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	// 2026-03-10 is a Tuesday
	tuesday := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cond := &types.TimeCondition{
		After:      &after,
		Before:     &before,
		DaysOfWeek: []int{int(time.Tuesday), int(time.Thursday)},
	}
	if !evaluateTime(cond, &types.Environment{Timestamp: tuesday}) {
		t.Error("tuesday inside bounds should pass")
	}

	monday := tuesday.AddDate(0, 0, -1)
	if evaluateTime(cond, &types.Environment{Timestamp: monday}) {
		t.Error("monday should fail the day-of-week set")
	}

	outside := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)
	if evaluateTime(cond, &types.Environment{Timestamp: outside}) {
		t.Error("timestamp past the before bound should fail")
	}
}

func TestEvaluateGeo(t *testing.T) {
	allow := &types.GeoCondition{AllowedCountries: []string{"US", "CA"}}
	deny := &types.GeoCondition{BlockedCountries: []string{"KP"}}

	tests := []struct {
		name string
		cond *types.GeoCondition
		env  *types.Environment
		want bool
	}{
		{"unknown country passes allow-list", allow, &types.Environment{}, true},
		{"nil environment passes", allow, nil, true},
		{"allow-list member", allow, &types.Environment{Country: "US"}, true},
		{"allow-list case-insensitive", allow, &types.Environment{Country: "us"}, true},
		{"allow-list non-member", allow, &types.Environment{Country: "FR"}, false},
		{"deny-list member", deny, &types.Environment{Country: "KP"}, false},
		{"deny-list non-member", deny, &types.Environment{Country: "US"}, true},
		{"unknown country passes deny-list", deny, &types.Environment{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evaluateGeo(tt.cond, tt.env); got != tt.want {
				t.Errorf("evaluateGeo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSatisfied_CustomClause(t *testing.T) {
	e := newEvaluator(t)

	ec := &types.EvaluationContext{
		Subject: types.Subject{
			ID:    "u1",
			Stats: map[string]interface{}{"formCount": 10},
		},
		Resource: types.Resource{Type: "form"},
		Subscription: &types.Subscription{
			Limits: map[string]interface{}{"forms": 10},
		},
	}

	set := &types.ConditionSet{Custom: "user.stats.formCount >= subscription.limits.forms"}
	if !e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("custom clause at the limit boundary should be satisfied")
	}

	ec.Subject.Stats["formCount"] = 9
	if e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("custom clause under the limit should not be satisfied")
	}
}

func TestSatisfied_CustomClauseFailsClosed(t *testing.T) {
	e := newEvaluator(t)
	ec := &types.EvaluationContext{
		Subject:  types.Subject{ID: "u1"},
		Resource: types.Resource{Type: "form"},
	}

	// Parse error
	set := &types.ConditionSet{Custom: "this is not an expression"}
	if e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("unparseable custom clause should fail closed")
	}

	// Runtime error (missing key)
	set = &types.ConditionSet{Custom: `subject.stats.missing > 1`}
	if e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("erroring custom clause should fail closed")
	}
}

func TestSatisfied_AllClausesAnd(t *testing.T) {
	e := newEvaluator(t)
	ec := &types.EvaluationContext{
		Subject: types.Subject{ID: "u1", Role: "user"},
		Resource: types.Resource{
			Type:       "form",
			Attributes: map[string]interface{}{"userId": "u1"},
		},
		Environment: &types.Environment{Country: "US"},
	}

	set := &types.ConditionSet{
		Attribute: &types.AttributeCondition{Field: "role", Operator: types.OpEquals, Value: "user"},
		Ownership: &types.AttributeCondition{Field: "userId", Value: "{{user.id}}"},
		Geo:       &types.GeoCondition{AllowedCountries: []string{"US"}},
	}
	if !e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("all clauses hold, set should be satisfied")
	}

	// One failing clause defeats the set
	set.Attribute.Value = "admin"
	if e.Satisfied(context.Background(), "p1", set, ec) {
		t.Error("one failing clause should defeat the set")
	}
}
