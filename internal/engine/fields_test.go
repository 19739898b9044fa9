package engine

import (
	"context"
	"testing"

	"github.com/formhive/abac-core/pkg/types"
)

func TestFilterFields_EmptyInput(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.FilterFields(context.Background(), &types.EvaluationContext{
		Subject:  types.Subject{ID: "u1"},
		Resource: types.Resource{Type: "form"},
		Action:   "read",
	}, nil)
	if err != nil {
		t.Fatalf("FilterFields() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d fields, want 0", len(out))
	}
}

func TestFilterFields_KeepsAllowedFieldsInOrder(t *testing.T) {
	// Fields are readable unless flagged sensitive
	allow := allowPolicy("PF", "form:field", "read", 10)
	deny := denyPolicy("PS", "form:field", "read", 100)
	deny.Conditions = &types.ConditionSet{
		Attribute: &types.AttributeCondition{
			Source:   types.SourceResource,
			Field:    "sensitive",
			Operator: types.OpEquals,
			Value:    true,
		},
	}
	e := newTestEngine(t, allow, deny)

	fields := []types.Field{
		{ID: "name", Label: "Name"},
		{ID: "ssn", Label: "SSN", Attributes: map[string]interface{}{"sensitive": true}},
		{ID: "email", Label: "Email"},
		{ID: "salary", Attributes: map[string]interface{}{"sensitive": true}},
		{ID: "notes"},
	}

	out, err := e.FilterFields(context.Background(), &types.EvaluationContext{
		Subject:  types.Subject{ID: "u1"},
		Resource: types.Resource{Type: "form", ID: "f1"},
		Action:   "read",
	}, fields)
	if err != nil {
		t.Fatalf("FilterFields() error = %v", err)
	}

	want := []string{"name", "email", "notes"}
	if len(out) != len(want) {
		t.Fatalf("got %d fields, want %d", len(out), len(want))
	}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("out[%d].ID = %q, want %q", i, out[i].ID, id)
		}
	}

	// Input slice is untouched
	if len(fields) != 5 || fields[1].ID != "ssn" {
		t.Error("input slice was mutated")
	}
}

func TestFilterFields_ParentPatternCoversFields(t *testing.T) {
	// A policy on the base resource type covers its field sub-resources
	e := newTestEngine(t, allowPolicy("PB", "form", "*", 10))

	fields := []types.Field{{ID: "a"}, {ID: "b"}}
	out, err := e.FilterFields(context.Background(), &types.EvaluationContext{
		Subject:  types.Subject{ID: "u1"},
		Resource: types.Resource{Type: "form"},
		Action:   "update",
	}, fields)
	if err != nil {
		t.Fatalf("FilterFields() error = %v", err)
	}
	if len(out) != 2 {
		t.Errorf("got %d fields, want 2", len(out))
	}
}

func TestFilterFields_DefaultDenyRemovesAll(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.FilterFields(context.Background(), &types.EvaluationContext{
		Subject:  types.Subject{ID: "u1"},
		Resource: types.Resource{Type: "form"},
		Action:   "read",
	}, []types.Field{{ID: "a"}, {ID: "b"}})
	if err != nil {
		t.Fatalf("FilterFields() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d fields, want 0 with no policies", len(out))
	}
}

func TestFilterFields_FieldAttributesMergeOverParent(t *testing.T) {
	// Field attribute overrides the parent resource attribute of the same name
	deny := denyPolicy("PS", "form:field", "read", 100)
	deny.Conditions = &types.ConditionSet{
		Attribute: &types.AttributeCondition{
			Source:   types.SourceResource,
			Field:    "tier",
			Operator: types.OpEquals,
			Value:    "restricted",
		},
	}
	e := newTestEngine(t, allowPolicy("PF", "form:field", "read", 10), deny)

	fields := []types.Field{
		{ID: "open"},
		{ID: "closed", Attributes: map[string]interface{}{"tier": "restricted"}},
	}

	out, err := e.FilterFields(context.Background(), &types.EvaluationContext{
		Subject: types.Subject{ID: "u1"},
		Resource: types.Resource{
			Type:       "form",
			Attributes: map[string]interface{}{"tier": "standard"},
		},
		Action: "read",
	}, fields)
	if err != nil {
		t.Fatalf("FilterFields() error = %v", err)
	}

	if len(out) != 1 || out[0].ID != "open" {
		t.Errorf("out = %+v, want only the open field", out)
	}
}
