package types

import (
	"testing"
)

func TestResourcePath_MatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		pattern  string
		want     bool
	}{
		{"wildcard matches anything", "form", "*", true},
		{"wildcard matches hierarchical", "form:field", "*", true},
		{"exact match", "form", "form", true},
		{"exact hierarchical match", "form:field", "form:field", true},
		{"base covers child", "form:field", "form", true},
		{"child pattern covers sibling via base", "form:field", "form:meta", true},
		{"different base", "form", "user", false},
		{"different base hierarchical", "form:field", "user", false},
		{"empty pattern never matches", "form", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResourcePath(tt.resource).MatchesPattern(ParseResourcePath(tt.pattern))
			if got != tt.want {
				t.Errorf("resource %q pattern %q: got %v, want %v", tt.resource, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestResourcePath_Base(t *testing.T) {
	if got := ParseResourcePath("form:field").Base(); got != "form" {
		t.Errorf("Base() = %q, want form", got)
	}
	if got := ParseResourcePath("").Base(); got != "" {
		t.Errorf("Base() on empty = %q, want empty", got)
	}
}

func TestConditionSet_Empty(t *testing.T) {
	var nilSet *ConditionSet
	if !nilSet.Empty() {
		t.Error("nil condition set should be empty")
	}
	if !(&ConditionSet{}).Empty() {
		t.Error("zero condition set should be empty")
	}
	if (&ConditionSet{Custom: "true"}).Empty() {
		t.Error("condition set with custom clause should not be empty")
	}
}
