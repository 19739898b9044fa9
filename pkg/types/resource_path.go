package types

import (
	"strings"
)

// ResourcePath is a hierarchical resource identifier as ordered segments,
// written "form" or "form:field". The first segment is the base type.
type ResourcePath []string

// ParseResourcePath splits a resource string on ":" into its segments
func ParseResourcePath(s string) ResourcePath {
	if s == "" {
		return nil
	}
	return ResourcePath(strings.Split(s, ":"))
}

// String joins the segments back into the wire form
func (p ResourcePath) String() string {
	return strings.Join([]string(p), ":")
}

// Base returns the first segment, or "" for an empty path
func (p ResourcePath) Base() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Wildcard reports whether the path is the match-all pattern "*"
func (p ResourcePath) Wildcard() bool {
	return len(p) == 1 && p[0] == "*"
}

// MatchesPattern reports whether a resource of this path is covered by the
// given pattern path. A pattern matches when it is the wildcard, equals the
// path exactly, or shares the same base segment (policy resource "form"
// covers resource type "form:field").
func (p ResourcePath) MatchesPattern(pattern ResourcePath) bool {
	if pattern.Wildcard() {
		return true
	}
	if len(pattern) == len(p) {
		equal := true
		for i := range p {
			if p[i] != pattern[i] {
				equal = false
				break
			}
		}
		if equal {
			return true
		}
	}
	return pattern.Base() != "" && pattern.Base() == p.Base()
}
