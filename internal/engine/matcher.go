package engine

import (
	"github.com/formhive/abac-core/pkg/types"
)

// Matcher decides whether a policy applies to a request at all. Matching is
// structural only; condition clauses are evaluated separately once a policy
// has matched.
type Matcher struct{}

// NewMatcher creates a new policy matcher
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Matches reports whether the policy applies to the request. A policy
// matches when it is enabled, its resource pattern covers the requested
// resource type, its action is "*" or equals the requested action, and its
// owner scope (if any) equals the subject id.
func (m *Matcher) Matches(p *types.Policy, ec *types.EvaluationContext) bool {
	if p == nil || !p.Enabled {
		return false
	}

	if !m.matchesAction(p.Action, ec.Action) {
		return false
	}

	path := types.ParseResourcePath(ec.Resource.Type)
	if !path.MatchesPattern(types.ParseResourcePath(p.Resource)) {
		return false
	}

	if p.Scoped() && p.UserID != ec.Subject.ID {
		return false
	}

	return true
}

func (m *Matcher) matchesAction(pattern, action string) bool {
	return pattern == "*" || pattern == action
}
