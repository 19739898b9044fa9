// Package conditions evaluates policy condition clauses against an
// evaluation context. All functions are total: ambiguity, type mismatches,
// and unrecognized operators evaluate to false. The single documented
// exception is the geography clause, which passes when the request country
// is unknown.
package conditions

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/formhive/abac-core/internal/sandbox"
	"github.com/formhive/abac-core/pkg/types"
)

// OwnerPlaceholder in an ownership clause's expected value is resolved to
// the subject id at evaluation time.
const OwnerPlaceholder = "{{user.id}}"

// Evaluator evaluates condition sets. Stateless apart from the sandbox's
// compiled-program cache.
type Evaluator struct {
	sandbox *sandbox.Sandbox
	logger  *zap.Logger
}

// New creates a condition evaluator
func New(sb *sandbox.Sandbox, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		sandbox: sb,
		logger:  logger,
	}
}

// Satisfied reports whether every present clause of the condition set holds.
// A nil or empty set is satisfied unconditionally.
func (e *Evaluator) Satisfied(ctx context.Context, policyID string, set *types.ConditionSet, ec *types.EvaluationContext) bool {
	if set.Empty() {
		return true
	}

	if set.Attribute != nil && !e.evaluateAttribute(set.Attribute, ec) {
		return false
	}
	if set.Ownership != nil && !e.evaluateOwnership(set.Ownership, ec) {
		return false
	}
	if set.Time != nil && !evaluateTime(set.Time, ec.Environment) {
		return false
	}
	if set.Geo != nil && !evaluateGeo(set.Geo, ec.Environment) {
		return false
	}
	if set.Custom != "" && !e.evaluateCustom(ctx, policyID, set.Custom, ec) {
		return false
	}
	return true
}

// evaluateAttribute compares one subject or resource attribute. The clause
// reads from the subject unless it names the resource explicitly.
func (e *Evaluator) evaluateAttribute(cond *types.AttributeCondition, ec *types.EvaluationContext) bool {
	source := cond.Source
	if source == "" {
		source = types.SourceSubject
	}
	actual, ok := lookupAttribute(source, cond.Field, ec)
	if !ok {
		return false
	}
	return Compare(cond.Operator, actual, cond.Value)
}

// evaluateOwnership is the attribute comparison with the expected value's
// owner placeholder resolved first. It reads from the resource unless the
// clause names the subject, and defaults to equality when no operator is
// given.
func (e *Evaluator) evaluateOwnership(cond *types.AttributeCondition, ec *types.EvaluationContext) bool {
	source := cond.Source
	if source == "" {
		source = types.SourceResource
	}
	op := cond.Operator
	if op == "" {
		op = types.OpEquals
	}

	expected := cond.Value
	if s, ok := expected.(string); ok && strings.Contains(s, OwnerPlaceholder) {
		expected = strings.ReplaceAll(s, OwnerPlaceholder, ec.Subject.ID)
	}

	actual, ok := lookupAttribute(source, cond.Field, ec)
	if !ok {
		return false
	}
	return Compare(op, actual, expected)
}

// evaluateTime checks every specified sub-check of the time clause against
// the request timestamp. The hour range is start-inclusive, end-exclusive;
// start > end wraps around midnight (22-6 covers 22:00 through 05:59).
func evaluateTime(cond *types.TimeCondition, env *types.Environment) bool {
	now := env.Now()

	if cond.After != nil && now.Before(*cond.After) {
		return false
	}
	if cond.Before != nil && !now.Before(*cond.Before) {
		return false
	}

	if cond.StartHour != nil && cond.EndHour != nil {
		hour := now.Hour()
		start, end := *cond.StartHour, *cond.EndHour
		var inRange bool
		switch {
		case start < end:
			inRange = hour >= start && hour < end
		case start > end:
			inRange = hour >= start || hour < end
		default:
			inRange = hour == start
		}
		if !inRange {
			return false
		}
	}

	if len(cond.DaysOfWeek) > 0 {
		day := int(now.Weekday())
		found := false
		for _, d := range cond.DaysOfWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// evaluateGeo checks the request country against the clause's lists. An
// unknown country passes unconditionally so unrecognized-origin traffic is
// never blocked by a geo clause.
func evaluateGeo(cond *types.GeoCondition, env *types.Environment) bool {
	if env == nil || env.Country == "" {
		return true
	}

	if len(cond.AllowedCountries) > 0 {
		return containsCountry(cond.AllowedCountries, env.Country)
	}
	if len(cond.BlockedCountries) > 0 {
		return !containsCountry(cond.BlockedCountries, env.Country)
	}
	return true
}

// evaluateCustom delegates to the sandbox. Any sandbox error, including a
// timeout, is logged with the offending expression and treated as a
// non-matching clause.
func (e *Evaluator) evaluateCustom(ctx context.Context, policyID, expr string, ec *types.EvaluationContext) bool {
	result, err := e.sandbox.Evaluate(ctx, expr, sandbox.Input{
		Subject:      ec.Subject.ToMap(),
		Resource:     ec.Resource.ToMap(),
		Subscription: ec.Subscription.ToMap(),
	})
	if err != nil {
		e.logger.Warn("Custom condition evaluation failed",
			zap.String("policy_id", policyID),
			zap.String("expression", expr),
			zap.Error(err),
		)
		return false
	}
	return result
}

// lookupAttribute resolves a clause field against the subject or resource.
// Structured fields are checked before the free-form attribute map.
func lookupAttribute(source types.ClauseSource, field string, ec *types.EvaluationContext) (interface{}, bool) {
	switch source {
	case types.SourceSubject:
		switch field {
		case "id":
			return ec.Subject.ID, true
		case "role":
			return ec.Subject.Role, true
		case "tier":
			return ec.Subject.Tier, true
		}
		v, ok := ec.Subject.Attributes[field]
		return v, ok
	case types.SourceResource:
		switch field {
		case "type":
			return ec.Resource.Type, true
		case "id":
			return ec.Resource.ID, true
		case "ownerId", "owner":
			return ec.Resource.OwnerID, true
		case "visibility":
			return ec.Resource.Visibility, true
		}
		v, ok := ec.Resource.Attributes[field]
		return v, ok
	default:
		return nil, false
	}
}

// Compare applies an operator to an actual and expected value. Unrecognized
// operators and incomparable operands evaluate to false.
func Compare(op types.Operator, actual, expected interface{}) bool {
	switch op {
	case types.OpEquals:
		return valuesEqual(actual, expected)
	case types.OpNotEquals:
		return !valuesEqual(actual, expected)
	case types.OpIn:
		return valueInList(actual, expected)
	case types.OpNotIn:
		return !valueInList(actual, expected)
	case types.OpGreater:
		a, b, ok := toFloats(actual, expected)
		return ok && a > b
	case types.OpLess:
		a, b, ok := toFloats(actual, expected)
		return ok && a < b
	case types.OpGreaterOrEqual:
		a, b, ok := toFloats(actual, expected)
		return ok && a >= b
	case types.OpLessOrEqual:
		a, b, ok := toFloats(actual, expected)
		return ok && a <= b
	case types.OpContains:
		if list, ok := toList(actual); ok {
			for _, item := range list {
				if valuesEqual(item, expected) {
					return true
				}
			}
			return false
		}
		a, aok := toString(actual)
		b, bok := toString(expected)
		return aok && bok && strings.Contains(a, b)
	case types.OpStartsWith:
		a, aok := toString(actual)
		b, bok := toString(expected)
		return aok && bok && strings.HasPrefix(a, b)
	case types.OpEndsWith:
		a, aok := toString(actual)
		b, bok := toString(expected)
		return aok && bok && strings.HasSuffix(a, b)
	default:
		return false
	}
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, bf, ok := toFloats(a, b); ok {
		return af == bf
	}
	as, aok := toString(a)
	bs, bok := toString(b)
	if aok && bok {
		return as == bs
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}
	return false
}

func valueInList(actual, expected interface{}) bool {
	list, ok := toList(expected)
	if !ok {
		return false
	}
	for _, item := range list {
		if valuesEqual(actual, item) {
			return true
		}
	}
	return false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloats(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func containsCountry(list []string, country string) bool {
	for _, c := range list {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}
