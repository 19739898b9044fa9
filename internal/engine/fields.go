package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/formhive/abac-core/pkg/types"
)

// FilterFields returns the subset of fields the subject may read. Each field
// is checked with a synthetic sub-context whose resource type is the parent
// type suffixed with ":field" and whose action is fixed to "read". Input
// order is preserved and the input slice is never mutated.
func (e *Engine) FilterFields(ctx context.Context, ec *types.EvaluationContext, fields []types.Field) ([]types.Field, error) {
	out := make([]types.Field, 0, len(fields))
	if len(fields) == 0 {
		return out, nil
	}

	policies, err := e.loadPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("filter fields: %w", err)
	}

	fieldType := ec.Resource.Type + ":field"

	keep := make([]bool, len(fields))
	var wg sync.WaitGroup
	for i := range fields {
		i := i
		wg.Add(1)
		e.workerPool.Submit(func() {
			defer wg.Done()
			sub := fieldContext(ec, fieldType, &fields[i])
			keep[i] = e.decide(ctx, policies, sub).Allowed
		})
	}
	wg.Wait()

	for i, f := range fields {
		if keep[i] {
			out = append(out, f)
		}
	}

	e.metrics.RecordFieldsFiltered(len(fields) - len(out))
	return out, nil
}

// fieldContext builds the per-field sub-context. The field's own attributes
// are merged over the parent resource's attributes.
func fieldContext(ec *types.EvaluationContext, fieldType string, f *types.Field) *types.EvaluationContext {
	attrs := make(map[string]interface{}, len(ec.Resource.Attributes)+len(f.Attributes)+1)
	for k, v := range ec.Resource.Attributes {
		attrs[k] = v
	}
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	if f.Type != "" {
		attrs["fieldType"] = f.Type
	}

	return &types.EvaluationContext{
		Subject: ec.Subject,
		Resource: types.Resource{
			Type:       fieldType,
			ID:         f.ID,
			OwnerID:    ec.Resource.OwnerID,
			Visibility: ec.Resource.Visibility,
			Attributes: attrs,
		},
		Action:       "read",
		Subscription: ec.Subscription,
		Environment:  ec.Environment,
	}
}
