package policy

import (
	"github.com/formhive/abac-core/pkg/types"
)

// DefaultPolicies returns the compiled-in policy set. These are merged with
// store-sourced policies on every cache refresh and cannot be disabled or
// deleted through the store.
func DefaultPolicies() []*types.Policy {
	return []*types.Policy{
		{
			ID:          "default-admin-access",
			Name:        "Administrator access",
			Description: "Administrators may perform any action on any resource",
			Resource:    "*",
			Action:      "*",
			Effect:      types.EffectAllow,
			Priority:    90,
			Enabled:     true,
			Conditions: &types.ConditionSet{
				Attribute: &types.AttributeCondition{
					Source:   types.SourceSubject,
					Field:    "role",
					Operator: types.OpEquals,
					Value:    "admin",
				},
			},
		},
		{
			ID:          "default-owner-access",
			Name:        "Owner access",
			Description: "Subjects may perform any action on resources they own",
			Resource:    "*",
			Action:      "*",
			Effect:      types.EffectAllow,
			Priority:    50,
			Enabled:     true,
			Conditions: &types.ConditionSet{
				Ownership: &types.AttributeCondition{
					Source: types.SourceResource,
					Field:  "ownerId",
					Value:  "{{user.id}}",
				},
			},
		},
		{
			ID:          "default-public-read",
			Name:        "Public read",
			Description: "Anyone may read resources marked public",
			Resource:    "*",
			Action:      "read",
			Effect:      types.EffectAllow,
			Priority:    10,
			Enabled:     true,
			Conditions: &types.ConditionSet{
				Attribute: &types.AttributeCondition{
					Source:   types.SourceResource,
					Field:    "visibility",
					Operator: types.OpEquals,
					Value:    "public",
				},
			},
		},
	}
}
