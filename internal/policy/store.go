// Package policy provides policy storage, loading, and validation
package policy

import (
	"context"
	"errors"

	"github.com/formhive/abac-core/pkg/types"
)

// ErrStoreUnavailable wraps any backing-store failure. The evaluator
// propagates it to the caller; it is never converted into an allow.
var ErrStoreUnavailable = errors.New("policy store unavailable")

// ErrPolicyNotFound is returned by write operations on a missing policy
var ErrPolicyNotFound = errors.New("policy not found")

// ErrReadOnlyStore is returned by write operations on stores that are
// mutated out of band (e.g. policy files deployed to disk).
var ErrReadOnlyStore = errors.New("policy store is read-only")

// Store is the external custom-policy store. The evaluation path uses only
// GetAll; the write operations serve the admin surface, which must invalidate
// the engine's cache after every mutation.
type Store interface {
	// GetAll returns every custom policy, enabled or not
	GetAll(ctx context.Context) ([]*types.Policy, error)

	// Add inserts or replaces a policy by id
	Add(ctx context.Context, policy *types.Policy) error

	// Remove deletes a policy by id
	Remove(ctx context.Context, id string) error

	// SetEnabled flips a policy's enabled flag
	SetEnabled(ctx context.Context, id string, enabled bool) error
}
