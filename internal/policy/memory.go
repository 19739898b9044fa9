package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/formhive/abac-core/pkg/types"
)

// MemoryStore implements an in-memory policy store
type MemoryStore struct {
	policies map[string]*types.Policy
	order    []string
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory policy store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*types.Policy),
	}
}

// GetAll returns all policies in insertion order
func (s *MemoryStore) GetAll(ctx context.Context) ([]*types.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policies := make([]*types.Policy, 0, len(s.order))
	for _, id := range s.order {
		policies = append(policies, s.policies[id])
	}
	return policies, nil
}

// Add inserts or replaces a policy by id
func (s *MemoryStore) Add(ctx context.Context, policy *types.Policy) error {
	if policy == nil || policy.ID == "" {
		return fmt.Errorf("policy id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.policies[policy.ID]; !exists {
		s.order = append(s.order, policy.ID)
	}
	s.policies[policy.ID] = policy
	return nil
}

// Remove deletes a policy by id
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	delete(s.policies, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled flips a policy's enabled flag
func (s *MemoryStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	updated := *p
	updated.Enabled = enabled
	s.policies[id] = &updated
	return nil
}

// Count returns the number of stored policies
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.policies)
}

// Clear removes all policies
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = make(map[string]*types.Policy)
	s.order = nil
}
