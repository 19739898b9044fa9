package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formhive/abac-core/internal/policy"
	"github.com/formhive/abac-core/pkg/types"
)

// countingStore counts GetAll calls and can be made to fail
type countingStore struct {
	policies []*types.Policy
	err      error
	calls    atomic.Int32
}

func (s *countingStore) GetAll(ctx context.Context) ([]*types.Policy, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.policies, nil
}

func (s *countingStore) Add(ctx context.Context, p *types.Policy) error    { return nil }
func (s *countingStore) Remove(ctx context.Context, id string) error       { return nil }
func (s *countingStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return nil
}

func TestCache_MergesDefaultsWithStore(t *testing.T) {
	store := &countingStore{
		policies: []*types.Policy{{ID: "custom-1", Name: "custom"}},
	}
	defaults := []*types.Policy{{ID: "default-1", Name: "default"}}

	c := New(store, defaults, time.Minute, nil)
	policies, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %d policies, want 2", len(policies))
	}
	if policies[0].ID != "default-1" || policies[1].ID != "custom-1" {
		t.Errorf("unexpected merge order: %s, %s", policies[0].ID, policies[1].ID)
	}
}

func TestCache_ServesFromSnapshotWithinTTL(t *testing.T) {
	store := &countingStore{}
	c := New(store, nil, time.Minute, nil)

	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background()); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if got := store.calls.Load(); got != 1 {
		t.Errorf("store read %d times within TTL, want 1", got)
	}
}

func TestCache_ExpiredSnapshotRefreshes(t *testing.T) {
	store := &countingStore{}
	c := New(store, nil, 10*time.Millisecond, nil)

	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Errorf("store read %d times across TTL expiry, want 2", got)
	}
}

func TestCache_InvalidateForcesReload(t *testing.T) {
	store := &countingStore{}
	c := New(store, nil, time.Hour, nil)

	c.Get(context.Background())
	c.Invalidate()
	c.Get(context.Background())

	if got := store.calls.Load(); got != 2 {
		t.Errorf("store read %d times after invalidate, want 2", got)
	}
}

func TestCache_StoreFailurePropagates(t *testing.T) {
	store := &countingStore{err: policy.ErrStoreUnavailable}
	c := New(store, []*types.Policy{{ID: "default-1"}}, time.Minute, nil)

	_, err := c.Get(context.Background())
	if !errors.Is(err, policy.ErrStoreUnavailable) {
		t.Fatalf("got %v, want ErrStoreUnavailable", err)
	}
}

func TestCache_ConcurrentReaders(t *testing.T) {
	store := &countingStore{
		policies: []*types.Policy{{ID: "p1"}},
	}
	c := New(store, nil, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				policies, err := c.Get(context.Background())
				if err != nil {
					t.Error(err)
					return
				}
				if len(policies) != 1 {
					t.Errorf("got %d policies, want 1", len(policies))
					return
				}
				if j%10 == 0 {
					c.Invalidate()
				}
			}
		}()
	}
	wg.Wait()
}
