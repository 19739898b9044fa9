package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/formhive/abac-core/pkg/types"
)

func TestMemoryStore_AddAndGetAll(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Add(ctx, &types.Policy{ID: "p1", Name: "first", Resource: "form", Action: "*", Effect: types.EffectAllow, Enabled: true}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, &types.Policy{ID: "p2", Name: "second", Resource: "user", Action: "read", Effect: types.EffectDeny, Enabled: true}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	policies, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("GetAll returned %d policies, want 2", len(policies))
	}
	// Insertion order is preserved
	if policies[0].ID != "p1" || policies[1].ID != "p2" {
		t.Errorf("unexpected order: %s, %s", policies[0].ID, policies[1].ID)
	}
}

func TestMemoryStore_AddRequiresID(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Add(context.Background(), &types.Policy{Name: "no id"}); err == nil {
		t.Error("expected error for policy without id")
	}
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Add(ctx, &types.Policy{ID: "p1", Name: "first"})
	if err := store.Remove(ctx, "p1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Count() = %d after remove, want 0", store.Count())
	}

	if err := store.Remove(ctx, "missing"); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("Remove of missing policy: got %v, want ErrPolicyNotFound", err)
	}
}

func TestMemoryStore_SetEnabled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := &types.Policy{ID: "p1", Name: "first", Enabled: true}
	store.Add(ctx, original)

	if err := store.SetEnabled(ctx, "p1", false); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}

	policies, _ := store.GetAll(ctx)
	if policies[0].Enabled {
		t.Error("policy should be disabled")
	}
	// The caller's policy value is not mutated
	if !original.Enabled {
		t.Error("SetEnabled must not mutate the stored pointer in place")
	}

	if err := store.SetEnabled(ctx, "missing", true); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("SetEnabled of missing policy: got %v, want ErrPolicyNotFound", err)
	}
}
