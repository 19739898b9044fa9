// Package cache holds the merged default+custom policy set with time-boxed
// refresh from the external store.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/formhive/abac-core/internal/policy"
	"github.com/formhive/abac-core/pkg/types"
)

// DefaultTTL is how long a policy snapshot stays fresh
const DefaultTTL = 5 * time.Minute

type snapshot struct {
	policies []*types.Policy
	loadedAt time.Time
}

// PolicySetCache caches the combined default+custom policy list. The cache
// slot is replaced atomically, so readers never observe a partially updated
// list. Concurrent refills are tolerated as duplicate idempotent work; there
// is no mutex around the store read.
type PolicySetCache struct {
	store    policy.Store
	defaults []*types.Policy
	ttl      time.Duration
	logger   *zap.Logger

	slot atomic.Pointer[snapshot]

	refreshes     atomic.Uint64
	invalidations atomic.Uint64
}

// Stats reports cache activity
type Stats struct {
	Refreshes     uint64
	Invalidations uint64
	Size          int
	Age           time.Duration
}

// New creates a policy set cache. The defaults list is compiled in at
// process start and merged ahead of store policies on every refresh.
func New(store policy.Store, defaults []*types.Policy, ttl time.Duration, logger *zap.Logger) *PolicySetCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicySetCache{
		store:    store,
		defaults: defaults,
		ttl:      ttl,
		logger:   logger,
	}
}

// Get returns the cached policy list, refreshing from the store when the
// cache is empty or its age exceeds the TTL. A store failure propagates to
// the caller; evaluation aborts rather than defaulting to allow.
func (c *PolicySetCache) Get(ctx context.Context) ([]*types.Policy, error) {
	if s := c.slot.Load(); s != nil && time.Since(s.loadedAt) < c.ttl {
		return s.policies, nil
	}
	return c.refresh(ctx)
}

// Invalidate forces the next Get to reload from the store. The admin layer
// must call this after any policy mutation.
func (c *PolicySetCache) Invalidate() {
	c.slot.Store(nil)
	c.invalidations.Add(1)
	c.logger.Debug("Policy cache invalidated")
}

func (c *PolicySetCache) refresh(ctx context.Context) ([]*types.Policy, error) {
	custom, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	merged := make([]*types.Policy, 0, len(c.defaults)+len(custom))
	merged = append(merged, c.defaults...)
	merged = append(merged, custom...)

	c.slot.Store(&snapshot{policies: merged, loadedAt: time.Now()})
	c.refreshes.Add(1)

	c.logger.Debug("Policy cache refreshed",
		zap.Int("defaults", len(c.defaults)),
		zap.Int("custom", len(custom)),
	)
	return merged, nil
}

// Stats returns cache statistics
func (c *PolicySetCache) Stats() Stats {
	stats := Stats{
		Refreshes:     c.refreshes.Load(),
		Invalidations: c.invalidations.Load(),
	}
	if s := c.slot.Load(); s != nil {
		stats.Size = len(s.policies)
		stats.Age = time.Since(s.loadedAt)
	}
	return stats
}
