// Package engine provides the core access decision engine
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/formhive/abac-core/internal/audit"
	"github.com/formhive/abac-core/internal/cache"
	"github.com/formhive/abac-core/internal/conditions"
	"github.com/formhive/abac-core/internal/metrics"
	"github.com/formhive/abac-core/internal/policy"
	"github.com/formhive/abac-core/internal/sandbox"
	"github.com/formhive/abac-core/pkg/types"
)

// Engine is the access decision engine. It combines the default policy set
// with store-backed custom policies and evaluates requests deny-over-allow:
// a request is allowed iff no matching policy denies and at least one
// matching policy allows.
type Engine struct {
	cache      *cache.PolicySetCache
	matcher    *Matcher
	conditions *conditions.Evaluator
	sandbox    *sandbox.Sandbox
	workerPool *WorkerPool
	metrics    metrics.Metrics
	audit      audit.Logger
	logger     *zap.Logger
	defaults   []*types.Policy
	config     Config

	seenRefreshes atomic.Uint64
}

// Config configures the decision engine
type Config struct {
	// CacheTTL is the time-to-live of the cached policy set
	CacheTTL time.Duration
	// SandboxTimeout bounds custom expression evaluation
	SandboxTimeout time.Duration
	// ParallelWorkers is the number of workers for field filtering
	ParallelWorkers int
	// IncludeDefaults merges the built-in policy set into every refresh
	IncludeDefaults bool
}

// DefaultConfig returns a default engine configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL:        cache.DefaultTTL,
		SandboxTimeout:  sandbox.DefaultTimeout,
		ParallelWorkers: 8,
		IncludeDefaults: true,
	}
}

// Option customizes engine construction
type Option func(*Engine)

// WithLogger sets the structured logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics implementation
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithAuditLogger sets the audit logger
func WithAuditLogger(a audit.Logger) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}

// WithDefaultPolicies overrides the built-in default policy set
func WithDefaultPolicies(defaults []*types.Policy) Option {
	return func(e *Engine) {
		e.defaults = defaults
	}
}

// New creates a new decision engine backed by the given policy store
func New(cfg Config, store policy.Store, opts ...Option) (*Engine, error) {
	sb, err := sandbox.New(sandbox.WithTimeout(cfg.SandboxTimeout))
	if err != nil {
		return nil, fmt.Errorf("init expression sandbox: %w", err)
	}

	e := &Engine{
		matcher: NewMatcher(),
		sandbox: sb,
		metrics: metrics.NewNoOpMetrics(),
		audit:   audit.NewNopLogger(),
		logger:  zap.NewNop(),
		config:  cfg,
	}
	if cfg.IncludeDefaults {
		e.defaults = policy.DefaultPolicies()
	}

	for _, opt := range opts {
		opt(e)
	}

	e.conditions = conditions.New(sb, e.logger)
	e.cache = cache.New(store, e.defaults, cfg.CacheTTL, e.logger)
	e.workerPool = NewWorkerPool(cfg.ParallelWorkers)

	return e, nil
}

// Evaluate makes an access decision for the given context. A store failure
// propagates as an error; it is never converted into an allow.
func (e *Engine) Evaluate(ctx context.Context, ec *types.EvaluationContext) (*types.EvaluationResult, error) {
	e.metrics.IncActiveRequests()
	defer e.metrics.DecActiveRequests()

	start := time.Now()

	policies, err := e.loadPolicies(ctx)
	if err != nil {
		return nil, err
	}

	result := e.decide(ctx, policies, ec)
	duration := time.Since(start)

	effect := "deny"
	if result.Allowed {
		effect = "allow"
	}
	e.metrics.RecordDecision(effect, duration)

	e.audit.LogDecision(ctx, &audit.DecisionEvent{
		Subject:     audit.SubjectRef{ID: ec.Subject.ID, Role: ec.Subject.Role, Tier: ec.Subject.Tier},
		Resource:    audit.ResourceRef{Type: ec.Resource.Type, ID: ec.Resource.ID},
		Action:      ec.Action,
		Allowed:     result.Allowed,
		AllowedBy:   result.AllowedBy,
		DeniedBy:    result.DeniedBy,
		Performance: audit.Performance{DurationUs: duration.Microseconds()},
	})

	return result, nil
}

// decide runs matching and condition evaluation over an already loaded
// policy set. Matched policies are evaluated in stable priority order and
// every satisfied policy contributes its id, so both lists are complete.
func (e *Engine) decide(ctx context.Context, policies []*types.Policy, ec *types.EvaluationContext) *types.EvaluationResult {
	matched := make([]*types.Policy, 0, len(policies))
	for _, p := range policies {
		if e.matcher.Matches(p, ec) {
			matched = append(matched, p)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})

	result := &types.EvaluationResult{}
	for _, p := range matched {
		if !e.conditions.Satisfied(ctx, p.ID, p.Conditions, ec) {
			continue
		}
		switch p.Effect {
		case types.EffectDeny:
			result.DeniedBy = append(result.DeniedBy, p.ID)
		case types.EffectAllow:
			result.AllowedBy = append(result.AllowedBy, p.ID)
		}
	}

	result.Allowed = len(result.DeniedBy) == 0 && len(result.AllowedBy) > 0
	return result
}

// loadPolicies fetches the current policy set and keeps cache metrics in sync
func (e *Engine) loadPolicies(ctx context.Context) ([]*types.Policy, error) {
	policies, err := e.cache.Get(ctx)
	if err != nil {
		e.metrics.RecordEvaluationError("policy_store")
		return nil, fmt.Errorf("load policy set: %w", err)
	}

	stats := e.cache.Stats()
	prev := e.seenRefreshes.Swap(stats.Refreshes)
	for i := prev; i < stats.Refreshes; i++ {
		e.metrics.RecordCacheRefresh()
	}
	e.metrics.UpdatePolicyCount(len(policies))

	return policies, nil
}

// InvalidateCache forces the next evaluation to reload the policy set.
// The admin layer calls this immediately after any policy mutation.
func (e *Engine) InvalidateCache(ctx context.Context) {
	e.cache.Invalidate()
	e.metrics.RecordCacheInvalidation()
	e.audit.LogPolicyChange(ctx, &audit.PolicyChange{Operation: "invalidate"})
	e.logger.Info("policy cache invalidated")
}

// CacheStats reports policy cache counters
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Close releases engine resources
func (e *Engine) Close() error {
	e.workerPool.Stop()
	return nil
}
