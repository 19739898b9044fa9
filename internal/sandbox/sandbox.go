// Package sandbox provides isolated evaluation of custom policy expressions
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// DefaultTimeout bounds the execution time of a single expression. A timeout
// is reported as an error like any other evaluation failure.
const DefaultTimeout = 250 * time.Millisecond

// interruptCheckFrequency is how many evaluation steps run between
// cancellation checks.
const interruptCheckFrequency = 100

// Input carries the three bindings visible to an expression. Nothing else is
// in scope: no ambient state, no I/O, no clock.
type Input struct {
	Subject      map[string]interface{}
	Resource     map[string]interface{}
	Subscription map[string]interface{}
}

// Sandbox compiles and evaluates boolean CEL expressions over subject,
// resource, and subscription bindings. Compiled programs are cached per
// expression string.
type Sandbox struct {
	env      *cel.Env
	timeout  time.Duration
	programs sync.Map // map[string]cel.Program
}

// Option configures a Sandbox
type Option func(*Sandbox)

// WithTimeout overrides the per-evaluation execution budget
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a sandbox exposing exactly the subject, resource, and
// subscription bindings. "user" is accepted as an alias for subject so
// expressions can be written the way administrators author them
// (e.g. "user.stats.formCount >= subscription.limits.forms").
func New(opts ...Option) (*Sandbox, error) {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)), // alias
		cel.Variable("resource", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("subscription", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	s := &Sandbox{
		env:     env,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Compile compiles an expression, verifies it produces a boolean, and caches
// the program.
func (s *Sandbox) Compile(expr string) (cel.Program, error) {
	if prog, ok := s.programs.Load(expr); ok {
		return prog.(cel.Program), nil
	}

	ast, issues := s.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expression compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("expression must return boolean, got %v", ast.OutputType())
	}

	prog, err := s.env.Program(ast,
		cel.InterruptCheckFrequency(interruptCheckFrequency),
	)
	if err != nil {
		return nil, fmt.Errorf("expression program creation failed: %w", err)
	}

	s.programs.Store(expr, prog)
	return prog, nil
}

// Evaluate compiles (or fetches) and runs an expression under the execution
// budget. The caller's context deadline is honored when it is shorter.
func (s *Sandbox) Evaluate(ctx context.Context, expr string, input Input) (bool, error) {
	prog, err := s.Compile(expr)
	if err != nil {
		return false, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	subject := input.Subject
	if subject == nil {
		subject = map[string]interface{}{}
	}
	resource := input.Resource
	if resource == nil {
		resource = map[string]interface{}{}
	}
	subscription := input.Subscription
	if subscription == nil {
		subscription = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"subject":      subject,
		"user":         subject,
		"resource":     resource,
		"subscription": subscription,
	}

	result, _, err := prog.ContextEval(evalCtx, vars)
	if err != nil {
		return false, fmt.Errorf("expression evaluation failed: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return boolean, got %T", result.Value())
	}
	return boolVal, nil
}

// ClearCache drops all compiled programs
func (s *Sandbox) ClearCache() {
	s.programs = sync.Map{}
}

// CacheSize returns the number of cached programs
func (s *Sandbox) CacheSize() int {
	n := 0
	s.programs.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
