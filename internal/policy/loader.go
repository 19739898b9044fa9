package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/formhive/abac-core/internal/sandbox"
	"github.com/formhive/abac-core/pkg/types"
)

// Loader loads and parses policy files from disk. Custom condition
// expressions are compiled at load time so request-time evaluation never
// pays for parsing and bad expressions surface immediately.
type Loader struct {
	logger    *zap.Logger
	validator *Validator
	sandbox   *sandbox.Sandbox
}

// NewLoader creates a new policy loader
func NewLoader(sb *sandbox.Sandbox, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger:    logger,
		validator: NewValidator(sb),
		sandbox:   sb,
	}
}

// LoadFromDirectory loads all policy files from a directory. A file that
// fails to parse or validate is skipped with a logged diagnostic; the rest
// of the directory still loads.
func (l *Loader) LoadFromDirectory(path string) ([]*types.Policy, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy directory: %w", err)
	}

	var policies []*types.Policy
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		filePath := filepath.Join(path, entry.Name())
		loaded, err := l.LoadFromFile(filePath)
		if err != nil {
			l.logger.Warn("Failed to load policy file",
				zap.String("file", filePath),
				zap.Error(err),
			)
			continue
		}
		policies = append(policies, loaded...)
	}

	return policies, nil
}

// LoadFromFile loads one policy file. A file holds either a single policy
// document or a list under a top-level "policies" key.
func (l *Loader) LoadFromFile(filePath string) ([]*types.Policy, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// YAML is a superset of JSON, so one parser covers both extensions
	var doc struct {
		Policies []yaml.Node `yaml:"policies"`
	}
	if err := yaml.Unmarshal(content, &doc); err == nil && len(doc.Policies) > 0 {
		policies := make([]*types.Policy, 0, len(doc.Policies))
		for i := range doc.Policies {
			p := newFilePolicy()
			if err := doc.Policies[i].Decode(p); err != nil {
				return nil, fmt.Errorf("failed to parse policy: %w", err)
			}
			policies = append(policies, p)
		}
		return l.finish(policies)
	}

	single := newFilePolicy()
	if err := yaml.Unmarshal(content, single); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	return l.finish([]*types.Policy{single})
}

// newFilePolicy returns a policy carrying file-document defaults. A document
// that omits the enabled key yields an enabled policy, the same default the
// stored-policy schema applies. Decoding only overwrites keys that are
// present, so an explicit "enabled: false" still wins.
func newFilePolicy() *types.Policy {
	return &types.Policy{Enabled: true}
}

func (l *Loader) finish(policies []*types.Policy) ([]*types.Policy, error) {
	if err := l.validator.ValidateAll(policies); err != nil {
		return nil, err
	}
	for _, p := range policies {
		if p.Conditions != nil && p.Conditions.Custom != "" {
			if _, err := l.sandbox.Compile(p.Conditions.Custom); err != nil {
				return nil, fmt.Errorf("policy %s: %w", p.ID, err)
			}
		}
	}
	return policies, nil
}

// FileStore serves policies from a directory of YAML/JSON files. The admin
// workflow for file deployments is editing files; writes through the store
// interface are rejected.
type FileStore struct {
	dir    string
	loader *Loader
}

// NewFileStore creates a policy store backed by a directory
func NewFileStore(dir string, loader *Loader) *FileStore {
	return &FileStore{dir: dir, loader: loader}
}

// GetAll reloads every policy file in the directory
func (s *FileStore) GetAll(ctx context.Context) ([]*types.Policy, error) {
	policies, err := s.loader.LoadFromDirectory(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return policies, nil
}

// Add is not supported; policy files are deployed out of band
func (s *FileStore) Add(ctx context.Context, policy *types.Policy) error {
	return ErrReadOnlyStore
}

// Remove is not supported; policy files are deployed out of band
func (s *FileStore) Remove(ctx context.Context, id string) error {
	return ErrReadOnlyStore
}

// SetEnabled is not supported; policy files are deployed out of band
func (s *FileStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return ErrReadOnlyStore
}
