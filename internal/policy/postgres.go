package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/formhive/abac-core/internal/db"
	"github.com/formhive/abac-core/pkg/types"
)

// PostgresStore keeps custom policies in a Postgres table. Condition sets
// are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, verifies it, and applies pending
// schema migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres open: %v", ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: postgres connect: %v", ErrStoreUnavailable, err)
	}

	runner, err := db.NewMigrationRunner(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := runner.Up(); err != nil {
		conn.Close()
		return nil, err
	}

	return &PostgresStore{db: conn}, nil
}

// NewPostgresStoreWithDB wraps an existing connection; used by tests
func NewPostgresStoreWithDB(conn *sql.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

const selectPolicies = `
SELECT id, name, description, resource, action, effect, conditions,
       priority, user_id, enabled, created_at, updated_at
FROM policies
ORDER BY created_at, id`

// GetAll returns every stored policy
func (s *PostgresStore) GetAll(ctx context.Context) ([]*types.Policy, error) {
	rows, err := s.db.QueryContext(ctx, selectPolicies)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres query: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var policies []*types.Policy
	for rows.Next() {
		p := &types.Policy{}
		var conditions sql.NullString
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Resource, &p.Action, &p.Effect,
			&conditions, &p.Priority, &p.UserID, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: postgres scan: %v", ErrStoreUnavailable, err)
		}
		if conditions.Valid && conditions.String != "" {
			set := &types.ConditionSet{}
			if err := json.Unmarshal([]byte(conditions.String), set); err != nil {
				return nil, fmt.Errorf("%w: corrupt conditions for policy %s: %v", ErrStoreUnavailable, p.ID, err)
			}
			p.Conditions = set
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres rows: %v", ErrStoreUnavailable, err)
	}
	return policies, nil
}

// Add inserts or replaces a policy by id
func (s *PostgresStore) Add(ctx context.Context, policy *types.Policy) error {
	if policy == nil || policy.ID == "" {
		return fmt.Errorf("policy id is required")
	}

	var conditions interface{}
	if policy.Conditions != nil {
		data, err := json.Marshal(policy.Conditions)
		if err != nil {
			return fmt.Errorf("failed to serialize conditions: %w", err)
		}
		conditions = string(data)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO policies (id, name, description, resource, action, effect,
                      conditions, priority, user_id, enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    resource = EXCLUDED.resource,
    action = EXCLUDED.action,
    effect = EXCLUDED.effect,
    conditions = EXCLUDED.conditions,
    priority = EXCLUDED.priority,
    user_id = EXCLUDED.user_id,
    enabled = EXCLUDED.enabled,
    updated_at = EXCLUDED.updated_at`,
		policy.ID, policy.Name, policy.Description, policy.Resource, policy.Action,
		string(policy.Effect), conditions, policy.Priority, policy.UserID,
		policy.Enabled, now,
	)
	if err != nil {
		return fmt.Errorf("%w: postgres insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes a policy by id
func (s *PostgresStore) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: postgres delete: %v", ErrStoreUnavailable, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	return nil
}

// SetEnabled flips a policy's enabled flag
func (s *PostgresStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE policies SET enabled = $2, updated_at = NOW() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("%w: postgres update: %v", ErrStoreUnavailable, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
