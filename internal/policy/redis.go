package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/formhive/abac-core/pkg/types"
)

// RedisConfig configures the Redis-backed policy store
type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"keyPrefix"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// DefaultRedisConfig returns default Redis store settings
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "localhost",
		Port:         6379,
		KeyPrefix:    "abac:policy:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore keeps custom policies in Redis, one JSON value per policy id
// under the configured key prefix.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(cfg *RedisConfig) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis connect: %v", ErrStoreUnavailable, err)
	}

	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "abac:policy:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// GetAll scans the key prefix and returns every stored policy
func (s *RedisStore) GetAll(ctx context.Context) ([]*types.Policy, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: redis scan: %v", ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis mget: %v", ErrStoreUnavailable, err)
	}

	policies := make([]*types.Policy, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key deleted between SCAN and MGET
			continue
		}
		p := &types.Policy{}
		if err := json.Unmarshal([]byte(raw), p); err != nil {
			return nil, fmt.Errorf("%w: corrupt policy at %s: %v", ErrStoreUnavailable, keys[i], err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// Add inserts or replaces a policy
func (s *RedisStore) Add(ctx context.Context, policy *types.Policy) error {
	if policy == nil || policy.ID == "" {
		return fmt.Errorf("policy id is required")
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+policy.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Remove deletes a policy by id
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.prefix+id).Result()
	if err != nil {
		return fmt.Errorf("%w: redis del: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	return nil
}

// SetEnabled flips a policy's enabled flag
func (s *RedisStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	key := s.prefix + id
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("%w: %s", ErrPolicyNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: redis get: %v", ErrStoreUnavailable, err)
	}

	p := &types.Policy{}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return fmt.Errorf("%w: corrupt policy at %s: %v", ErrStoreUnavailable, key, err)
	}
	p.Enabled = enabled
	p.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
