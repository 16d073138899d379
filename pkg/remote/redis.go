// Package remote implements the shared network cache tier on Redis. The
// client covers only the narrow contract the engine needs: get, set with
// TTL, delete, and pattern delete. Connection management, per-call timeouts
// and retries belong to the underlying Redis client.
package remote

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	cacheerrors "github.com/roamly/storycache/pkg/errors"
)

// Config configures the Redis client.
type Config struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`

	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns a config for a local Redis.
func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "storycache:",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// RedisCache is the Redis-backed network cache client.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// New creates a Redis-backed cache client.
func New(config *Config) *RedisCache {
	if config == nil {
		config = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return &RedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}
}

// NewWithClient wraps an existing Redis client. Used by hosts that share one
// connection pool across subsystems, and by tests.
func NewWithClient(client redis.UniversalClient, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// Get returns the stored bytes for key, or (nil, nil) when absent.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.namespaced(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, cacheerrors.NewError(cacheerrors.ErrCodeRemoteOperation, "redis get failed").
			WithComponent("remote").WithOperation("get").WithContext("key", key).WithCause(err)
	}
	return data, nil
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// without expiry.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.namespaced(key), value, ttl).Err(); err != nil {
		return cacheerrors.NewError(cacheerrors.ErrCodeRemoteOperation, "redis set failed").
			WithComponent("remote").WithOperation("set").WithContext("key", key).WithCause(err)
	}
	return nil
}

// Delete removes key, reporting whether it existed.
func (r *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	removed, err := r.client.Del(ctx, r.namespaced(key)).Result()
	if err != nil {
		return false, cacheerrors.NewError(cacheerrors.ErrCodeRemoteOperation, "redis delete failed").
			WithComponent("remote").WithOperation("delete").WithContext("key", key).WithCause(err)
	}
	return removed > 0, nil
}

// DeleteByPattern removes every key matching the glob pattern and returns
// how many were removed. The scan runs in batches to keep Redis responsive.
func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.namespaced(pattern), 256).Result()
		if err != nil {
			return removed, cacheerrors.NewError(cacheerrors.ErrCodeRemoteOperation, "redis scan failed").
				WithComponent("remote").WithOperation("delete_by_pattern").
				WithContext("pattern", pattern).WithCause(err)
		}

		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, cacheerrors.NewError(cacheerrors.ErrCodeRemoteOperation, "redis delete failed").
					WithComponent("remote").WithOperation("delete_by_pattern").
					WithContext("pattern", pattern).WithCause(err)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return cacheerrors.NewError(cacheerrors.ErrCodeRemoteUnavailable, "redis unreachable").
			WithComponent("remote").WithOperation("ping").WithCause(err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) namespaced(key string) string {
	return r.keyPrefix + key
}
