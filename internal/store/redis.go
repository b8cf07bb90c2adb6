package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
)

// redisPingTimeout bounds the connectivity check in OpenRedis.
const redisPingTimeout = 5 * time.Second

// RedisBackend stores the document as a Redis hash: one field per
// collection, holding the collection's JSON.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to the Redis server at cfg.URL and verifies it with a ping.
func OpenRedis(ctx context.Context, cfg config.RedisStorageConfig) (*RedisBackend, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisBackend(client, cfg.Key), nil
}

// NewRedisBackend wraps an existing client. The document lives at key.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return config.DriverRedis }

// Load implements Backend. A missing key is an empty document.
func (b *RedisBackend) Load(ctx context.Context) (Collections, error) {
	fields, err := b.client.HGetAll(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.key, err)
	}

	cols := make(Collections, len(fields))
	for name, body := range fields {
		if !json.Valid([]byte(body)) {
			return nil, fmt.Errorf("%w: collection %q", ErrCorruptDocument, name)
		}
		cols[name] = json.RawMessage(body)
	}
	return cols, nil
}

// Save implements Backend. The hash is replaced inside MULTI/EXEC.
func (b *RedisBackend) Save(ctx context.Context, c Collections) error {
	values := make(map[string]any, len(c))
	for name, body := range c {
		values[name] = string(body)
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.key)
		if len(values) > 0 {
			pipe.HSet(ctx, b.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", b.key, err)
	}
	return nil
}

// HealthCheck implements Backend.
func (b *RedisBackend) HealthCheck(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
