package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces bridge records in a shared Redis instance.
const redisKeyPrefix = "mt4bot:bridge:"

// RedisSlot stores records as plain Redis string values. SET is atomic, which
// satisfies the torn-write guarantee for free.
type RedisSlot struct {
	client *redis.Client
}

// NewRedisSlot connects to addr and verifies the connection.
func NewRedisSlot(addr string, db int) (*RedisSlot, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisSlot{client: client}, nil
}

func (r *RedisSlot) Write(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, redisKeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisSlot) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Close releases the underlying connection pool.
func (r *RedisSlot) Close() error { return r.client.Close() }
