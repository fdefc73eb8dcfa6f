package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list jobs are pushed to.
const DefaultRedisKey = "orderdesk:queue:jobs"

// RedisDriver stores jobs in a Redis list: LPUSH to enqueue, BRPOP to
// dequeue, so jobs survive a process restart.
type RedisDriver struct {
	rdb  *redis.Client
	key  string
	wait time.Duration
}

// NewRedisDriver uses the shared client from pkg/cache.
func NewRedisDriver(rdb *redis.Client, key string) *RedisDriver {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisDriver{rdb: rdb, key: key, wait: 5 * time.Second}
}

func (d *RedisDriver) Push(ctx context.Context, payload []byte) error {
	if err := d.rdb.LPush(ctx, d.key, payload).Err(); err != nil {
		return fmt.Errorf("queue/redis: push: %w", err)
	}
	return nil
}

// Pop waits up to 5s for a job and returns (nil, nil) when none arrived.
func (d *RedisDriver) Pop(ctx context.Context) ([]byte, error) {
	result, err := d.rdb.BRPop(ctx, d.wait, d.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue/redis: pop: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Len reports how many jobs are waiting.
func (d *RedisDriver) Len(ctx context.Context) (int64, error) {
	return d.rdb.LLen(ctx, d.key).Result()
}

// Close is a no-op: the client belongs to pkg/cache.
func (d *RedisDriver) Close() error { return nil }
