package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// addSubscription writes the document and the order index in one atomic
// step. An endpoint counts as present only when both entries exist, so a
// write that failed half-way is completed by the next Add instead of being
// treated as a duplicate.
//
// KEYS: hash, index, seq. ARGV: endpoint, document.
var addSubscription = redis.NewScript(`
local inHash = redis.call('HEXISTS', KEYS[1], ARGV[1])
local inIndex = redis.call('ZSCORE', KEYS[2], ARGV[1])
if inHash == 1 and inIndex then
  return 0
end
if inHash == 0 then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
if not inIndex then
  redis.call('ZADD', KEYS[2], redis.call('INCR', KEYS[3]), ARGV[1])
end
return 1
`)

// KEYS: hash, index. ARGV: endpoint.
var removeSubscription = redis.NewScript(`
local n = redis.call('HDEL', KEYS[1], ARGV[1])
n = n + redis.call('ZREM', KEYS[2], ARGV[1])
if n > 0 then
  return 1
end
return 0
`)

// RedisSubscriptionRegistry keeps subscriptions in a hash endpoint → JSON
// document plus a sorted set of endpoints scored by a sequence counter,
// which preserves insertion order. Both are only written by Lua scripts.
type RedisSubscriptionRegistry struct {
	rdb      *redis.Client
	hashKey  string
	indexKey string
	seqKey   string
	now      func() time.Time
}

// NewRedisSubscriptionRegistry namespaces its keys under prefix
// (default "orderdesk").
func NewRedisSubscriptionRegistry(rdb *redis.Client, prefix string) *RedisSubscriptionRegistry {
	if prefix == "" {
		prefix = "orderdesk"
	}
	return &RedisSubscriptionRegistry{
		rdb:      rdb,
		hashKey:  prefix + ":subscriptions",
		indexKey: prefix + ":subscriptions:index",
		seqKey:   prefix + ":subscriptions:seq",
		now:      time.Now,
	}
}

func (r *RedisSubscriptionRegistry) Add(ctx context.Context, sub models.Subscription) (bool, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = r.now().UTC()
	}
	doc, err := json.Marshal(sub)
	if err != nil {
		return false, wrapStoreErr("encode subscription", err)
	}

	added, err := addSubscription.Run(ctx, r.rdb,
		[]string{r.hashKey, r.indexKey, r.seqKey}, sub.Endpoint, string(doc)).Int()
	if err != nil {
		return false, wrapStoreErr("add subscription", err)
	}
	return added == 1, nil
}

func (r *RedisSubscriptionRegistry) All(ctx context.Context) ([]models.Subscription, error) {
	endpoints, err := r.rdb.ZRange(ctx, r.indexKey, 0, -1).Result()
	if err != nil {
		return nil, wrapStoreErr("list subscriptions", err)
	}
	subs := []models.Subscription{}
	if len(endpoints) == 0 {
		return subs, nil
	}

	docs, err := r.rdb.HMGet(ctx, r.hashKey, endpoints...).Result()
	if err != nil {
		return nil, wrapStoreErr("load subscriptions", err)
	}
	for _, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue // removed between ZRANGE and HMGET
		}
		var sub models.Subscription
		if err := json.Unmarshal([]byte(raw), &sub); err != nil {
			return nil, wrapStoreErr("decode subscription", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (r *RedisSubscriptionRegistry) Remove(ctx context.Context, endpoint string) (bool, error) {
	removed, err := removeSubscription.Run(ctx, r.rdb, []string{r.hashKey, r.indexKey}, endpoint).Int()
	if err != nil {
		return false, wrapStoreErr("remove subscription", err)
	}
	return removed == 1, nil
}
