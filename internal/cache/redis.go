// Package cache keeps read-through copies of template aggregates in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"template-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "tpl:"
	revPrefix = "tpl:rev:"
)

// putScript writes the snapshot unless the entry already holds a higher
// revision. The revision marker outlives an Evict, so a read that loaded
// an older aggregate cannot refill the cache after a newer write.
var putScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current and tonumber(current) > tonumber(ARGV[2]) then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
  redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
  redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func Key(templateID string) string {
	return keyPrefix + templateID
}

// Get returns (nil, nil) on a miss. An undecodable entry is dropped and
// reported as a miss.
func (c *RedisCache) Get(ctx context.Context, id string) (*domain.NotificationTemplate, error) {
	val, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", id, err)
	}

	var snap domain.TemplateSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		_ = c.client.Del(ctx, Key(id)).Err()
		return nil, nil
	}
	t, err := domain.RestoreTemplate(snap)
	if err != nil {
		_ = c.client.Del(ctx, Key(id)).Err()
		return nil, nil
	}
	return t, nil
}

// Put stores the aggregate for ttl. An older revision than the one cached
// is ignored.
func (c *RedisCache) Put(ctx context.Context, t *domain.NotificationTemplate, ttl time.Duration) error {
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", t.ID(), err)
	}
	keys := []string{Key(t.ID()), revPrefix + t.ID()}
	if err := putScript.Run(ctx, c.client, keys, data, t.Revision(), ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache put %s: %w", t.ID(), err)
	}
	return nil
}

func (c *RedisCache) Evict(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("cache evict %s: %w", id, err)
	}
	return nil
}
