package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"template-engine/internal/cache"
	"template-engine/internal/common/config"
	"template-engine/internal/stats"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the connection shared by the template cache and the stats
// projection.
type RedisClient struct {
	Client *redis.Client
}

// OpenRedis connects and pings. A client whose ping fails is closed before
// the error is returned.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*RedisClient, error) {
	c := &RedisClient{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})}
	if err := c.Ping(ctx); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return c, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *RedisClient) TemplateCache() *cache.RedisCache {
	return cache.NewRedisCache(c.Client)
}

func (c *RedisClient) StatsProjector() *stats.Projector {
	return stats.NewProjector(c.Client)
}

func (c *RedisClient) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
