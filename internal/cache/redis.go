package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis stores response payloads as JSON strings with a native Redis TTL.
// A broken Redis degrades the service to cache-miss behavior, nothing worse.
type Redis struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewRedis returns a response cache over an existing Redis client.
func NewRedis(rdb *redis.Client, log *zap.Logger) *Redis {
	return &Redis{rdb: rdb, log: log.Named("cache")}
}

func (c *Redis) Get(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.log.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Redis) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	data, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("cache payload not serializable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}
