package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"product-research-workers/internal/common/logger"
	"product-research-workers/internal/common/metrics"
)

const cacheKeyPrefix = "tool-cache:"

// Cached wraps a tool with a Redis read-through cache. Cache failures fall
// back to the wrapped tool; only successful results are stored.
type Cached struct {
	Tool
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCached(tool Tool, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Cached {
	return &Cached{
		Tool:   tool,
		rdb:    rdb,
		ttl:    ttl,
		logger: log.With(map[string]interface{}{"tool": tool.Name(), "component": "tool-cache"}),
	}
}

// CacheKey is the Redis key for a tool call.
func CacheKey(tool, args string) string {
	sum := sha256.Sum256([]byte(args))
	return cacheKeyPrefix + tool + ":" + hex.EncodeToString(sum[:])
}

func (c *Cached) Invoke(ctx context.Context, args string) (string, error) {
	key := CacheKey(c.Name(), args)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.ToolCacheLookups.WithLabelValues(c.Name(), "hit").Inc()
		c.logger.Debug("tool cache hit", map[string]interface{}{"key": key})
		return cached, nil
	case errors.Is(err, redis.Nil):
		metrics.ToolCacheLookups.WithLabelValues(c.Name(), "miss").Inc()
	default:
		metrics.ToolCacheLookups.WithLabelValues(c.Name(), "error").Inc()
		c.logger.Warn("tool cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	result, err := c.Tool.Invoke(ctx, args)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, key, result, c.ttl).Err(); err != nil {
		c.logger.Warn("tool cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return result, nil
}
