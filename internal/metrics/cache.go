package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/logger"
)

// CachedFeed memoises another Feed in Redis. The metrics pipeline refreshes
// its tables a few times a day, so a short TTL keeps reads cheap without
// serving stale windows for long. Redis failures fall through to the source.
type CachedFeed struct {
	source Feed
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedFeed wraps source. A non-positive ttl defaults to ten minutes.
func NewCachedFeed(source Feed, client *redis.Client, ttl time.Duration) *CachedFeed {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedFeed{source: source, client: client, ttl: ttl, prefix: "metrics"}
}

func (c *CachedFeed) StorePerformance(ctx context.Context, windowDays int) ([]domain.StorePerformanceMetrics, error) {
	var out []domain.StorePerformanceMetrics
	err := c.cached(ctx, "stores", windowDays, &out, func() (any, error) {
		return c.source.StorePerformance(ctx, windowDays)
	})
	return out, err
}

func (c *CachedFeed) CampaignPerformance(ctx context.Context, windowDays int) ([]domain.CampaignCreativePerformance, error) {
	var out []domain.CampaignCreativePerformance
	err := c.cached(ctx, "campaigns", windowDays, &out, func() (any, error) {
		return c.source.CampaignPerformance(ctx, windowDays)
	})
	return out, err
}

func (c *CachedFeed) GeographicPatterns(ctx context.Context, windowDays int) ([]domain.GeographicPattern, error) {
	var out []domain.GeographicPattern
	err := c.cached(ctx, "geo", windowDays, &out, func() (any, error) {
		return c.source.GeographicPatterns(ctx, windowDays)
	})
	return out, err
}

// Invalidate drops every cached window. The metrics pipeline calls the
// refresh endpoint after publishing new tables.
func (c *CachedFeed) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan metrics cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedFeed) key(kind string, windowDays int) string {
	return fmt.Sprintf("%s:%s:%d", c.prefix, kind, windowDays)
}

// cached decodes a hit into dst, or calls load, stores the result and
// decodes it into dst so both paths return identical values.
func (c *CachedFeed) cached(ctx context.Context, kind string, windowDays int, dst any, load func() (any, error)) error {
	key := c.key(kind, windowDays)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		if jerr := json.Unmarshal(data, dst); jerr == nil {
			return nil
		}
		logger.Warn("metrics cache entry unreadable, reloading", "key", key)
	} else if err != redis.Nil {
		logger.Warn("metrics cache read failed", "key", key, "error", err)
	}

	v, err := load()
	if err != nil {
		return err
	}
	data, err = json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("metrics cache write failed", "key", key, "error", err)
	}
	return json.Unmarshal(data, dst)
}
