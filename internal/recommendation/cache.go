package recommendation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/retail-planner/internal/domain"
)

// CachedBatch is an unfiltered batch result. Filters are applied on read so
// one cached entry serves every view of the same snapshot and config.
type CachedBatch struct {
	GeneratedAt time.Time                                  `json:"generated_at"`
	Stores      []domain.StorePerformanceMetrics           `json:"stores"`
	Results     map[string][]domain.CampaignRecommendation `json:"results"`
}

// BatchCache stores unfiltered batches for the lifetime of a review session.
type BatchCache interface {
	Get(ctx context.Context, key string) (*CachedBatch, bool, error)
	Set(ctx context.Context, key string, b *CachedBatch, ttl time.Duration) error
	// Invalidate drops every cached batch.
	Invalidate(ctx context.Context) error
}

// RedisBatchCache is a BatchCache backed by Redis.
type RedisBatchCache struct {
	client *redis.Client
}

// NewRedisBatchCache creates a Redis-backed batch cache.
func NewRedisBatchCache(client *redis.Client) *RedisBatchCache {
	return &RedisBatchCache{client: client}
}

func (c *RedisBatchCache) Get(ctx context.Context, key string) (*CachedBatch, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get batch %s: %w", key, err)
	}
	var b CachedBatch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("decode batch %s: %w", key, err)
	}
	return &b, true, nil
}

func (c *RedisBatchCache) Set(ctx context.Context, key string, b *CachedBatch, ttl time.Duration) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Invalidate deletes every batch key.
func (c *RedisBatchCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, batchKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan batch cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

const batchKeyPrefix = "reco:batch:"

// batchKey identifies a batch by everything that changes its scores.
func batchKey(daysBack int, cfg Config, evalDate time.Time) string {
	return fmt.Sprintf("%s%d:%s:%s", batchKeyPrefix, daysBack, cfg.Fingerprint(), evalDate.UTC().Format("2006-01-02"))
}
