package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/retail-planner/internal/domain"
)

// countingFeed is a static Feed that counts calls per method.
type countingFeed struct {
	storeCalls    atomic.Int32
	campaignCalls atomic.Int32
	geoCalls      atomic.Int32
	err           error
}

func (f *countingFeed) StorePerformance(_ context.Context, days int) ([]domain.StorePerformanceMetrics, error) {
	f.storeCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.StorePerformanceMetrics{
		{StoreID: "s1", StoreNumber: "101", Region: "West", State: "OR", TotalCampaigns: 12,
			AvgConversionRate: 3.0, RecentConversionRate: 4.2, RecentWindowDays: days},
	}, nil
}

func (f *countingFeed) CampaignPerformance(_ context.Context, _ int) ([]domain.CampaignCreativePerformance, error) {
	f.campaignCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.CampaignCreativePerformance{
		{CampaignID: "c1", CampaignName: "Spring Sale", ConversionRate: 3.8, SampleSize: 40},
	}, nil
}

func (f *countingFeed) GeographicPatterns(_ context.Context, _ int) ([]domain.GeographicPattern, error) {
	f.geoCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []domain.GeographicPattern{
		{Region: "West", AvgConversionRate: 3.1, CampaignRates: map[string]float64{"c1": 3.9}},
	}, nil
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestCachedFeed_HitsSourceOncePerWindow(t *testing.T) {
	client, _ := setupTestRedis(t)
	src := &countingFeed{}
	feed := NewCachedFeed(src, client, time.Minute)
	ctx := context.Background()

	first, err := feed.StorePerformance(ctx, 30)
	require.NoError(t, err)
	second, err := feed.StorePerformance(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.storeCalls.Load())

	_, err = feed.StorePerformance(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.storeCalls.Load(), "different window is a different key")
}

func TestCachedFeed_TTLExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	src := &countingFeed{}
	feed := NewCachedFeed(src, client, time.Minute)
	ctx := context.Background()

	_, err := feed.GeographicPatterns(ctx, 30)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	geo, err := feed.GeographicPatterns(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 3.9, geo[0].CampaignRates["c1"])
	assert.Equal(t, int32(2), src.geoCalls.Load())
}

func TestCachedFeed_RedisDownFallsThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	src := &countingFeed{}
	feed := NewCachedFeed(src, client, time.Minute)
	mr.Close()

	campaigns, err := feed.CampaignPerformance(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, campaigns, 1)
}

func TestCachedFeed_SourceErrorNotCached(t *testing.T) {
	client, mr := setupTestRedis(t)
	src := &countingFeed{err: errors.New("warehouse unavailable")}
	feed := NewCachedFeed(src, client, time.Minute)

	_, err := feed.StorePerformance(context.Background(), 30)
	require.Error(t, err)
	assert.False(t, mr.Exists("metrics:stores:30"))
}

func TestCachedFeed_Invalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	feed := NewCachedFeed(&countingFeed{}, client, time.Minute)
	ctx := context.Background()

	_, _ = feed.StorePerformance(ctx, 30)
	_, _ = feed.CampaignPerformance(ctx, 30)
	require.True(t, mr.Exists("metrics:stores:30"))

	require.NoError(t, feed.Invalidate(ctx))
	assert.False(t, mr.Exists("metrics:stores:30"))
	assert.False(t, mr.Exists("metrics:campaigns:30"))
}

func TestLoadSnapshot(t *testing.T) {
	src := &countingFeed{}
	snap, err := LoadSnapshot(context.Background(), src, 30)
	require.NoError(t, err)
	assert.Len(t, snap.Stores, 1)
	assert.Len(t, snap.Campaigns, 1)
	assert.Len(t, snap.Geo, 1)
	assert.NotNil(t, snap.Store("s1"))
	assert.Nil(t, snap.Store("missing"))

	_, err = LoadSnapshot(context.Background(), src, 0)
	assert.Error(t, err)

	_, err = LoadSnapshot(context.Background(), &countingFeed{err: errors.New("boom")}, 30)
	assert.Error(t, err)
}
