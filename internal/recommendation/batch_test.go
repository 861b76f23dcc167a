package recommendation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/retail-planner/internal/domain"
)

func batchFixture(n int) ([]domain.StorePerformanceMetrics, []domain.CampaignCreativePerformance, []domain.GeographicPattern) {
	stores := make([]domain.StorePerformanceMetrics, 0, n)
	for i := 0; i < n; i++ {
		stores = append(stores, domain.StorePerformanceMetrics{
			StoreID:              fmt.Sprintf("s-%03d", i),
			StoreNumber:          fmt.Sprintf("%04d", i),
			Region:               []string{"Midwest", "West", "South"}[i%3],
			State:                []string{"OH", "CA", "TX", "IN"}[i%4],
			TotalCampaigns:       i % 7,
			AvgConversionRate:    1 + float64(i%5)*0.5,
			RecentConversionRate: 0.5 + float64(i%9)*0.6,
		})
	}
	campaigns := []domain.CampaignCreativePerformance{
		{CampaignID: "c-1", ConversionRate: 3.8, SampleSize: 40, PeakMonth: 6},
		{CampaignID: "c-2", ConversionRate: 2.1, SampleSize: 3, PeakMonth: 11},
		{CampaignID: "c-3", ConversionRate: 1.4, SampleSize: 25},
	}
	geos := []domain.GeographicPattern{
		{Region: "Midwest", AvgConversionRate: 2.5, CampaignRates: map[string]float64{"c-1": 4.0}},
		{Region: "West", State: "CA", AvgConversionRate: 2.0, CampaignRates: map[string]float64{"c-2": 1.0}},
	}
	return stores, campaigns, geos
}

func TestGenerateBatch_MatchesSequentialRank(t *testing.T) {
	stores, campaigns, geos := batchFixture(60)
	cfg := DefaultConfig()

	got, err := GenerateBatch(context.Background(), stores, campaigns, geos, cfg, evalJune)
	require.NoError(t, err)
	require.Len(t, got, len(stores))

	idx := NewGeoIndex(geos)
	for i := range stores {
		want := Rank(&stores[i], campaigns, idx, cfg, evalJune)
		assert.Equal(t, want, got[stores[i].StoreID], stores[i].StoreID)
	}
}

func TestGenerateBatch_WorkerCountDoesNotChangeResults(t *testing.T) {
	stores, campaigns, geos := batchFixture(40)
	one := DefaultConfig()
	one.Workers = 1
	many := DefaultConfig()
	many.Workers = 16

	a, err := GenerateBatch(context.Background(), stores, campaigns, geos, one, evalJune)
	require.NoError(t, err)
	b, err := GenerateBatch(context.Background(), stores, campaigns, geos, many, evalJune)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateBatch_InvalidConfig(t *testing.T) {
	stores, campaigns, geos := batchFixture(2)
	cfg := DefaultConfig()
	cfg.Weights.StorePerformance = 0.9

	_, err := GenerateBatch(context.Background(), stores, campaigns, geos, cfg, evalJune)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestGenerateBatch_Cancelled(t *testing.T) {
	stores, campaigns, geos := batchFixture(20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateBatch(ctx, stores, campaigns, geos, DefaultConfig(), evalJune)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateBatch_DuplicateStoresScoredOnce(t *testing.T) {
	stores, campaigns, _ := batchFixture(1)
	stores = append(stores, stores[0])

	got, err := GenerateBatch(context.Background(), stores, campaigns, nil, DefaultConfig(), evalJune)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
