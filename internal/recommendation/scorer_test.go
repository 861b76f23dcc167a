package recommendation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/retail-planner/internal/domain"
)

var evalJune = time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

func testStore() *domain.StorePerformanceMetrics {
	return &domain.StorePerformanceMetrics{
		StoreID:              "s-1",
		StoreNumber:          "0101",
		StoreName:            "Main Street",
		Region:               "Midwest",
		State:                "OH",
		TotalCampaigns:       12,
		AvgConversionRate:    3.0,
		RecentConversionRate: 4.2,
	}
}

func testCampaign() *domain.CampaignCreativePerformance {
	return &domain.CampaignCreativePerformance{
		CampaignID:     "c-1",
		CampaignName:   "Spring Savings",
		ConversionRate: 3.8,
		SampleSize:     40,
	}
}

func TestScore_StrongStoreAloneInPopulation(t *testing.T) {
	cfg := DefaultConfig()
	c := testCampaign()
	rec := Score(ScoreInput{
		Store:          testStore(),
		Campaign:       c,
		Population:     NewPopulation([]domain.CampaignCreativePerformance{*c}),
		EvaluationDate: evalJune,
	}, cfg)

	assert.InDelta(t, 0.82, rec.Scores.StorePerformance, 1e-9)
	assert.InDelta(t, 1.0, rec.Scores.CreativePerformance, 1e-9)
	assert.InDelta(t, 0.5, rec.Scores.GeographicFit, 1e-9)
	assert.InDelta(t, 0.5, rec.Scores.TimingAlignment, 1e-9)
	assert.InDelta(t, 0.778, rec.OverallScore, 1e-9)
	assert.Equal(t, domain.ConfidenceHigh, rec.ConfidenceLevel)
	assert.Equal(t, 1300, rec.RecommendedQuantity)
	assert.Empty(t, rec.RiskFactors)

	require.Len(t, rec.Reasoning, 2)
	assert.Equal(t, domain.ComponentStorePerformance, rec.Reasoning[0].Component)
	assert.Contains(t, rec.Reasoning[0].Text, "4.2%")
	assert.Equal(t, domain.ComponentCreativePerformance, rec.Reasoning[1].Component)

	// 1300 pieces is below the half-saturation run, so the projection sits
	// under the observed 4.0% mean.
	assert.Greater(t, rec.ExpectedConversionRate, 0.0)
	assert.Less(t, rec.ExpectedConversionRate, 4.0)
	assert.InDelta(t, float64(rec.RecommendedQuantity)*rec.ExpectedConversionRate/100, rec.ExpectedConversions, 1e-9)
}

func TestScore_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	in := ScoreInput{
		Store:          testStore(),
		Campaign:       testCampaign(),
		Population:     CreativePopulation{MaxRate: 5, Count: 3},
		EvaluationDate: evalJune,
	}
	first := Score(in, cfg)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Score(in, cfg))
	}
}

func TestScore_BoundsAndConfidenceConsistency(t *testing.T) {
	cfg := DefaultConfig()
	rates := []float64{0, 0.5, 1.5, 3, 4.5, 9, 30}
	for _, recent := range rates {
		for _, avg := range rates {
			for _, crate := range rates {
				store := testStore()
				store.RecentConversionRate, store.AvgConversionRate = recent, avg
				camp := testCampaign()
				camp.ConversionRate = crate
				rec := Score(ScoreInput{
					Store: store, Campaign: camp,
					Population:     CreativePopulation{MaxRate: 9, Count: 4},
					EvaluationDate: evalJune,
				}, cfg)

				for _, comp := range domain.ScoredComponents {
					v := rec.Scores.Get(comp)
					assert.GreaterOrEqual(t, v, 0.0, comp)
					assert.LessOrEqual(t, v, 1.0, comp)
				}
				assert.GreaterOrEqual(t, rec.OverallScore, 0.0)
				assert.LessOrEqual(t, rec.OverallScore, 1.0)
				if rec.OverallScore < cfg.LowConfidenceScore {
					assert.Equal(t, domain.ConfidenceLow, rec.ConfidenceLevel)
				}
				if rec.ConfidenceLevel == domain.ConfidenceHigh {
					assert.GreaterOrEqual(t, rec.OverallScore, cfg.HighConfidenceScore)
				}
				assert.GreaterOrEqual(t, rec.RecommendedQuantity, cfg.MinQuantity)
				assert.LessOrEqual(t, rec.RecommendedQuantity, cfg.MaxQuantity)
				assert.Zero(t, rec.RecommendedQuantity%50)
			}
		}
	}
}

func TestScore_MonotonicInRecentRate(t *testing.T) {
	cfg := DefaultConfig()
	prev := -1.0
	for _, recent := range []float64{0.5, 1, 2, 3, 4, 5, 6, 8} {
		store := testStore()
		store.RecentConversionRate = recent
		rec := Score(ScoreInput{
			Store: store, Campaign: testCampaign(),
			Population:     CreativePopulation{MaxRate: 3.8, Count: 1},
			EvaluationDate: evalJune,
		}, cfg)
		assert.GreaterOrEqual(t, rec.OverallScore, prev, "recent=%v", recent)
		prev = rec.OverallScore
	}
}

func TestScore_MissingStoreMetrics(t *testing.T) {
	rec := Score(ScoreInput{
		Campaign:       testCampaign(),
		Population:     CreativePopulation{MaxRate: 3.8, Count: 1},
		EvaluationDate: evalJune,
	}, DefaultConfig())

	assert.Equal(t, "c-1", rec.CampaignID)
	assert.Equal(t, domain.ConfidenceLow, rec.ConfidenceLevel)
	assert.Zero(t, rec.OverallScore)
	require.Len(t, rec.RiskFactors, 1)
	assert.Equal(t, domain.ComponentData, rec.RiskFactors[0].Component)
	assert.Equal(t, 500, rec.RecommendedQuantity)
	assert.Empty(t, rec.Reasoning)
}

func TestScore_ThinHistoryCapsAndLowersConfidence(t *testing.T) {
	cfg := DefaultConfig()
	store := testStore()
	store.TotalCampaigns = 1
	rec := Score(ScoreInput{
		Store: store, Campaign: testCampaign(),
		Population:     CreativePopulation{MaxRate: 3.8, Count: 1},
		EvaluationDate: evalJune,
	}, cfg)

	assert.LessOrEqual(t, rec.Scores.StorePerformance, cfg.LowHistoryCap)
	assert.Equal(t, domain.ConfidenceLow, rec.ConfidenceLevel)
	// overall 0.65 clears the threshold and no component is in the bottom band
	assert.InDelta(t, 0.65, rec.OverallScore, 1e-9)
	assert.Empty(t, rec.RiskFactors)
}

func TestScore_ThinHistoryNamedWhenFlagged(t *testing.T) {
	cfg := DefaultConfig()
	store := testStore()
	store.TotalCampaigns = 1
	camp := testCampaign()
	camp.PeakMonth = 12
	rec := Score(ScoreInput{
		Store: store, Campaign: camp,
		Population:     CreativePopulation{MaxRate: 3.8, Count: 1},
		EvaluationDate: evalJune,
	}, cfg)

	require.NotEmpty(t, rec.RiskFactors)
	assert.Equal(t, domain.ComponentTimingAlignment, rec.RiskFactors[0].Component)
	var found bool
	for _, r := range rec.RiskFactors {
		if r.Component == domain.ComponentStorePerformance {
			found = true
			assert.Contains(t, r.Text, "Limited store history")
		}
	}
	assert.True(t, found)
}

func TestScore_ReasoningGatedByThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReasoningThreshold = 1.0
	c := testCampaign()
	rec := Score(ScoreInput{
		Store: testStore(), Campaign: c,
		Population:     NewPopulation([]domain.CampaignCreativePerformance{*c}),
		EvaluationDate: evalJune,
	}, cfg)
	// strictly greater than the threshold, so a perfect creative score is not enough
	assert.Empty(t, rec.Reasoning)
}

func TestScore_LowOverallRaisesRisk(t *testing.T) {
	cfg := DefaultConfig()
	store := testStore()
	store.RecentConversionRate = 0.3
	camp := testCampaign()
	camp.ConversionRate = 0.4
	camp.PeakMonth = 12
	rec := Score(ScoreInput{
		Store: store, Campaign: camp,
		Population:     CreativePopulation{MaxRate: 6, Count: 3},
		EvaluationDate: evalJune,
	}, cfg)

	require.NotEmpty(t, rec.RiskFactors)
	assert.Equal(t, domain.ComponentOverall, rec.RiskFactors[0].Component)
	assert.Equal(t, domain.ConfidenceLow, rec.ConfidenceLevel)
	assert.Equal(t, 0.0, rec.Scores.TimingAlignment)

	var offSeason bool
	for _, r := range rec.RiskFactors {
		if r.Component == domain.ComponentTimingAlignment {
			offSeason = true
			assert.Contains(t, r.Text, "December")
		}
	}
	assert.True(t, offSeason)
}

func TestGeographicFit(t *testing.T) {
	cfg := DefaultConfig()
	g := &domain.GeographicPattern{
		Region:            "Midwest",
		AvgConversionRate: 2.0,
		CampaignRates:     map[string]float64{"c-1": 3.0, "c-2": 6.0},
	}
	assert.InDelta(t, 0.75, geographicFit(g, "c-1", cfg), 1e-9)
	assert.InDelta(t, 1.0, geographicFit(g, "c-2", cfg), 1e-9)
	assert.InDelta(t, cfg.NeutralScore, geographicFit(g, "c-3", cfg), 1e-9)
	assert.InDelta(t, cfg.NeutralScore, geographicFit(nil, "c-1", cfg), 1e-9)
}

func TestMonthDistance(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{1, 1, 0},
		{1, 12, 1},
		{12, 1, 1},
		{3, 9, 6},
		{6, 2, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, monthDistance(tt.a, tt.b), "%d->%d", tt.a, tt.b)
	}
}

func TestTimingAlignment(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 1.0, timingAlignment(evalJune, 6, cfg), 1e-9)
	assert.InDelta(t, 0.0, timingAlignment(evalJune, 12, cfg), 1e-9)
	assert.InDelta(t, 0.5, timingAlignment(evalJune, 3, cfg), 1e-9)
	assert.InDelta(t, cfg.NeutralScore, timingAlignment(evalJune, 0, cfg), 1e-9)
}

func TestResponseFactor(t *testing.T) {
	assert.InDelta(t, 0.75, ResponseFactor(2000, 2000), 1e-9)
	assert.InDelta(t, 0.5, ResponseFactor(0, 2000), 1e-9)
	assert.Less(t, ResponseFactor(500, 2000), ResponseFactor(1000, 2000))
	assert.Less(t, ResponseFactor(1_000_000, 2000), 1.0)
}

func TestRecommendedQuantity(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1000, recommendedQuantity(0.5, cfg))
	assert.Equal(t, 1500, recommendedQuantity(1.0, cfg))
	assert.Equal(t, 500, recommendedQuantity(0, cfg))

	cfg.QuantityMultiplier = 10
	assert.Equal(t, cfg.MaxQuantity, recommendedQuantity(1.0, cfg))
	cfg.QuantityMultiplier = 0.1
	assert.Equal(t, cfg.MinQuantity, recommendedQuantity(0, cfg))
}
