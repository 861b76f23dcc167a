package recommendation

import (
	"sort"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
)

// Rank scores every candidate campaign for one store and returns them best
// first. Duplicate campaign ids are dropped, keeping the first occurrence.
// The population is derived from the deduplicated candidates.
func Rank(store *domain.StorePerformanceMetrics, campaigns []domain.CampaignCreativePerformance, geo *GeoIndex, cfg Config, evalDate time.Time) []domain.CampaignRecommendation {
	candidates := dedupeCampaigns(campaigns)
	return rankWith(store, candidates, NewPopulation(candidates), geo, cfg, evalDate)
}

func rankWith(store *domain.StorePerformanceMetrics, candidates []domain.CampaignCreativePerformance, pop CreativePopulation, geo *GeoIndex, cfg Config, evalDate time.Time) []domain.CampaignRecommendation {
	out := make([]domain.CampaignRecommendation, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		out = append(out, Score(ScoreInput{
			Store:          store,
			Campaign:       c,
			Geo:            geo.For(store, c.CampaignID),
			Population:     pop,
			EvaluationDate: evalDate,
		}, cfg))
	}
	SortRecommendations(out)
	return out
}

// SortRecommendations orders by overall score descending, then confidence
// (high first), then campaign id ascending. This is a total order for
// distinct campaign ids.
func SortRecommendations(recs []domain.CampaignRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return Less(recs[i], recs[j])
	})
}

// Less reports whether a ranks ahead of b.
func Less(a, b domain.CampaignRecommendation) bool {
	if a.OverallScore != b.OverallScore {
		return a.OverallScore > b.OverallScore
	}
	if ra, rb := a.ConfidenceLevel.Rank(), b.ConfidenceLevel.Rank(); ra != rb {
		return ra > rb
	}
	return a.CampaignID < b.CampaignID
}

func dedupeCampaigns(in []domain.CampaignCreativePerformance) []domain.CampaignCreativePerformance {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.CampaignCreativePerformance, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.CampaignID]; ok {
			continue
		}
		seen[c.CampaignID] = struct{}{}
		out = append(out, c)
	}
	return out
}
