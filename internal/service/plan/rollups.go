package plan

import (
	"math"

	"github.com/ignite/retail-planner/internal/domain"
)

// computeTotals recomputes plan rollups from the full item set. It is never
// patched incrementally.
func computeTotals(items []domain.PlanItem) domain.PlanTotals {
	var (
		t          domain.PlanTotals
		stores     = make(map[string]struct{})
		confidence float64
		included   int
	)
	for i := range items {
		it := &items[i]
		if !it.IsIncluded {
			continue
		}
		included++
		stores[it.StoreID] = struct{}{}
		t.TotalQuantity += it.Quantity
		t.EstimatedCost += it.Cost()
		t.ExpectedConversions += it.ExpectedConversions()
		confidence += it.AI.OverallScore
	}
	t.TotalStores = len(stores)
	t.EstimatedCost = round2(t.EstimatedCost)
	t.ExpectedConversions = round2(t.ExpectedConversions)
	if included > 0 {
		t.AvgConfidence = math.Round(confidence/float64(included)*10000) / 10000
	}
	return t
}

// computeWaveTotals returns copies of waves with rollups over their included items.
func computeWaveTotals(waves []domain.PlanWave, items []domain.PlanItem) []domain.PlanWave {
	out := make([]domain.PlanWave, len(waves))
	idx := make(map[string]int, len(waves))
	for i, w := range waves {
		w.TotalStores, w.TotalQuantity = 0, 0
		w.EstimatedCost, w.ExpectedConversions = 0, 0
		out[i] = w
		idx[w.Code] = i
	}
	for i := range items {
		it := &items[i]
		j, ok := idx[it.WaveCode]
		if !ok || !it.IsIncluded {
			continue
		}
		out[j].TotalStores++
		out[j].TotalQuantity += it.Quantity
		out[j].EstimatedCost += it.Cost()
		out[j].ExpectedConversions += it.ExpectedConversions()
	}
	for i := range out {
		out[i].EstimatedCost = round2(out[i].EstimatedCost)
		out[i].ExpectedConversions = round2(out[i].ExpectedConversions)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
