package recommendation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ignite/retail-planner/internal/domain"
)

// Filter narrows a batch view. It is applied after scoring, so the same
// recommendation is returned whichever filters are set.
type Filter struct {
	Region string
	State  string
	Status Status
	// MinScore drops candidates whose overall score is below it. A store left
	// with no candidates is classified as skip.
	MinScore float64
	// MinLevel drops candidates below this confidence level.
	MinLevel domain.ConfidenceLevel
	// ExplicitFloor is set when the caller chose MinScore or MinLevel.
	// Otherwise Engine.Batch applies Config.MinConfidenceThreshold as MinScore.
	ExplicitFloor bool
}

// ParseMinConfidence accepts either a level name (high, medium, low) or a
// score on [0,1].
func ParseMinConfidence(raw string) (float64, domain.ConfidenceLevel, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, "", nil
	}
	if lvl := domain.ConfidenceLevel(raw); lvl.Valid() {
		return 0, lvl, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, "", fmt.Errorf("minConfidence must be high, medium, low or a score in [0,1], got %q", raw)
	}
	return v, "", nil
}

// StoreOutcome is one row of the batch review view.
type StoreOutcome struct {
	Store      domain.StorePerformanceMetrics  `json:"store"`
	Status     Status                          `json:"status"`
	Reason     string                          `json:"reason,omitempty"`
	Top        *domain.CampaignRecommendation  `json:"top_recommendation,omitempty"`
	Candidates []domain.CampaignRecommendation `json:"candidates"`
}

// BuildOutcomes classifies every store and applies the filter. Rows are
// ordered by store number, then store id.
func BuildOutcomes(stores []domain.StorePerformanceMetrics, batch map[string][]domain.CampaignRecommendation, p Policy, f Filter) []StoreOutcome {
	out := make([]StoreOutcome, 0, len(stores))
	seen := make(map[string]struct{}, len(stores))
	for _, s := range stores {
		if _, dup := seen[s.StoreID]; dup {
			continue
		}
		seen[s.StoreID] = struct{}{}

		if f.Region != "" && !strings.EqualFold(s.Region, f.Region) {
			continue
		}
		if f.State != "" && !strings.EqualFold(s.State, f.State) {
			continue
		}

		candidates := make([]domain.CampaignRecommendation, 0, len(batch[s.StoreID]))
		for _, r := range batch[s.StoreID] {
			if r.OverallScore < f.MinScore {
				continue
			}
			if f.MinLevel != "" && r.ConfidenceLevel.Rank() < f.MinLevel.Rank() {
				continue
			}
			candidates = append(candidates, r)
		}

		row := StoreOutcome{Store: s, Candidates: candidates}
		if len(candidates) > 0 {
			top := candidates[0]
			row.Top = &top
		}
		o := Classify(row.Top, p)
		row.Status, row.Reason = o.Status, o.Reason

		if f.Status != "" && row.Status != f.Status {
			continue
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Store.StoreNumber != out[j].Store.StoreNumber {
			return out[i].Store.StoreNumber < out[j].Store.StoreNumber
		}
		return out[i].Store.StoreID < out[j].Store.StoreID
	})
	return out
}

// Summary counts outcomes per status and per top-recommendation confidence.
type Summary struct {
	TotalStores  int                            `json:"total_stores"`
	AutoApprove  int                            `json:"auto_approve"`
	NeedsReview  int                            `json:"needs_review"`
	Skip         int                            `json:"skip"`
	ByConfidence map[domain.ConfidenceLevel]int `json:"by_confidence"`
	TotalPieces  int                            `json:"total_pieces"`
}

// Summarize tallies a set of outcomes. TotalPieces sums the recommended
// quantity of every top recommendation.
func Summarize(rows []StoreOutcome) Summary {
	s := Summary{ByConfidence: map[domain.ConfidenceLevel]int{}}
	for _, r := range rows {
		s.TotalStores++
		switch r.Status {
		case StatusAutoApprove:
			s.AutoApprove++
		case StatusNeedsReview:
			s.NeedsReview++
		case StatusSkip:
			s.Skip++
		}
		if r.Top != nil {
			s.ByConfidence[r.Top.ConfidenceLevel]++
			s.TotalPieces += r.Top.RecommendedQuantity
		}
	}
	return s
}
