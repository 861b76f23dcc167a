package recommendation

import (
	"fmt"
	"math"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
)

// CreativePopulation describes the candidate campaigns of a batch so creative
// scores are comparable across campaigns.
type CreativePopulation struct {
	MaxRate float64
	Count   int
}

// NewPopulation summarises a candidate set.
func NewPopulation(campaigns []domain.CampaignCreativePerformance) CreativePopulation {
	var p CreativePopulation
	for _, c := range campaigns {
		p.Count++
		if c.ConversionRate > p.MaxRate {
			p.MaxRate = c.ConversionRate
		}
	}
	return p
}

// ScoreInput bundles everything Score reads. Store and Campaign may be nil
// when the metrics feed has a gap; Geo is nil when no pattern exists.
type ScoreInput struct {
	Store          *domain.StorePerformanceMetrics
	Campaign       *domain.CampaignCreativePerformance
	Geo            *domain.GeographicPattern
	Population     CreativePopulation
	EvaluationDate time.Time
}

// Score produces the recommendation for one store/campaign pair. It never
// fails: missing metrics degrade to a low-confidence result carrying an
// explicit risk factor. cfg is assumed valid (see Config.Validate).
func Score(in ScoreInput, cfg Config) domain.CampaignRecommendation {
	rec := domain.CampaignRecommendation{
		Reasoning:   []domain.Statement{},
		RiskFactors: []domain.Statement{},
	}
	if in.Store != nil {
		rec.StoreID = in.Store.StoreID
	}
	if in.Campaign != nil {
		rec.CampaignID = in.Campaign.CampaignID
		rec.CampaignName = in.Campaign.CampaignName
	}

	if in.Store == nil || in.Campaign == nil {
		if in.Store == nil {
			rec.RiskFactors = append(rec.RiskFactors, risk(domain.ComponentData, "Missing store performance metrics"))
		}
		if in.Campaign == nil {
			rec.RiskFactors = append(rec.RiskFactors, risk(domain.ComponentData, "Missing campaign performance metrics"))
		}
		rec.ConfidenceLevel = domain.ConfidenceLow
		rec.RecommendedQuantity = recommendedQuantity(0, cfg)
		rec.ExpectedConversionRate = expectedRate(in.Store, in.Campaign, rec.RecommendedQuantity, cfg)
		rec.ExpectedConversions = domain.ExpectedConversions(rec.RecommendedQuantity, rec.ExpectedConversionRate)
		return rec
	}

	store, campaign := in.Store, in.Campaign
	thinStore := store.TotalCampaigns < cfg.MinStoreCampaigns
	thinCampaign := campaign.SampleSize < cfg.MinCampaignSample

	rec.Scores = domain.ComponentScores{
		StorePerformance:    round4(storePerformance(store, thinStore, cfg)),
		CreativePerformance: round4(creativePerformance(campaign, in.Population, thinCampaign, cfg)),
		GeographicFit:       round4(geographicFit(in.Geo, campaign.CampaignID, cfg)),
		TimingAlignment:     round4(timingAlignment(in.EvaluationDate, campaign.PeakMonth, cfg)),
	}
	rec.OverallScore = round4(Overall(rec.Scores, cfg.Weights))

	switch {
	case rec.OverallScore < cfg.LowConfidenceScore || thinStore || thinCampaign:
		rec.ConfidenceLevel = domain.ConfidenceLow
	case rec.OverallScore >= cfg.HighConfidenceScore:
		rec.ConfidenceLevel = domain.ConfidenceHigh
	default:
		rec.ConfidenceLevel = domain.ConfidenceMedium
	}

	rec.Reasoning = reasoning(in, rec.Scores, cfg)
	rec.RiskFactors = riskFactors(in, rec, thinStore, thinCampaign, cfg)

	rec.RecommendedQuantity = recommendedQuantity(rec.OverallScore, cfg)
	rec.ExpectedConversionRate = expectedRate(store, campaign, rec.RecommendedQuantity, cfg)
	rec.ExpectedConversions = domain.ExpectedConversions(rec.RecommendedQuantity, rec.ExpectedConversionRate)
	return rec
}

// Overall is the weighted sum of the component scores.
func Overall(s domain.ComponentScores, w Weights) float64 {
	return w.StorePerformance*s.StorePerformance +
		w.CreativePerformance*s.CreativePerformance +
		w.GeographicFit*s.GeographicFit +
		w.TimingAlignment*s.TimingAlignment
}

// storePerformance blends the recent-vs-history trend with the absolute recent
// level. Stores with thin history are capped rather than extrapolated.
func storePerformance(s *domain.StorePerformanceMetrics, thin bool, cfg Config) float64 {
	trend := cfg.NeutralScore
	if s.AvgConversionRate > 0 {
		// ratio 1.0 maps to 0.5, 1.5x history or better maps to 1.0
		trend = clamp01(s.RecentConversionRate/s.AvgConversionRate - 0.5)
	}
	level := clamp01(s.RecentConversionRate / (2 * cfg.BenchmarkConversionRate))
	score := 0.6*trend + 0.4*level
	if thin {
		score = math.Min(score, cfg.LowHistoryCap)
	}
	return score
}

func creativePerformance(c *domain.CampaignCreativePerformance, pop CreativePopulation, thin bool, cfg Config) float64 {
	if pop.MaxRate <= 0 {
		return 0
	}
	score := clamp01(c.ConversionRate / pop.MaxRate)
	if thin {
		score = math.Min(score, cfg.LowHistoryCap)
	}
	return score
}

func geographicFit(g *domain.GeographicPattern, campaignID string, cfg Config) float64 {
	if g == nil || g.AvgConversionRate <= 0 {
		return cfg.NeutralScore
	}
	rate, ok := g.CampaignRates[campaignID]
	if !ok {
		return cfg.NeutralScore
	}
	// matching the area average is neutral, twice the average is a full score
	return clamp01(rate / g.AvgConversionRate / 2)
}

func timingAlignment(eval time.Time, peakMonth int, cfg Config) float64 {
	if eval.IsZero() || peakMonth < 1 || peakMonth > 12 {
		return cfg.NeutralScore
	}
	return 1 - float64(monthDistance(int(eval.Month()), peakMonth))/6
}

// monthDistance is the circular distance between two months, 0..6.
func monthDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 6 {
		d = 12 - d
	}
	return d
}

func reasoning(in ScoreInput, s domain.ComponentScores, cfg Config) []domain.Statement {
	out := []domain.Statement{}
	gate := cfg.ReasoningThreshold
	if s.StorePerformance > gate {
		out = append(out, domain.Statement{
			Component: domain.ComponentStorePerformance,
			Text: fmt.Sprintf("Strong historical performance: recent conversion %.1f%% vs %.1f%% overall across %d campaigns",
				in.Store.RecentConversionRate, in.Store.AvgConversionRate, in.Store.TotalCampaigns),
		})
	}
	if s.CreativePerformance > gate {
		out = append(out, domain.Statement{
			Component: domain.ComponentCreativePerformance,
			Text: fmt.Sprintf("Creative converts at %.1f%% across %d stores",
				in.Campaign.ConversionRate, in.Campaign.SampleSize),
		})
	}
	if s.GeographicFit > gate {
		out = append(out, domain.Statement{
			Component: domain.ComponentGeographicFit,
			Text:      fmt.Sprintf("Strong response to this creative in %s", areaName(in.Geo)),
		})
	}
	if s.TimingAlignment > gate {
		out = append(out, domain.Statement{
			Component: domain.ComponentTimingAlignment,
			Text:      fmt.Sprintf("Timing aligns with the campaign's seasonal peak in %s", time.Month(in.Campaign.PeakMonth)),
		})
	}
	return out
}

func riskFactors(in ScoreInput, rec domain.CampaignRecommendation, thinStore, thinCampaign bool, cfg Config) []domain.Statement {
	out := []domain.Statement{}
	if rec.OverallScore < cfg.MinConfidenceThreshold {
		out = append(out, risk(domain.ComponentOverall, fmt.Sprintf(
			"Overall score %.2f is below the minimum confidence threshold %.2f",
			rec.OverallScore, cfg.MinConfidenceThreshold)))
	}

	s := rec.Scores
	if s.StorePerformance < cfg.RiskFloor {
		out = append(out, risk(domain.ComponentStorePerformance, fmt.Sprintf(
			"Weak store performance: recent conversion %.1f%% vs %.1f%% overall",
			in.Store.RecentConversionRate, in.Store.AvgConversionRate)))
	}
	if s.CreativePerformance < cfg.RiskFloor {
		out = append(out, risk(domain.ComponentCreativePerformance, fmt.Sprintf(
			"Weak creative performance: %.1f%% conversion vs %.1f%% best in batch",
			in.Campaign.ConversionRate, in.Population.MaxRate)))
	}
	if s.GeographicFit < cfg.RiskFloor {
		out = append(out, risk(domain.ComponentGeographicFit, fmt.Sprintf(
			"Poor geographic fit: creative underperforms in %s", areaName(in.Geo))))
	}
	if s.TimingAlignment < cfg.RiskFloor {
		out = append(out, risk(domain.ComponentTimingAlignment, fmt.Sprintf(
			"Off-season: campaign historically peaks in %s", time.Month(in.Campaign.PeakMonth))))
	}

	// sample-size gaps only explain a result that is already flagged
	if len(out) == 0 {
		return out
	}
	if thinStore {
		out = append(out, risk(domain.ComponentStorePerformance, fmt.Sprintf(
			"Limited store history: %d prior campaigns (minimum %d)",
			in.Store.TotalCampaigns, cfg.MinStoreCampaigns)))
	}
	if thinCampaign {
		out = append(out, risk(domain.ComponentCreativePerformance, fmt.Sprintf(
			"Small creative sample: %d stores (minimum %d)",
			in.Campaign.SampleSize, cfg.MinCampaignSample)))
	}
	return out
}

func risk(c domain.Component, text string) domain.Statement {
	return domain.Statement{Component: c, Text: text}
}

func areaName(g *domain.GeographicPattern) string {
	if g == nil {
		return "this area"
	}
	if g.IsStateLevel() {
		return g.State
	}
	return g.Region
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
