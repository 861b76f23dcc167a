package api

import (
	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/recommendation"
	"github.com/ignite/retail-planner/internal/service/plan"
)

// Statements are tagged by component internally. Clients get plain text.

type recommendationView struct {
	StoreID                string                 `json:"store_id"`
	CampaignID             string                 `json:"campaign_id"`
	CampaignName           string                 `json:"campaign_name"`
	Scores                 domain.ComponentScores `json:"scores"`
	OverallScore           float64                `json:"overall_score"`
	ConfidenceLevel        domain.ConfidenceLevel `json:"confidence_level"`
	Reasoning              []string               `json:"reasoning"`
	RiskFactors            []string               `json:"risk_factors"`
	RecommendedQuantity    int                    `json:"recommended_quantity"`
	ExpectedConversionRate float64                `json:"expected_conversion_rate"`
	ExpectedConversions    float64                `json:"expected_conversions"`
}

func toRecommendationView(r domain.CampaignRecommendation) recommendationView {
	return recommendationView{
		StoreID:                r.StoreID,
		CampaignID:             r.CampaignID,
		CampaignName:           r.CampaignName,
		Scores:                 r.Scores,
		OverallScore:           r.OverallScore,
		ConfidenceLevel:        r.ConfidenceLevel,
		Reasoning:              domain.Texts(r.Reasoning),
		RiskFactors:            domain.Texts(r.RiskFactors),
		RecommendedQuantity:    r.RecommendedQuantity,
		ExpectedConversionRate: r.ExpectedConversionRate,
		ExpectedConversions:    r.ExpectedConversions,
	}
}

type storeOutcomeView struct {
	Store      domain.StorePerformanceMetrics `json:"store"`
	Status     recommendation.Status          `json:"status"`
	Reason     string                         `json:"reason,omitempty"`
	Top        *recommendationView            `json:"top_recommendation,omitempty"`
	Candidates []recommendationView           `json:"candidates"`
}

func toStoreOutcomeView(o recommendation.StoreOutcome) storeOutcomeView {
	v := storeOutcomeView{
		Store:      o.Store,
		Status:     o.Status,
		Reason:     o.Reason,
		Candidates: make([]recommendationView, 0, len(o.Candidates)),
	}
	if o.Top != nil {
		top := toRecommendationView(*o.Top)
		v.Top = &top
	}
	for _, c := range o.Candidates {
		v.Candidates = append(v.Candidates, toRecommendationView(c))
	}
	return v
}

type aiView struct {
	CampaignID             string                 `json:"campaign_id"`
	CampaignName           string                 `json:"campaign_name"`
	Quantity               int                    `json:"quantity"`
	Scores                 domain.ComponentScores `json:"scores"`
	OverallScore           float64                `json:"overall_score"`
	ConfidenceLevel        domain.ConfidenceLevel `json:"confidence_level"`
	Reasoning              []string               `json:"reasoning"`
	RiskFactors            []string               `json:"risk_factors"`
	ExpectedConversionRate float64                `json:"expected_conversion_rate"`
}

func toAIView(a domain.AIRecommendation) aiView {
	return aiView{
		CampaignID:             a.CampaignID,
		CampaignName:           a.CampaignName,
		Quantity:               a.Quantity,
		Scores:                 a.Scores,
		OverallScore:           a.OverallScore,
		ConfidenceLevel:        a.ConfidenceLevel,
		Reasoning:              domain.Texts(a.Reasoning),
		RiskFactors:            domain.Texts(a.RiskFactors),
		ExpectedConversionRate: a.ExpectedConversionRate,
	}
}

type planItemView struct {
	ID                  string  `json:"id"`
	PlanID              string  `json:"plan_id"`
	StoreID             string  `json:"store_id"`
	StoreNumber         string  `json:"store_number,omitempty"`
	StoreName           string  `json:"store_name,omitempty"`
	CampaignID          string  `json:"campaign_id"`
	CampaignName        string  `json:"campaign_name"`
	Quantity            int     `json:"quantity"`
	UnitCost            float64 `json:"unit_cost"`
	WaveCode            string  `json:"wave_code,omitempty"`
	IsIncluded          bool    `json:"is_included"`
	IsOverridden        bool    `json:"is_overridden"`
	OverrideNotes       string  `json:"override_notes,omitempty"`
	ExpectedConversions float64 `json:"expected_conversions"`
	AI                  aiView  `json:"ai_recommendation"`
}

func toPlanItemView(i domain.PlanItem) planItemView {
	return planItemView{
		ID:                  i.ID,
		PlanID:              i.PlanID,
		StoreID:             i.StoreID,
		StoreNumber:         i.StoreNumber,
		StoreName:           i.StoreName,
		CampaignID:          i.CampaignID,
		CampaignName:        i.CampaignName,
		Quantity:            i.Quantity,
		UnitCost:            i.UnitCost,
		WaveCode:            i.WaveCode,
		IsIncluded:          i.IsIncluded,
		IsOverridden:        i.IsOverridden,
		OverrideNotes:       i.OverrideNotes,
		ExpectedConversions: i.ExpectedConversions(),
		AI:                  toAIView(i.AI),
	}
}

type explanationView struct {
	ItemID      string                   `json:"item_id"`
	StoreID     string                   `json:"store_id"`
	AI          aiView                   `json:"ai_recommendation"`
	Reasoning   []string                 `json:"reasoning"`
	RiskFactors []string                 `json:"risk_factors"`
	Overrides   []domain.PlanActivityLog `json:"overrides"`
	Current     plan.ReplayedDecision    `json:"current"`
}

func toExplanationView(e plan.Explanation) explanationView {
	overrides := e.Overrides
	if overrides == nil {
		overrides = []domain.PlanActivityLog{}
	}
	return explanationView{
		ItemID:      e.ItemID,
		StoreID:     e.StoreID,
		AI:          toAIView(e.AI),
		Reasoning:   e.Reasoning,
		RiskFactors: e.RiskFactors,
		Overrides:   overrides,
		Current:     e.Current,
	}
}
