package plan

import (
	"context"
	"fmt"

	"github.com/ignite/retail-planner/internal/domain"
)

// Explanation is the reasoning panel for one plan item. It is rebuilt from
// the frozen AI snapshot and the item's audit entries only, never from the
// item's current row.
type Explanation struct {
	ItemID      string                   `json:"item_id"`
	StoreID     string                   `json:"store_id"`
	AI          domain.AIRecommendation  `json:"ai_recommendation"`
	Reasoning   []string                 `json:"reasoning"`
	RiskFactors []string                 `json:"risk_factors"`
	Overrides   []domain.PlanActivityLog `json:"overrides"`
	Current     ReplayedDecision         `json:"current"`
}

// ReplayedDecision is the item's decision derived by replaying the audit
// trail over the AI snapshot.
type ReplayedDecision struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	Quantity     int    `json:"quantity"`
	IsOverridden bool   `json:"is_overridden"`
	Notes        string `json:"notes,omitempty"`
}

// Explain builds the reasoning panel for an item.
func (s *Service) Explain(ctx context.Context, planID, itemID string) (*Explanation, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, planID)
	if err != nil {
		return nil, err
	}
	var item *domain.PlanItem
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	log, err := s.repo.ListActivity(ctx, planID, ActivityFilter{EntityType: domain.EntityPlanItem, EntityID: itemID})
	if err != nil {
		return nil, err
	}

	ai := item.AI
	return &Explanation{
		ItemID:      item.ID,
		StoreID:     item.StoreID,
		AI:          ai,
		Reasoning:   domain.Texts(ai.Reasoning),
		RiskFactors: domain.Texts(ai.RiskFactors),
		Overrides:   log,
		Current:     replay(ai, log),
	}, nil
}

// replay folds audit diffs over the AI decision.
func replay(ai domain.AIRecommendation, log []domain.PlanActivityLog) ReplayedDecision {
	d := ReplayedDecision{CampaignID: ai.CampaignID, CampaignName: ai.CampaignName, Quantity: ai.Quantity}
	for _, e := range log {
		for _, c := range e.Changes {
			switch c.Field {
			case fieldCampaignID:
				d.CampaignID = asString(c.NewValue)
			case fieldCampaignName:
				d.CampaignName = asString(c.NewValue)
			case fieldQuantity:
				d.Quantity = asInt(c.NewValue)
			case fieldOverrideNotes:
				d.Notes = asString(c.NewValue)
			}
		}
	}
	d.IsOverridden = d.CampaignID != ai.CampaignID || d.Quantity != ai.Quantity
	return d
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// asInt accepts ints from memory and float64 from JSON-decoded entries.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
