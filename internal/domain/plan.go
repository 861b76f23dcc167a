package domain

import "time"

// PlanStatus enumerates the lifecycle states of a campaign plan. Transitions
// only move forward: draft → approved → executed.
type PlanStatus string

const (
	PlanDraft    PlanStatus = "draft"
	PlanApproved PlanStatus = "approved"
	PlanExecuted PlanStatus = "executed"
)

// Next returns the only status a plan may move to from s, or "" if s is
// terminal or unknown.
func (s PlanStatus) Next() PlanStatus {
	switch s {
	case PlanDraft:
		return PlanApproved
	case PlanApproved:
		return PlanExecuted
	default:
		return ""
	}
}

// CanTransitionTo reports whether moving from s to target is a legal step.
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	return target != "" && s.Next() == target
}

// PlanTotals are the rollups derived from included plan items. They are never
// edited by hand; every write recomputes them from the full item set.
type PlanTotals struct {
	TotalStores         int     `json:"total_stores" db:"total_stores"`
	TotalQuantity       int     `json:"total_quantity" db:"total_quantity"`
	EstimatedCost       float64 `json:"estimated_cost" db:"estimated_cost"`
	ExpectedConversions float64 `json:"expected_conversions" db:"expected_conversions"`
	AvgConfidence       float64 `json:"avg_confidence" db:"avg_confidence"`
}

// CampaignPlan is the aggregate root: a named set of per-store decisions.
type CampaignPlan struct {
	ID                string            `json:"id" db:"id"`
	Name              string            `json:"name" db:"name"`
	Description       string            `json:"description" db:"description"`
	Status            PlanStatus        `json:"status" db:"status"`
	ExecutionGrouping ExecutionGrouping `json:"execution_grouping,omitempty" db:"execution_grouping"`
	PlanTotals
	CreatedBy  string     `json:"created_by" db:"created_by"`
	ApprovedBy string     `json:"approved_by,omitempty" db:"approved_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty" db:"executed_at"`
}

// IsEditable returns true while items and waves may still change.
func (p *CampaignPlan) IsEditable() bool {
	return p.Status == PlanDraft
}

// AIRecommendation is the recommendation snapshot frozen into a plan item at
// creation. It is written once and never updated.
type AIRecommendation struct {
	CampaignID             string          `json:"campaign_id"`
	CampaignName           string          `json:"campaign_name"`
	Quantity               int             `json:"quantity"`
	Scores                 ComponentScores `json:"scores"`
	OverallScore           float64         `json:"overall_score"`
	ConfidenceLevel        ConfidenceLevel `json:"confidence_level"`
	Reasoning              []Statement     `json:"reasoning"`
	RiskFactors            []Statement     `json:"risk_factors"`
	ExpectedConversionRate float64         `json:"expected_conversion_rate"`
	ExpectedConversions    float64         `json:"expected_conversions"`
}

// SnapshotOf freezes a recommendation into the plan item form.
func SnapshotOf(r CampaignRecommendation) AIRecommendation {
	return AIRecommendation{
		CampaignID:             r.CampaignID,
		CampaignName:           r.CampaignName,
		Quantity:               r.RecommendedQuantity,
		Scores:                 r.Scores,
		OverallScore:           r.OverallScore,
		ConfidenceLevel:        r.ConfidenceLevel,
		Reasoning:              append([]Statement(nil), r.Reasoning...),
		RiskFactors:            append([]Statement(nil), r.RiskFactors...),
		ExpectedConversionRate: r.ExpectedConversionRate,
		ExpectedConversions:    r.ExpectedConversions,
	}
}

// PlanItem is one store's assignment inside a plan.
//
// StoreNumber and StoreName are a read-only projection joined from the store
// directory when items are listed; they are not part of the write model.
type PlanItem struct {
	ID      string `json:"id" db:"id"`
	PlanID  string `json:"plan_id" db:"plan_id"`
	StoreID string `json:"store_id" db:"store_id"`

	StoreNumber string `json:"store_number,omitempty" db:"-"`
	StoreName   string `json:"store_name,omitempty" db:"-"`

	// Current decision.
	CampaignID   string  `json:"campaign_id" db:"campaign_id"`
	CampaignName string  `json:"campaign_name" db:"campaign_name"`
	Quantity     int     `json:"quantity" db:"quantity"`
	UnitCost     float64 `json:"unit_cost" db:"unit_cost"`
	WaveCode     string  `json:"wave_code,omitempty" db:"wave_code"`

	AI AIRecommendation `json:"ai_recommendation" db:"ai_snapshot"`

	IsIncluded    bool      `json:"is_included" db:"is_included"`
	IsOverridden  bool      `json:"is_overridden" db:"is_overridden"`
	OverrideNotes string    `json:"override_notes,omitempty" db:"override_notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Diverges reports whether the current decision differs from the frozen AI
// recommendation in campaign or quantity.
func (i *PlanItem) Diverges() bool {
	return i.CampaignID != i.AI.CampaignID || i.Quantity != i.AI.Quantity
}

// ExpectedConversions applies the frozen AI conversion rate to the current
// quantity. A quantity change never changes the implied rate.
func (i *PlanItem) ExpectedConversions() float64 {
	return ExpectedConversions(i.Quantity, i.AI.ExpectedConversionRate)
}

// Cost is quantity × unit cost.
func (i *PlanItem) Cost() float64 {
	return float64(i.Quantity) * i.UnitCost
}

// PlanWave is an optional time-boxed grouping of items for staged delivery.
type PlanWave struct {
	ID        string     `json:"id" db:"id"`
	PlanID    string     `json:"plan_id" db:"plan_id"`
	Code      string     `json:"code" db:"code"`
	Name      string     `json:"name" db:"name"`
	StartDate *time.Time `json:"start_date,omitempty" db:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	Budget    float64    `json:"budget" db:"budget"`

	TotalStores         int     `json:"total_stores" db:"total_stores"`
	TotalQuantity       int     `json:"total_quantity" db:"total_quantity"`
	EstimatedCost       float64 `json:"estimated_cost" db:"estimated_cost"`
	ExpectedConversions float64 `json:"expected_conversions" db:"expected_conversions"`
}

// OverBudget reports whether the wave's estimated cost exceeds a non-zero budget.
func (w *PlanWave) OverBudget() bool {
	return w.Budget > 0 && w.EstimatedCost > w.Budget
}

// EntityType names what an activity log entry is about.
type EntityType string

const (
	EntityPlan      EntityType = "plan"
	EntityPlanItem  EntityType = "plan_item"
	EntityExecution EntityType = "execution_group"
)

// ActivityAction enumerates the structural changes recorded in the audit trail.
type ActivityAction string

const (
	ActionPlanCreated   ActivityAction = "plan.created"
	ActionItemUpdated   ActivityAction = "item.updated"
	ActionPlanApproved  ActivityAction = "plan.approved"
	ActionGroupExecuted ActivityAction = "execution.group_ordered"
	ActionGroupFailed   ActivityAction = "execution.group_failed"
	ActionPlanExecuted  ActivityAction = "plan.executed"
	ActionPlanDeleted   ActivityAction = "plan.deleted"
)

// FieldChange is one field's before/after value in an audit entry.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// PlanActivityLog is an append-only audit entry. Entries are never updated
// or deleted.
type PlanActivityLog struct {
	ID         string         `json:"id" db:"id"`
	PlanID     string         `json:"plan_id" db:"plan_id"`
	EntityType EntityType     `json:"entity_type" db:"entity_type"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	Action     ActivityAction `json:"action" db:"action"`
	Actor      string         `json:"actor" db:"actor"`
	Changes    []FieldChange  `json:"changes" db:"changes"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
