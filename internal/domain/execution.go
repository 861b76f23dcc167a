package domain

import "time"

// ExecutionGrouping selects how included plan items are bundled into orders.
type ExecutionGrouping string

const (
	GroupByWave     ExecutionGrouping = "wave"
	GroupByCampaign ExecutionGrouping = "campaign"
	GroupMaster     ExecutionGrouping = "master"
)

// Valid reports whether g is a supported grouping.
func (g ExecutionGrouping) Valid() bool {
	switch g {
	case GroupByWave, GroupByCampaign, GroupMaster:
		return true
	}
	return false
}

// UnassignedWave is the group key for items without a wave when grouping by wave.
const UnassignedWave = "unassigned"

// MasterGroupKey is the single group key used by GroupMaster.
const MasterGroupKey = "master"

// ExecutionGroupStatus tracks one order group across execution attempts.
type ExecutionGroupStatus string

const (
	GroupPending   ExecutionGroupStatus = "pending"
	GroupSucceeded ExecutionGroupStatus = "succeeded"
	GroupFailed    ExecutionGroupStatus = "failed"
)

// ExecutionGroup is one order request derived from an approved plan. Once a
// group succeeds it is never resubmitted.
type ExecutionGroup struct {
	PlanID        string               `json:"plan_id" db:"plan_id"`
	GroupKey      string               `json:"group_key" db:"group_key"`
	Grouping      ExecutionGrouping    `json:"grouping" db:"grouping"`
	Status        ExecutionGroupStatus `json:"status" db:"status"`
	OrderID       string               `json:"order_id,omitempty" db:"order_id"`
	ItemIDs       []string             `json:"item_ids" db:"item_ids"`
	TotalQuantity int                  `json:"total_quantity" db:"total_quantity"`
	EstimatedCost float64              `json:"estimated_cost" db:"estimated_cost"`
	Attempts      int                  `json:"attempts" db:"attempts"`
	LastError     string               `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// Done reports whether the group has produced an order.
func (g *ExecutionGroup) Done() bool {
	return g.Status == GroupSucceeded
}

// OrderLine is one store's share of an order group.
type OrderLine struct {
	ItemID     string  `json:"item_id"`
	StoreID    string  `json:"store_id"`
	CampaignID string  `json:"campaign_id"`
	Quantity   int     `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
	WaveCode   string  `json:"wave_code,omitempty"`
}

// OrderRequest is what the order system receives for one execution group.
// IdempotencyKey is stable per plan and group so a retried submission never
// creates a second order.
type OrderRequest struct {
	IdempotencyKey string            `json:"idempotency_key"`
	PlanID         string            `json:"plan_id"`
	PlanName       string            `json:"plan_name"`
	GroupKey       string            `json:"group_key"`
	Grouping       ExecutionGrouping `json:"grouping"`
	RequestedBy    string            `json:"requested_by"`
	Lines          []OrderLine       `json:"lines"`
	TotalQuantity  int               `json:"total_quantity"`
	EstimatedCost  float64           `json:"estimated_cost"`
}

// OrderReceipt is the order system's acknowledgement.
type OrderReceipt struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status,omitempty"`
}

// ExecutionManifest is the archived record of a fully executed plan.
type ExecutionManifest struct {
	Plan       CampaignPlan     `json:"plan"`
	Groups     []ExecutionGroup `json:"groups"`
	Items      []PlanItem       `json:"items"`
	ExecutedBy string           `json:"executed_by"`
	ExecutedAt time.Time        `json:"executed_at"`
}
