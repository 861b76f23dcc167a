package plan

import (
	"context"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
)

// Repository defines the data access contract for plans.
// Every write method is atomic: either all of its rows land or none do.
// Implementations must be safe for concurrent use.
type Repository interface {
	// CreatePlan inserts a plan with its items, waves and creation entry.
	CreatePlan(ctx context.Context, p *domain.CampaignPlan, items []domain.PlanItem, waves []domain.PlanWave, entry domain.PlanActivityLog) error

	// GetPlan returns ErrNotFound if the plan does not exist.
	GetPlan(ctx context.Context, id string) (*domain.CampaignPlan, error)

	// ListPlans returns plans ordered by created_at DESC and the total match count.
	ListPlans(ctx context.Context, f ListFilter) ([]domain.CampaignPlan, int, error)

	// ListItems returns items ordered by store number with store display fields joined.
	ListItems(ctx context.Context, planID string) ([]domain.PlanItem, error)

	// ListWaves returns waves ordered by start date, then code.
	ListWaves(ctx context.Context, planID string) ([]domain.PlanWave, error)

	// ListActivity returns audit entries oldest first.
	ListActivity(ctx context.Context, planID string, f ActivityFilter) ([]domain.PlanActivityLog, error)

	// SaveItemChange writes the item, the plan rollups, the wave rollups and
	// the audit entry as one unit.
	SaveItemChange(ctx context.Context, m ItemMutation) error

	// TransitionPlan moves the plan out of status from and appends entry.
	// It returns a StateError if the stored status is no longer from.
	TransitionPlan(ctx context.Context, p *domain.CampaignPlan, from domain.PlanStatus, entry domain.PlanActivityLog) error

	// DeletePlan removes a draft plan with its items, waves and groups and
	// appends entry. The plan's audit trail is kept.
	DeletePlan(ctx context.Context, id string, entry domain.PlanActivityLog) error

	// ListExecutionGroups returns the plan's groups ordered by group key.
	ListExecutionGroups(ctx context.Context, planID string) ([]domain.ExecutionGroup, error)

	// CreateExecutionGroups materialises groups and fixes the plan's grouping.
	CreateExecutionGroups(ctx context.Context, planID string, grouping domain.ExecutionGrouping, groups []domain.ExecutionGroup) error

	// RecordGroupResult stores one group's attempt outcome and its audit entry.
	RecordGroupResult(ctx context.Context, g domain.ExecutionGroup, entry domain.PlanActivityLog) error
}

// ListFilter controls pagination and filtering for plan lists.
type ListFilter struct {
	Status domain.PlanStatus
	Search string
	Limit  int
	Offset int
}

// ActivityFilter narrows the audit trail to one entity.
type ActivityFilter struct {
	EntityType domain.EntityType
	EntityID   string
}

// ItemMutation is one draft edit with everything it invalidates.
type ItemMutation struct {
	PlanID    string
	Item      domain.PlanItem
	Totals    domain.PlanTotals
	Waves     []domain.PlanWave
	Entry     domain.PlanActivityLog
	UpdatedAt time.Time
}
