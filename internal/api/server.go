// Package api exposes the recommendation engine and plan service over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/recommendation"
	"github.com/ignite/retail-planner/internal/service/plan"
)

// Recommender produces batch and per-store recommendation views.
type Recommender interface {
	Batch(ctx context.Context, req recommendation.BatchRequest) (*recommendation.BatchResponse, error)
	ForStore(ctx context.Context, storeID string, daysBack int, evalDate time.Time) (*recommendation.StoreOutcome, error)
}

// Planner is the plan lifecycle surface used by the handlers.
type Planner interface {
	Create(ctx context.Context, actor string, in plan.CreateInput) (*domain.CampaignPlan, error)
	Get(ctx context.Context, id string) (*domain.CampaignPlan, error)
	List(ctx context.Context, f plan.ListFilter) ([]domain.CampaignPlan, int, error)
	Delete(ctx context.Context, actor, planID string) error
	Items(ctx context.Context, planID string) ([]domain.PlanItem, error)
	UpdateItem(ctx context.Context, actor, planID, itemID string, ch plan.ItemChanges) (*domain.PlanItem, error)
	Explain(ctx context.Context, planID, itemID string) (*plan.Explanation, error)
	Waves(ctx context.Context, planID string) ([]domain.PlanWave, error)
	Activity(ctx context.Context, planID string) ([]domain.PlanActivityLog, error)
	Executions(ctx context.Context, planID string) ([]domain.ExecutionGroup, error)
	Approve(ctx context.Context, actor, planID string) (*domain.CampaignPlan, error)
	Execute(ctx context.Context, actor, planID string, grouping domain.ExecutionGrouping) (*plan.ExecutionResult, error)
}

// Invalidator drops cached metrics snapshots and the batches scored from them.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Options configures the handlers.
type Options struct {
	DefaultDaysBack int
	ActorHeader     string
	MetricsCache    Invalidator
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	reco        Recommender
	plans       Planner
	metrics     Invalidator
	daysBack    int
	actorHeader string
}

// NewHandlers creates the handler set.
func NewHandlers(reco Recommender, plans Planner, opts Options) *Handlers {
	h := &Handlers{
		reco:        reco,
		plans:       plans,
		metrics:     opts.MetricsCache,
		daysBack:    opts.DefaultDaysBack,
		actorHeader: opts.ActorHeader,
	}
	if h.daysBack <= 0 {
		h.daysBack = 90
	}
	if h.actorHeader == "" {
		h.actorHeader = "X-Actor"
	}
	return h
}

// actor returns the caller identity. Authentication happens upstream; the
// gateway forwards the resolved user in a header.
func (h *Handlers) actor(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(h.actorHeader))
}
