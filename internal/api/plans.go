package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/httputil"
	"github.com/ignite/retail-planner/internal/service/plan"
)

type planListView struct {
	Plans  []domain.CampaignPlan `json:"plans"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type executeRequest struct {
	Grouping domain.ExecutionGrouping `json:"grouping"`
}

// requireActor writes a 400 when the caller is anonymous. Every mutation is
// attributed in the audit trail.
func (h *Handlers) requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := h.actor(r)
	if actor == "" {
		httputil.BadRequest(w, h.actorHeader+" header is required")
		return "", false
	}
	return actor, true
}

// CreatePlan turns accepted recommendations into a draft plan.
//
//	POST /api/plans
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var in plan.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	p, err := h.plans.Create(r.Context(), actor, in)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, p)
}

// ListPlans returns a page of plans.
//
//	GET /api/plans?status=&search=&limit=&offset=
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit", 50)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	f := plan.ListFilter{
		Status: domain.PlanStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	plans, total, err := h.plans.List(r.Context(), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if plans == nil {
		plans = []domain.CampaignPlan{}
	}
	httputil.OK(w, planListView{Plans: plans, Total: total, Limit: limit, Offset: offset})
}

// GetPlan returns one plan.
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.plans.Get(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// DeletePlan removes a draft plan.
func (h *Handlers) DeletePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	if err := h.plans.Delete(r.Context(), actor, chi.URLParam(r, "planId")); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ListPlanItems returns a plan's items with store display fields.
func (h *Handlers) ListPlanItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.plans.Items(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	out := make([]planItemView, 0, len(items))
	for _, it := range items {
		out = append(out, toPlanItemView(it))
	}
	httputil.OK(w, out)
}

// UpdatePlanItem applies an override to one item.
//
//	PATCH /api/plans/{planId}/items/{itemId}
func (h *Handlers) UpdatePlanItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var ch plan.ItemChanges
	if !httputil.Decode(w, r, &ch) {
		return
	}
	item, err := h.plans.UpdateItem(r.Context(), actor, chi.URLParam(r, "planId"), chi.URLParam(r, "itemId"), ch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toPlanItemView(*item))
}

// ExplainPlanItem returns the reasoning panel for an item.
func (h *Handlers) ExplainPlanItem(w http.ResponseWriter, r *http.Request) {
	e, err := h.plans.Explain(r.Context(), chi.URLParam(r, "planId"), chi.URLParam(r, "itemId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toExplanationView(*e))
}

// ListPlanWaves returns a plan's waves with rollups.
func (h *Handlers) ListPlanWaves(w http.ResponseWriter, r *http.Request) {
	waves, err := h.plans.Waves(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if waves == nil {
		waves = []domain.PlanWave{}
	}
	httputil.OK(w, waves)
}

// ListPlanActivity returns the audit trail.
func (h *Handlers) ListPlanActivity(w http.ResponseWriter, r *http.Request) {
	log, err := h.plans.Activity(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if log == nil {
		log = []domain.PlanActivityLog{}
	}
	httputil.OK(w, log)
}

// ListPlanExecutions returns the execution groups and their order status.
func (h *Handlers) ListPlanExecutions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.plans.Executions(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []domain.ExecutionGroup{}
	}
	httputil.OK(w, groups)
}

// ApprovePlan freezes a draft plan.
//
//	POST /api/plans/{planId}/approve
func (h *Handlers) ApprovePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	p, err := h.plans.Approve(r.Context(), actor, chi.URLParam(r, "planId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, p)
}

// ExecutePlan submits an approved plan's order groups. A partial failure
// answers 502 with every group's status; calling again retries only the
// failed groups.
//
//	POST /api/plans/{planId}/execute {"grouping": "wave"|"campaign"|"master"}
func (h *Handlers) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.plans.Execute(r.Context(), actor, chi.URLParam(r, "planId"), req.Grouping)
	switch {
	case err == nil:
		httputil.OK(w, res)
	case errors.Is(err, plan.ErrPartialExecution) && res != nil:
		httputil.Error(w, http.StatusBadGateway, "partial_execution", err.Error(), res)
	default:
		respondServiceError(w, err)
	}
}
