package plan

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/logger"
)

// OrderCreator submits one execution group to the order system.
// Implementations must honour OrderRequest.IdempotencyKey.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderReceipt, error)
}

// Archiver stores the manifest of an executed plan and returns its location.
type Archiver interface {
	ArchiveManifest(ctx context.Context, m domain.ExecutionManifest) (string, error)
}

// ExecutionResult reports every group after an Execute call.
type ExecutionResult struct {
	Plan     *domain.CampaignPlan    `json:"plan"`
	Groups   []domain.ExecutionGroup `json:"groups"`
	Complete bool                    `json:"complete"`
	Manifest string                  `json:"manifest,omitempty"`
}

// Failed returns the groups still lacking an order.
func (r *ExecutionResult) Failed() []domain.ExecutionGroup {
	var out []domain.ExecutionGroup
	for _, g := range r.Groups {
		if !g.Done() {
			out = append(out, g)
		}
	}
	return out
}

// Executions returns the plan's execution groups.
func (s *Service) Executions(ctx context.Context, planID string) ([]domain.ExecutionGroup, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.repo.ListExecutionGroups(ctx, planID)
}

// Execute submits an approved plan to the order system.
//
// The first call fixes the grouping and materialises the groups. Each call
// submits every group without an order; succeeded groups are never resent.
// The plan becomes executed once all groups have succeeded. Until then the
// result is returned together with ErrPartialExecution and the plan stays
// approved, so the caller can retry.
func (s *Service) Execute(ctx context.Context, actor, planID string, grouping domain.ExecutionGrouping) (*ExecutionResult, error) {
	if !grouping.Valid() {
		return nil, invalid("grouping", fmt.Sprintf("must be one of wave, campaign, master; got %q", grouping))
	}
	if s.orders == nil {
		return nil, fmt.Errorf("execute plan %s: no order system configured", planID)
	}

	var res *ExecutionResult
	err := s.withPlanLock(ctx, planID, func(ctx context.Context) error {
		p, err := s.repo.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if err := requireStatus(p, domain.PlanApproved, "execute"); err != nil {
			return err
		}
		if p.ExecutionGrouping != "" && p.ExecutionGrouping != grouping {
			return invalid("grouping", fmt.Sprintf("plan is already being executed by %s", p.ExecutionGrouping))
		}

		items, err := s.repo.ListItems(ctx, planID)
		if err != nil {
			return err
		}
		groups, err := s.repo.ListExecutionGroups(ctx, planID)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			groups = buildGroups(planID, grouping, items, s.now().UTC())
			if err := s.repo.CreateExecutionGroups(ctx, planID, grouping, groups); err != nil {
				return fmt.Errorf("create execution groups: %w", err)
			}
			p.ExecutionGrouping = grouping
		}

		byID := make(map[string]*domain.PlanItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}
		for i := range groups {
			if groups[i].Done() {
				continue
			}
			groups[i], err = s.submitGroup(ctx, actor, p, groups[i], byID)
			if err != nil {
				return err
			}
		}

		res = &ExecutionResult{Plan: p, Groups: groups, Complete: true}
		for _, g := range groups {
			if !g.Done() {
				res.Complete = false
			}
		}
		if !res.Complete {
			logger.Warn("plan execution incomplete", "plan_id", planID, "failed_groups", len(res.Failed()))
			return nil
		}

		now := s.now().UTC()
		p.Status = domain.PlanExecuted
		p.ExecutedAt = &now
		p.UpdatedAt = now
		entry := s.entry(planID, domain.EntityPlan, planID, domain.ActionPlanExecuted, actor, now,
			domain.FieldChange{Field: "status", OldValue: domain.PlanApproved, NewValue: domain.PlanExecuted},
			domain.FieldChange{Field: "orders", NewValue: len(groups)})
		if err := s.repo.TransitionPlan(ctx, p, domain.PlanApproved, entry); err != nil {
			return err
		}
		logger.Info("plan executed", "plan_id", planID, "orders", len(groups), "grouping", grouping, "actor", actor)

		res.Manifest = s.archive(ctx, actor, p, groups, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Complete {
		return res, fmt.Errorf("%w: %d of %d groups failed", ErrPartialExecution, len(res.Failed()), len(res.Groups))
	}
	return res, nil
}

// submitGroup sends one group and persists the outcome. Only a persistence
// failure is returned; an order system failure is recorded on the group.
func (s *Service) submitGroup(ctx context.Context, actor string, p *domain.CampaignPlan, g domain.ExecutionGroup, items map[string]*domain.PlanItem) (domain.ExecutionGroup, error) {
	req := domain.OrderRequest{
		IdempotencyKey: p.ID + ":" + g.GroupKey,
		PlanID:         p.ID,
		PlanName:       p.Name,
		GroupKey:       g.GroupKey,
		Grouping:       g.Grouping,
		RequestedBy:    actor,
		TotalQuantity:  g.TotalQuantity,
		EstimatedCost:  g.EstimatedCost,
	}
	for _, id := range g.ItemIDs {
		it, ok := items[id]
		if !ok {
			continue
		}
		req.Lines = append(req.Lines, domain.OrderLine{
			ItemID:     it.ID,
			StoreID:    it.StoreID,
			CampaignID: it.CampaignID,
			Quantity:   it.Quantity,
			UnitCost:   it.UnitCost,
			WaveCode:   it.WaveCode,
		})
	}

	receipt, orderErr := s.orders.CreateOrder(ctx, req)
	g.Attempts++
	g.UpdatedAt = s.now().UTC()

	var entry domain.PlanActivityLog
	if orderErr != nil {
		g.Status = domain.GroupFailed
		g.LastError = orderErr.Error()
		entry = s.entry(p.ID, domain.EntityExecution, g.GroupKey, domain.ActionGroupFailed, actor, g.UpdatedAt,
			domain.FieldChange{Field: "status", NewValue: domain.GroupFailed},
			domain.FieldChange{Field: "error", NewValue: g.LastError})
		logger.Warn("order group failed", "plan_id", p.ID, "group", g.GroupKey, "attempt", g.Attempts, "error", orderErr)
	} else {
		g.Status = domain.GroupSucceeded
		g.OrderID = receipt.OrderID
		g.LastError = ""
		entry = s.entry(p.ID, domain.EntityExecution, g.GroupKey, domain.ActionGroupExecuted, actor, g.UpdatedAt,
			domain.FieldChange{Field: "status", NewValue: domain.GroupSucceeded},
			domain.FieldChange{Field: "order_id", NewValue: receipt.OrderID})
	}
	if err := s.repo.RecordGroupResult(ctx, g, entry); err != nil {
		return g, fmt.Errorf("record group %s: %w", g.GroupKey, err)
	}
	return g, nil
}

func (s *Service) archive(ctx context.Context, actor string, p *domain.CampaignPlan, groups []domain.ExecutionGroup, items []domain.PlanItem) string {
	if s.archiver == nil {
		return ""
	}
	m := domain.ExecutionManifest{
		Plan:       *p,
		Groups:     groups,
		Items:      items,
		ExecutedBy: actor,
		ExecutedAt: *p.ExecutedAt,
	}
	loc, err := s.archiver.ArchiveManifest(ctx, m)
	if err != nil {
		logger.Error("archive execution manifest failed", "plan_id", p.ID, "error", err)
		return ""
	}
	return loc
}

// buildGroups bundles included items by grouping. Groups are ordered by key.
func buildGroups(planID string, grouping domain.ExecutionGrouping, items []domain.PlanItem, now time.Time) []domain.ExecutionGroup {
	byKey := make(map[string]*domain.ExecutionGroup)
	var keys []string
	for i := range items {
		it := &items[i]
		if !it.IsIncluded {
			continue
		}
		key := domain.MasterGroupKey
		switch grouping {
		case domain.GroupByWave:
			key = it.WaveCode
			if key == "" {
				key = domain.UnassignedWave
			}
		case domain.GroupByCampaign:
			key = it.CampaignID
		}
		g, ok := byKey[key]
		if !ok {
			g = &domain.ExecutionGroup{
				PlanID:    planID,
				GroupKey:  key,
				Grouping:  grouping,
				Status:    domain.GroupPending,
				UpdatedAt: now,
			}
			byKey[key] = g
			keys = append(keys, key)
		}
		g.ItemIDs = append(g.ItemIDs, it.ID)
		g.TotalQuantity += it.Quantity
		g.EstimatedCost += it.Cost()
	}

	sort.Strings(keys)
	out := make([]domain.ExecutionGroup, 0, len(keys))
	for _, k := range keys {
		g := byKey[k]
		g.EstimatedCost = round2(g.EstimatedCost)
		out = append(out, *g)
	}
	return out
}
