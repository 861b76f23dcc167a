package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/pkg/distlock"
	"github.com/ignite/retail-planner/internal/pkg/logger"
)

// Service implements plan business logic. Mutations of one plan are
// serialised through a per-plan lock; reads go straight to the repository.
type Service struct {
	repo            Repository
	locks           distlock.Factory
	orders          OrderCreator
	archiver        Archiver
	lockWait        time.Duration
	defaultUnitCost float64
	now             func() time.Time
	newID           func() string
}

// Option customises a Service.
type Option func(*Service)

// WithOrderCreator sets the order system used by Execute.
func WithOrderCreator(o OrderCreator) Option { return func(s *Service) { s.orders = o } }

// WithArchiver enables execution manifest archiving.
func WithArchiver(a Archiver) Option { return func(s *Service) { s.archiver = a } }

// WithLockWait bounds how long a mutation waits for the plan lock.
func WithLockWait(d time.Duration) Option { return func(s *Service) { s.lockWait = d } }

// WithDefaultUnitCost sets the per-piece cost used when an item has none.
func WithDefaultUnitCost(c float64) Option { return func(s *Service) { s.defaultUnitCost = c } }

// WithClock overrides the service clock.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a plan service. A nil lock factory falls back to an
// in-process lock table.
func NewService(repo Repository, locks distlock.Factory, opts ...Option) *Service {
	if locks == nil {
		locks = distlock.NewLocalFactory()
	}
	s := &Service{
		repo:     repo,
		locks:    locks,
		lockWait: 5 * time.Second,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds a new plan built from accepted recommendations.
type CreateInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Items       []ItemInput `json:"items"`
	Waves       []WaveInput `json:"waves"`
}

// ItemInput is one accepted recommendation.
type ItemInput struct {
	Recommendation domain.CampaignRecommendation `json:"recommendation"`
	UnitCost       float64                       `json:"unit_cost"`
	WaveCode       string                        `json:"wave_code"`
}

// WaveInput defines an optional delivery wave.
type WaveInput struct {
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Budget    float64    `json:"budget"`
}

// Get returns a single plan.
func (s *Service) Get(ctx context.Context, id string) (*domain.CampaignPlan, error) {
	return s.repo.GetPlan(ctx, id)
}

// List returns plans matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.CampaignPlan, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListPlans(ctx, f)
}

// Items returns the plan's items with store display fields.
func (s *Service) Items(ctx context.Context, planID string) ([]domain.PlanItem, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, planID)
}

// Waves returns the plan's waves with their rollups.
func (s *Service) Waves(ctx context.Context, planID string) ([]domain.PlanWave, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.repo.ListWaves(ctx, planID)
}

// Activity returns the plan's audit trail, oldest first.
func (s *Service) Activity(ctx context.Context, planID string) ([]domain.PlanActivityLog, error) {
	if _, err := s.repo.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.repo.ListActivity(ctx, planID, ActivityFilter{})
}

// Create validates input and persists a draft plan. Each item starts on its
// frozen AI recommendation.
func (s *Service) Create(ctx context.Context, actor string, in CreateInput) (*domain.CampaignPlan, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name", "is required")
	}

	now := s.now().UTC()
	p := &domain.CampaignPlan{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.PlanDraft,
		CreatedBy:   actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	waves := make([]domain.PlanWave, 0, len(in.Waves))
	codes := make(map[string]struct{}, len(in.Waves))
	for i, w := range in.Waves {
		code := strings.TrimSpace(w.Code)
		field := fmt.Sprintf("waves[%d]", i)
		switch {
		case code == "":
			return nil, invalid(field+".code", "is required")
		case code == domain.UnassignedWave:
			return nil, invalid(field+".code", "is reserved")
		case w.Budget < 0:
			return nil, invalid(field+".budget", "must not be negative")
		case w.StartDate != nil && w.EndDate != nil && w.EndDate.Before(*w.StartDate):
			return nil, invalid(field+".end_date", "is before start_date")
		}
		if _, dup := codes[code]; dup {
			return nil, invalid(field+".code", "duplicates "+code)
		}
		codes[code] = struct{}{}
		waves = append(waves, domain.PlanWave{
			ID: s.newID(), PlanID: p.ID, Code: code, Name: w.Name,
			StartDate: w.StartDate, EndDate: w.EndDate, Budget: w.Budget,
		})
	}

	items := make([]domain.PlanItem, 0, len(in.Items))
	stores := make(map[string]struct{}, len(in.Items))
	for i, it := range in.Items {
		rec := it.Recommendation
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case rec.StoreID == "":
			return nil, invalid(field+".store_id", "is required")
		case rec.CampaignID == "":
			return nil, invalid(field+".campaign_id", "is required")
		case rec.RecommendedQuantity <= 0:
			return nil, invalid(field+".quantity", "must be positive")
		case it.UnitCost < 0:
			return nil, invalid(field+".unit_cost", "must not be negative")
		}
		if _, dup := stores[rec.StoreID]; dup {
			return nil, invalid(field+".store_id", "appears more than once")
		}
		stores[rec.StoreID] = struct{}{}
		wave := strings.TrimSpace(it.WaveCode)
		if wave != "" {
			if _, ok := codes[wave]; !ok {
				return nil, invalid(field+".wave_code", "references unknown wave "+wave)
			}
		}

		unitCost := it.UnitCost
		if unitCost == 0 {
			unitCost = s.defaultUnitCost
		}
		snap := domain.SnapshotOf(rec)
		items = append(items, domain.PlanItem{
			ID:           s.newID(),
			PlanID:       p.ID,
			StoreID:      rec.StoreID,
			CampaignID:   snap.CampaignID,
			CampaignName: snap.CampaignName,
			Quantity:     snap.Quantity,
			UnitCost:     unitCost,
			WaveCode:     wave,
			AI:           snap,
			IsIncluded:   true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	p.PlanTotals = computeTotals(items)
	waves = computeWaveTotals(waves, items)

	entry := s.entry(p.ID, domain.EntityPlan, p.ID, domain.ActionPlanCreated, actor, now,
		domain.FieldChange{Field: "status", NewValue: domain.PlanDraft},
		domain.FieldChange{Field: "items", NewValue: len(items)},
		domain.FieldChange{Field: "waves", NewValue: len(waves)},
	)
	if err := s.repo.CreatePlan(ctx, p, items, waves, entry); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	logger.Info("plan created", "plan_id", p.ID, "items", len(items), "waves", len(waves), "actor", actor)
	return p, nil
}

// UpdateItem applies a draft edit. A change that alters nothing returns the
// item as stored and writes no audit entry.
func (s *Service) UpdateItem(ctx context.Context, actor, planID, itemID string, ch ItemChanges) (*domain.PlanItem, error) {
	var out *domain.PlanItem
	err := s.withPlanLock(ctx, planID, func(ctx context.Context) error {
		p, err := s.repo.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if err := requireStatus(p, domain.PlanDraft, "edit"); err != nil {
			return err
		}

		items, err := s.repo.ListItems(ctx, planID)
		if err != nil {
			return err
		}
		waves, err := s.repo.ListWaves(ctx, planID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range items {
			if items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}

		codes := make(map[string]struct{}, len(waves))
		for _, w := range waves {
			codes[w.Code] = struct{}{}
		}
		updated, diff, err := applyChanges(items[idx], ch, codes)
		if err != nil {
			return err
		}
		if len(diff) == 0 {
			out = &items[idx]
			return nil
		}

		now := s.now().UTC()
		updated.UpdatedAt = now
		items[idx] = updated
		m := ItemMutation{
			PlanID:    planID,
			Item:      updated,
			Totals:    computeTotals(items),
			Waves:     computeWaveTotals(waves, items),
			Entry:     s.entry(planID, domain.EntityPlanItem, itemID, domain.ActionItemUpdated, actor, now, diff...),
			UpdatedAt: now,
		}
		if err := s.repo.SaveItemChange(ctx, m); err != nil {
			return fmt.Errorf("save item %s: %w", itemID, err)
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Approve freezes a draft plan that has at least one included store.
func (s *Service) Approve(ctx context.Context, actor, planID string) (*domain.CampaignPlan, error) {
	var out *domain.CampaignPlan
	err := s.withPlanLock(ctx, planID, func(ctx context.Context) error {
		p, err := s.repo.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if err := requireStatus(p, domain.PlanDraft, "approve"); err != nil {
			return err
		}
		if p.TotalStores == 0 {
			return invalid("total_stores", "must be greater than zero to approve")
		}

		now := s.now().UTC()
		p.Status = domain.PlanApproved
		p.ApprovedBy = actor
		p.ApprovedAt = &now
		p.UpdatedAt = now
		entry := s.entry(planID, domain.EntityPlan, planID, domain.ActionPlanApproved, actor, now,
			domain.FieldChange{Field: "status", OldValue: domain.PlanDraft, NewValue: domain.PlanApproved})
		if err := s.repo.TransitionPlan(ctx, p, domain.PlanDraft, entry); err != nil {
			return err
		}
		logger.Info("plan approved", "plan_id", planID, "stores", p.TotalStores, "actor", actor)
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a draft plan with its items and waves. The audit trail is
// kept and gains a deletion entry.
func (s *Service) Delete(ctx context.Context, actor, planID string) error {
	return s.withPlanLock(ctx, planID, func(ctx context.Context) error {
		p, err := s.repo.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if err := requireStatus(p, domain.PlanDraft, "delete"); err != nil {
			return err
		}
		entry := s.entry(planID, domain.EntityPlan, planID, domain.ActionPlanDeleted, actor, s.now().UTC(),
			domain.FieldChange{Field: "name", OldValue: p.Name},
			domain.FieldChange{Field: "total_stores", OldValue: p.TotalStores})
		if err := s.repo.DeletePlan(ctx, planID, entry); err != nil {
			return err
		}
		logger.Info("plan deleted", "plan_id", planID, "actor", actor)
		return nil
	})
}

func (s *Service) withPlanLock(ctx context.Context, planID string, fn func(context.Context) error) error {
	err := distlock.Do(ctx, s.locks.Lock("plan:"+planID), s.lockWait, fn)
	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		return fmt.Errorf("%w: %s", ErrLocked, planID)
	case errors.Is(err, distlock.ErrLockLost):
		return fmt.Errorf("%w: %s: lease lost mid-operation: %v", ErrLocked, planID, err)
	}
	return err
}

func (s *Service) entry(planID string, et domain.EntityType, entityID string, action domain.ActivityAction, actor string, at time.Time, changes ...domain.FieldChange) domain.PlanActivityLog {
	if changes == nil {
		changes = []domain.FieldChange{}
	}
	return domain.PlanActivityLog{
		ID:         s.newID(),
		PlanID:     planID,
		EntityType: et,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Changes:    changes,
		CreatedAt:  at,
	}
}
