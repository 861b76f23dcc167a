package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/service/plan"
)

// PlanRepo implements plan.Repository against PostgreSQL.
type PlanRepo struct{ db *sql.DB }

// NewPlanRepo creates a Postgres-backed plan repository.
func NewPlanRepo(db *sql.DB) *PlanRepo { return &PlanRepo{db: db} }

const planColumns = `
	id, name, COALESCE(description,''), status, COALESCE(execution_grouping,''),
	total_stores, total_quantity, estimated_cost, expected_conversions, avg_confidence,
	created_by, COALESCE(approved_by,''), created_at, updated_at, approved_at, executed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*domain.CampaignPlan, error) {
	p := &domain.CampaignPlan{}
	var approvedAt, executedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Status, &p.ExecutionGrouping,
		&p.TotalStores, &p.TotalQuantity, &p.EstimatedCost, &p.ExpectedConversions, &p.AvgConfidence,
		&p.CreatedBy, &p.ApprovedBy, &p.CreatedAt, &p.UpdatedAt, &approvedAt, &executedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ApprovedAt = timePtr(approvedAt)
	p.ExecutedAt = timePtr(executedAt)
	return p, nil
}

func (r *PlanRepo) CreatePlan(ctx context.Context, p *domain.CampaignPlan, items []domain.PlanItem, waves []domain.PlanWave, entry domain.PlanActivityLog) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_plans
				(id, name, description, status, total_stores, total_quantity, estimated_cost,
				 expected_conversions, avg_confidence, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, p.ID, p.Name, p.Description, p.Status, p.TotalStores, p.TotalQuantity, p.EstimatedCost,
			p.ExpectedConversions, p.AvgConfidence, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for _, w := range waves {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO plan_waves
					(id, plan_id, code, name, start_date, end_date, budget,
					 total_stores, total_quantity, estimated_cost, expected_conversions)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, w.ID, w.PlanID, w.Code, w.Name, w.StartDate, w.EndDate, w.Budget,
				w.TotalStores, w.TotalQuantity, w.EstimatedCost, w.ExpectedConversions); err != nil {
				return fmt.Errorf("insert wave %s: %w", w.Code, err)
			}
		}

		for _, it := range items {
			snap, err := json.Marshal(it.AI)
			if err != nil {
				return fmt.Errorf("encode ai snapshot: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO plan_items
					(id, plan_id, store_id, campaign_id, campaign_name, quantity, unit_cost,
					 wave_code, ai_snapshot, is_included, is_overridden, override_notes,
					 created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), $9, $10, $11, $12, $13, $14)
			`, it.ID, it.PlanID, it.StoreID, it.CampaignID, it.CampaignName, it.Quantity, it.UnitCost,
				it.WaveCode, string(snap), it.IsIncluded, it.IsOverridden, it.OverrideNotes,
				it.CreatedAt, it.UpdatedAt); err != nil {
				return fmt.Errorf("insert item for store %s: %w", it.StoreID, err)
			}
		}

		return insertActivity(ctx, tx, entry)
	})
}

func (r *PlanRepo) GetPlan(ctx context.Context, id string) (*domain.CampaignPlan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx, `SELECT`+planColumns+` FROM campaign_plans WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, plan.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func (r *PlanRepo) ListPlans(ctx context.Context, f plan.ListFilter) ([]domain.CampaignPlan, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_plans WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count plans: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := fmt.Sprintf(`SELECT%s FROM campaign_plans WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		planColumns, cond, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	out := []domain.CampaignPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan plan: %w", err)
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// ListItems joins the store directory for display fields. Items whose store
// has since left the directory are still returned.
func (r *PlanRepo) ListItems(ctx context.Context, planID string) ([]domain.PlanItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.plan_id, i.store_id, COALESCE(s.store_number,''), COALESCE(s.name,''),
		       i.campaign_id, COALESCE(i.campaign_name,''), i.quantity, i.unit_cost,
		       COALESCE(i.wave_code,''), i.ai_snapshot, i.is_included, i.is_overridden,
		       COALESCE(i.override_notes,''), i.created_at, i.updated_at
		FROM plan_items i
		LEFT JOIN retail_stores s ON s.id = i.store_id
		WHERE i.plan_id = $1
		ORDER BY s.store_number NULLS LAST, i.store_id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := []domain.PlanItem{}
	for rows.Next() {
		var it domain.PlanItem
		var snap []byte
		if err := rows.Scan(
			&it.ID, &it.PlanID, &it.StoreID, &it.StoreNumber, &it.StoreName,
			&it.CampaignID, &it.CampaignName, &it.Quantity, &it.UnitCost,
			&it.WaveCode, &snap, &it.IsIncluded, &it.IsOverridden,
			&it.OverrideNotes, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if err := json.Unmarshal(snap, &it.AI); err != nil {
			return nil, fmt.Errorf("decode ai snapshot for item %s: %w", it.ID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *PlanRepo) ListWaves(ctx context.Context, planID string) ([]domain.PlanWave, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plan_id, code, COALESCE(name,''), start_date, end_date, budget,
		       total_stores, total_quantity, estimated_cost, expected_conversions
		FROM plan_waves
		WHERE plan_id = $1
		ORDER BY start_date NULLS LAST, code
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list waves: %w", err)
	}
	defer rows.Close()

	out := []domain.PlanWave{}
	for rows.Next() {
		var w domain.PlanWave
		var start, end sql.NullTime
		if err := rows.Scan(
			&w.ID, &w.PlanID, &w.Code, &w.Name, &start, &end, &w.Budget,
			&w.TotalStores, &w.TotalQuantity, &w.EstimatedCost, &w.ExpectedConversions,
		); err != nil {
			return nil, fmt.Errorf("scan wave: %w", err)
		}
		w.StartDate, w.EndDate = timePtr(start), timePtr(end)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *PlanRepo) ListActivity(ctx context.Context, planID string, f plan.ActivityFilter) ([]domain.PlanActivityLog, error) {
	q := `
		SELECT id, plan_id, entity_type, entity_id, action, actor, changes, created_at
		FROM plan_activity_log
		WHERE plan_id = $1`
	args := []any{planID}
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		q += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if f.EntityID != "" {
		args = append(args, f.EntityID)
		q += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	q += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []domain.PlanActivityLog{}
	for rows.Next() {
		var e domain.PlanActivityLog
		var changes []byte
		if err := rows.Scan(&e.ID, &e.PlanID, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &changes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if err := json.Unmarshal(changes, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode changes for entry %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveItemChange re-checks the draft status inside the transaction so an
// approval that slipped past the lock cannot be overwritten.
func (r *PlanRepo) SaveItemChange(ctx context.Context, m plan.ItemMutation) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		it := m.Item
		res, err := tx.ExecContext(ctx, `
			UPDATE plan_items
			SET campaign_id = $1, campaign_name = $2, quantity = $3, wave_code = NULLIF($4,''),
			    is_included = $5, is_overridden = $6, override_notes = $7, updated_at = $8
			WHERE id = $9 AND plan_id = $10
		`, it.CampaignID, it.CampaignName, it.Quantity, it.WaveCode,
			it.IsIncluded, it.IsOverridden, it.OverrideNotes, m.UpdatedAt, it.ID, m.PlanID)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return plan.ErrItemNotFound
		}

		t := m.Totals
		res, err = tx.ExecContext(ctx, `
			UPDATE campaign_plans
			SET total_stores = $1, total_quantity = $2, estimated_cost = $3,
			    expected_conversions = $4, avg_confidence = $5, updated_at = $6
			WHERE id = $7 AND status = 'draft'
		`, t.TotalStores, t.TotalQuantity, t.EstimatedCost, t.ExpectedConversions, t.AvgConfidence,
			m.UpdatedAt, m.PlanID)
		if err != nil {
			return fmt.Errorf("update plan totals: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.stateError(ctx, tx, m.PlanID, domain.PlanDraft, "edit")
		}

		for _, w := range m.Waves {
			if _, err := tx.ExecContext(ctx, `
				UPDATE plan_waves
				SET total_stores = $1, total_quantity = $2, estimated_cost = $3, expected_conversions = $4
				WHERE id = $5
			`, w.TotalStores, w.TotalQuantity, w.EstimatedCost, w.ExpectedConversions, w.ID); err != nil {
				return fmt.Errorf("update wave %s: %w", w.Code, err)
			}
		}

		return insertActivity(ctx, tx, m.Entry)
	})
}

func (r *PlanRepo) TransitionPlan(ctx context.Context, p *domain.CampaignPlan, from domain.PlanStatus, entry domain.PlanActivityLog) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE campaign_plans
			SET status = $1, approved_by = NULLIF($2,''), approved_at = $3, executed_at = $4, updated_at = $5
			WHERE id = $6 AND status = $7
		`, p.Status, p.ApprovedBy, p.ApprovedAt, p.ExecutedAt, p.UpdatedAt, p.ID, from)
		if err != nil {
			return fmt.Errorf("transition plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.stateError(ctx, tx, p.ID, from, string(entry.Action))
		}
		return insertActivity(ctx, tx, entry)
	})
}

// DeletePlan relies on ON DELETE CASCADE for items, waves and groups. The
// activity log has no foreign key and keeps the plan's history.
func (r *PlanRepo) DeletePlan(ctx context.Context, id string, entry domain.PlanActivityLog) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM campaign_plans WHERE id = $1 AND status = 'draft'`, id)
		if err != nil {
			return fmt.Errorf("delete plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return r.stateError(ctx, tx, id, domain.PlanDraft, "delete")
		}
		return insertActivity(ctx, tx, entry)
	})
}

func (r *PlanRepo) ListExecutionGroups(ctx context.Context, planID string) ([]domain.ExecutionGroup, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT plan_id, group_key, grouping, status, COALESCE(order_id,''), item_ids,
		       total_quantity, estimated_cost, attempts, COALESCE(last_error,''), updated_at
		FROM plan_execution_groups
		WHERE plan_id = $1
		ORDER BY group_key
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list execution groups: %w", err)
	}
	defer rows.Close()

	out := []domain.ExecutionGroup{}
	for rows.Next() {
		var g domain.ExecutionGroup
		if err := rows.Scan(
			&g.PlanID, &g.GroupKey, &g.Grouping, &g.Status, &g.OrderID, pq.Array(&g.ItemIDs),
			&g.TotalQuantity, &g.EstimatedCost, &g.Attempts, &g.LastError, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PlanRepo) CreateExecutionGroups(ctx context.Context, planID string, grouping domain.ExecutionGrouping, groups []domain.ExecutionGroup) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE campaign_plans SET execution_grouping = $1
			WHERE id = $2 AND execution_grouping IS NULL
		`, grouping, planID)
		if err != nil {
			return fmt.Errorf("set grouping: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &plan.ValidationError{Field: "grouping", Reason: "is already fixed for this plan"}
		}
		for _, g := range groups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO plan_execution_groups
					(plan_id, group_key, grouping, status, item_ids, total_quantity,
					 estimated_cost, attempts, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, g.PlanID, g.GroupKey, g.Grouping, g.Status, pq.Array(g.ItemIDs), g.TotalQuantity,
				g.EstimatedCost, g.Attempts, g.UpdatedAt); err != nil {
				return fmt.Errorf("insert execution group %s: %w", g.GroupKey, err)
			}
		}
		return nil
	})
}

func (r *PlanRepo) RecordGroupResult(ctx context.Context, g domain.ExecutionGroup, entry domain.PlanActivityLog) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// a succeeded group is terminal
		res, err := tx.ExecContext(ctx, `
			UPDATE plan_execution_groups
			SET status = $1, order_id = NULLIF($2,''), attempts = $3, last_error = NULLIF($4,''), updated_at = $5
			WHERE plan_id = $6 AND group_key = $7 AND status <> 'succeeded'
		`, g.Status, g.OrderID, g.Attempts, g.LastError, g.UpdatedAt, g.PlanID, g.GroupKey)
		if err != nil {
			return fmt.Errorf("update execution group: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("execution group %s/%s is missing or already succeeded", g.PlanID, g.GroupKey)
		}
		return insertActivity(ctx, tx, entry)
	})
}

// stateError reads the current status to explain why a guarded update matched nothing.
func (r *PlanRepo) stateError(ctx context.Context, tx *sql.Tx, planID string, required domain.PlanStatus, action string) error {
	var current domain.PlanStatus
	err := tx.QueryRowContext(ctx, `SELECT status FROM campaign_plans WHERE id = $1`, planID).Scan(&current)
	if err == sql.ErrNoRows {
		return plan.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read plan status: %w", err)
	}
	return &plan.StateError{PlanID: planID, Current: current, Required: required, Action: action}
}

// insertActivity is the only write path to plan_activity_log.
func insertActivity(ctx context.Context, tx *sql.Tx, e domain.PlanActivityLog) error {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_activity_log (id, plan_id, entity_type, entity_id, action, actor, changes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.PlanID, e.EntityType, e.EntityID, e.Action, e.Actor, string(changes), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
