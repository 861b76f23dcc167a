package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/service/plan"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var planCols = []string{
	"id", "name", "description", "status", "execution_grouping",
	"total_stores", "total_quantity", "estimated_cost", "expected_conversions", "avg_confidence",
	"created_by", "approved_by", "created_at", "updated_at", "approved_at", "executed_at",
}

func TestPlanRepo_GetPlan(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewPlanRepo(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM campaign_plans WHERE id = \$1`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(planCols).AddRow(
			"p-1", "Spring", "", "approved", "",
			2, 2300, 1150.0, 92.0, 0.7,
			"alice", "bob", now, now, now, nil,
		))

	p, err := repo.GetPlan(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanApproved, p.Status)
	assert.Equal(t, 2300, p.TotalQuantity)
	require.NotNil(t, p.ApprovedAt)
	assert.Nil(t, p.ExecutedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_GetPlanNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery(`FROM campaign_plans`).WillReturnError(sql.ErrNoRows)

	_, err := NewPlanRepo(db).GetPlan(context.Background(), "missing")
	assert.ErrorIs(t, err, plan.ErrNotFound)
}

func TestPlanRepo_ListItemsDecodesSnapshot(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	snap := `{"campaign_id":"c-1","campaign_name":"Spring","quantity":1300,"overall_score":0.778,` +
		`"confidence_level":"high","reasoning":[{"component":"store_performance","text":"Strong"}],` +
		`"risk_factors":[],"expected_conversion_rate":3.6,"expected_conversions":46.8}`

	mock.ExpectQuery(`LEFT JOIN retail_stores`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "plan_id", "store_id", "store_number", "name", "campaign_id", "campaign_name",
			"quantity", "unit_cost", "wave_code", "ai_snapshot", "is_included", "is_overridden",
			"override_notes", "created_at", "updated_at",
		}).AddRow("i-1", "p-1", "s-1", "0101", "Main Street", "c-2", "Summer",
			900, 0.5, "W1", []byte(snap), true, true, "manager call", now, now))

	items, err := NewPlanRepo(db).ListItems(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "Main Street", it.StoreName)
	assert.Equal(t, "c-1", it.AI.CampaignID)
	assert.Equal(t, 1300, it.AI.Quantity)
	assert.Equal(t, domain.ConfidenceHigh, it.AI.ConfidenceLevel)
	assert.True(t, it.Diverges())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_SaveItemChangeIsAtomic(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	m := plan.ItemMutation{
		PlanID: "p-1",
		Item:   domain.PlanItem{ID: "i-1", PlanID: "p-1", CampaignID: "c-2", Quantity: 900, IsIncluded: true, IsOverridden: true},
		Totals: domain.PlanTotals{TotalStores: 1, TotalQuantity: 900},
		Waves:  []domain.PlanWave{{ID: "w-1", Code: "W1", TotalStores: 1, TotalQuantity: 900}},
		Entry: domain.PlanActivityLog{
			ID: "a-1", PlanID: "p-1", EntityType: domain.EntityPlanItem, EntityID: "i-1",
			Action: domain.ActionItemUpdated, Actor: "alice",
			Changes:   []domain.FieldChange{{Field: "quantity", OldValue: 1300, NewValue: 900}},
			CreatedAt: now,
		},
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE plan_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_plans`).
		WithArgs(1, 900, 0.0, 0.0, 0.0, now, "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE plan_waves`).WithArgs(1, 900, 0.0, 0.0, "w-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO plan_activity_log`).
		WithArgs("a-1", "p-1", domain.EntityPlanItem, "i-1", domain.ActionItemUpdated, "alice",
			`[{"field":"quantity","old_value":1300,"new_value":900}]`, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPlanRepo(db).SaveItemChange(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_SaveItemChangeRollsBackOnApprovedPlan(t *testing.T) {
	db, mock := setupTestDB(t)
	m := plan.ItemMutation{PlanID: "p-1", Item: domain.PlanItem{ID: "i-1"}, UpdatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE plan_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE campaign_plans`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM campaign_plans`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectRollback()

	err := NewPlanRepo(db).SaveItemChange(context.Background(), m)
	var serr *plan.StateError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, domain.PlanApproved, serr.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_TransitionPlan(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	p := &domain.CampaignPlan{ID: "p-1", Status: domain.PlanApproved, ApprovedBy: "bob", ApprovedAt: &now, UpdatedAt: now}
	entry := domain.PlanActivityLog{ID: "a-2", PlanID: "p-1", EntityType: domain.EntityPlan, EntityID: "p-1",
		Action: domain.ActionPlanApproved, Actor: "bob", Changes: []domain.FieldChange{}, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE campaign_plans\s+SET status`).
		WithArgs(domain.PlanApproved, "bob", now, nil, now, "p-1", domain.PlanDraft).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO plan_activity_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPlanRepo(db).TransitionPlan(context.Background(), p, domain.PlanDraft, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_CreateExecutionGroupsOnce(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE campaign_plans SET execution_grouping`).
		WithArgs(domain.GroupByWave, "p-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := NewPlanRepo(db).CreateExecutionGroups(context.Background(), "p-1", domain.GroupByWave, nil)
	assert.ErrorIs(t, err, plan.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_ListActivityFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()

	mock.ExpectQuery(`FROM plan_activity_log\s+WHERE plan_id = \$1 AND entity_type = \$2 AND entity_id = \$3 ORDER BY seq`).
		WithArgs("p-1", domain.EntityPlanItem, "i-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_id", "entity_type", "entity_id", "action", "actor", "changes", "created_at"}).
			AddRow("a-1", "p-1", "plan_item", "i-1", "item.updated", "alice",
				[]byte(`[{"field":"campaign_id","old_value":"c-1","new_value":"c-2"}]`), now))

	log, err := NewPlanRepo(db).ListActivity(context.Background(), "p-1",
		plan.ActivityFilter{EntityType: domain.EntityPlanItem, EntityID: "i-1"})
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Len(t, log[0].Changes, 1)
	assert.Equal(t, "c-2", log[0].Changes[0].NewValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_DeletePlanKeepsAuditTrail(t *testing.T) {
	db, mock := setupTestDB(t)
	now := time.Now()
	entry := domain.PlanActivityLog{ID: "a-9", PlanID: "p-1", EntityType: domain.EntityPlan, EntityID: "p-1",
		Action: domain.ActionPlanDeleted, Actor: "alice", Changes: []domain.FieldChange{}, CreatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM campaign_plans WHERE id = \$1 AND status = 'draft'`).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO plan_activity_log`).
		WithArgs("a-9", "p-1", domain.EntityPlan, "p-1", domain.ActionPlanDeleted, "alice", "[]", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPlanRepo(db).DeletePlan(context.Background(), "p-1", entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepo_DeletePlanRejectsApproved(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM campaign_plans`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT status FROM campaign_plans`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectRollback()

	err := NewPlanRepo(db).DeletePlan(context.Background(), "p-1", domain.PlanActivityLog{})
	var serr *plan.StateError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, "delete", serr.Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}
