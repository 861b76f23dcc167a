package metrics

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestSQLFeed_StorePerformance(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM store_performance_metrics\s+WHERE window_days = \$1`).
		WithArgs(90).
		WillReturnRows(sqlmock.NewRows([]string{
			"store_id", "store_number", "store_name", "region", "state", "city",
			"total_campaigns", "avg_conversion_rate", "recent_conversion_rate", "recent_window_days",
		}).
			AddRow("s1", "101", "Portland Central", "West", "OR", "Portland", 12, 3.0, 4.2, 30).
			AddRow("s2", nil, nil, "South", "FL", nil, 0, 0.0, 0.0, 30))

	feed := NewSQLFeed(db, DialectPostgres)
	stores, err := feed.StorePerformance(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "Portland Central", stores[0].StoreName)
	assert.Equal(t, 4.2, stores[0].RecentConversionRate)
	assert.Equal(t, "", stores[1].StoreName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFeed_SnowflakePlaceholders(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM campaign_creative_performance\s+WHERE window_days = \?`).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{
			"campaign_id", "campaign_name", "conversion_rate", "sample_size", "total_pieces", "peak_month",
		}).AddRow("c1", "Spring Sale", 3.8, 40, 52000, 4))

	feed := NewSQLFeed(db, DialectSnowflake)
	campaigns, err := feed.CampaignPerformance(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, 4, campaigns[0].PeakMonth)
	assert.Equal(t, 40, campaigns[0].SampleSize)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFeed_GeographicPatterns(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM geographic_patterns`).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{
			"region", "state", "avg_conversion_rate", "store_count", "campaign_rates",
		}).
			AddRow("West", "", 3.1, 40, `{"c1":3.9}`).
			AddRow("West", "OR", 3.4, 8, nil))

	feed := NewSQLFeed(db, DialectPostgres)
	geo, err := feed.GeographicPatterns(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, geo, 2)
	assert.Equal(t, 3.9, geo[0].CampaignRates["c1"])
	assert.False(t, geo[0].IsStateLevel())
	assert.True(t, geo[1].IsStateLevel())
	assert.Nil(t, geo[1].CampaignRates)
}

func TestSQLFeed_QueryError(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`FROM store_performance_metrics`).WillReturnError(errors.New("connection reset"))

	_, err := NewSQLFeed(db, DialectPostgres).StorePerformance(context.Background(), 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query store metrics")
}

func TestSnowflakeDSN(t *testing.T) {
	cfg := SnowflakeConfig{
		Account: "acme-xy123", User: "planner", Password: "pw",
		Database: "RETAIL", Schema: "METRICS", Warehouse: "REPORTING",
	}
	assert.Equal(t, "planner:pw@acme-xy123/RETAIL/METRICS?warehouse=REPORTING", cfg.DSN())

	cfg.Warehouse = ""
	assert.Equal(t, "planner:pw@acme-xy123/RETAIL/METRICS", cfg.DSN())
}
