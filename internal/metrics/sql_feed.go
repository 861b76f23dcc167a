package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/retail-planner/internal/domain"
)

// Dialect selects placeholder syntax for the warehouse the feed reads from.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSnowflake
)

func (d Dialect) placeholder(n int) string {
	if d == DialectSnowflake {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// SQLFeed reads the metrics pipeline's output tables over database/sql.
type SQLFeed struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLFeed creates a feed over an open connection pool.
func NewSQLFeed(db *sql.DB, dialect Dialect) *SQLFeed {
	return &SQLFeed{db: db, dialect: dialect}
}

// Close closes the underlying pool.
func (f *SQLFeed) Close() error {
	if f.db != nil {
		return f.db.Close()
	}
	return nil
}

// Ping tests the connection.
func (f *SQLFeed) Ping(ctx context.Context) error {
	return f.db.PingContext(ctx)
}

func (f *SQLFeed) StorePerformance(ctx context.Context, windowDays int) ([]domain.StorePerformanceMetrics, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT store_id, store_number, store_name, region, state, city,
		       total_campaigns, avg_conversion_rate, recent_conversion_rate, recent_window_days
		FROM store_performance_metrics
		WHERE window_days = `+f.dialect.placeholder(1)+`
		ORDER BY store_id`, windowDays)
	if err != nil {
		return nil, fmt.Errorf("query store metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.StorePerformanceMetrics
	for rows.Next() {
		var m domain.StorePerformanceMetrics
		var number, name, region, state, city sql.NullString
		if err := rows.Scan(&m.StoreID, &number, &name, &region, &state, &city,
			&m.TotalCampaigns, &m.AvgConversionRate, &m.RecentConversionRate, &m.RecentWindowDays); err != nil {
			return nil, fmt.Errorf("scan store metrics: %w", err)
		}
		m.StoreNumber, m.StoreName = number.String, name.String
		m.Region, m.State, m.City = region.String, state.String, city.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (f *SQLFeed) CampaignPerformance(ctx context.Context, windowDays int) ([]domain.CampaignCreativePerformance, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT campaign_id, campaign_name, conversion_rate, sample_size, total_pieces,
		       COALESCE(peak_month, 0)
		FROM campaign_creative_performance
		WHERE window_days = `+f.dialect.placeholder(1)+`
		ORDER BY campaign_id`, windowDays)
	if err != nil {
		return nil, fmt.Errorf("query campaign metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.CampaignCreativePerformance
	for rows.Next() {
		var c domain.CampaignCreativePerformance
		if err := rows.Scan(&c.CampaignID, &c.CampaignName, &c.ConversionRate,
			&c.SampleSize, &c.TotalPieces, &c.PeakMonth); err != nil {
			return nil, fmt.Errorf("scan campaign metrics: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (f *SQLFeed) GeographicPatterns(ctx context.Context, windowDays int) ([]domain.GeographicPattern, error) {
	rows, err := f.db.QueryContext(ctx, `
		SELECT region, COALESCE(state, ''), avg_conversion_rate, store_count, campaign_rates
		FROM geographic_patterns
		WHERE window_days = `+f.dialect.placeholder(1)+`
		ORDER BY region, state`, windowDays)
	if err != nil {
		return nil, fmt.Errorf("query geographic patterns: %w", err)
	}
	defer rows.Close()

	var out []domain.GeographicPattern
	for rows.Next() {
		var g domain.GeographicPattern
		var rates sql.NullString
		if err := rows.Scan(&g.Region, &g.State, &g.AvgConversionRate, &g.StoreCount, &rates); err != nil {
			return nil, fmt.Errorf("scan geographic pattern: %w", err)
		}
		if rates.Valid && rates.String != "" {
			if err := json.Unmarshal([]byte(rates.String), &g.CampaignRates); err != nil {
				return nil, fmt.Errorf("decode campaign rates for %s/%s: %w", g.Region, g.State, err)
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
