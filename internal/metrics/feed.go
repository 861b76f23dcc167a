// Package metrics reads the precomputed performance snapshot the planner
// scores against. How the numbers are derived from raw response events is
// owned by the metrics pipeline; this package only reads its output tables.
package metrics

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/retail-planner/internal/domain"
)

// Feed supplies read-only performance inputs for a lookback window.
// Implementations must be safe for concurrent use.
type Feed interface {
	StorePerformance(ctx context.Context, windowDays int) ([]domain.StorePerformanceMetrics, error)
	CampaignPerformance(ctx context.Context, windowDays int) ([]domain.CampaignCreativePerformance, error)
	GeographicPatterns(ctx context.Context, windowDays int) ([]domain.GeographicPattern, error)
}

// Snapshot is an immutable in-memory copy of the feed for one request.
type Snapshot struct {
	WindowDays int                                  `json:"window_days"`
	FetchedAt  time.Time                            `json:"fetched_at"`
	Stores     []domain.StorePerformanceMetrics     `json:"stores"`
	Campaigns  []domain.CampaignCreativePerformance `json:"campaigns"`
	Geo        []domain.GeographicPattern           `json:"geo"`
}

// LoadSnapshot fetches all three inputs concurrently. It is the only point
// where batch generation waits on the feed.
func LoadSnapshot(ctx context.Context, feed Feed, windowDays int) (*Snapshot, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window days must be positive, got %d", windowDays)
	}
	snap := &Snapshot{WindowDays: windowDays, FetchedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stores, err := feed.StorePerformance(gctx, windowDays)
		if err != nil {
			return fmt.Errorf("store performance: %w", err)
		}
		snap.Stores = stores
		return nil
	})
	g.Go(func() error {
		campaigns, err := feed.CampaignPerformance(gctx, windowDays)
		if err != nil {
			return fmt.Errorf("campaign performance: %w", err)
		}
		snap.Campaigns = campaigns
		return nil
	})
	g.Go(func() error {
		geo, err := feed.GeographicPatterns(gctx, windowDays)
		if err != nil {
			return fmt.Errorf("geographic patterns: %w", err)
		}
		snap.Geo = geo
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Store returns the metrics for one store, or nil.
func (s *Snapshot) Store(storeID string) *domain.StorePerformanceMetrics {
	for i := range s.Stores {
		if s.Stores[i].StoreID == storeID {
			return &s.Stores[i]
		}
	}
	return nil
}
