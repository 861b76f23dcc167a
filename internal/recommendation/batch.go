package recommendation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/retail-planner/internal/domain"
)

// GenerateBatch ranks every campaign for every store. The result maps store
// id to its ranked candidates. Stores are scored in parallel; each worker
// reads the shared snapshot and writes only its own slot.
//
// Only an invalid config or a cancelled context produce an error. Gaps in the
// metrics degrade individual recommendations instead.
func GenerateBatch(ctx context.Context, stores []domain.StorePerformanceMetrics, campaigns []domain.CampaignCreativePerformance, geos []domain.GeographicPattern, cfg Config, evalDate time.Time) (map[string][]domain.CampaignRecommendation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	candidates := dedupeCampaigns(campaigns)
	pop := NewPopulation(candidates)
	geo := NewGeoIndex(geos)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]domain.CampaignRecommendation, len(stores))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	seen := make(map[string]struct{}, len(stores))
	for i := range stores {
		store := &stores[i]
		if _, dup := seen[store.StoreID]; dup {
			continue
		}
		seen[store.StoreID] = struct{}{}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ranked := rankWith(store, candidates, pop, geo, cfg, evalDate)
			mu.Lock()
			out[store.StoreID] = ranked
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
