package recommendation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/retail-planner/internal/domain"
	"github.com/ignite/retail-planner/internal/metrics"
	"github.com/ignite/retail-planner/internal/pkg/logger"
)

// ErrStoreNotFound is returned when a store is absent from the metrics snapshot.
var ErrStoreNotFound = errors.New("store not found in metrics snapshot")

// Engine serves batch recommendation requests: it loads one metrics snapshot,
// scores it, and applies view filters.
type Engine struct {
	feed     metrics.Feed
	cache    BatchCache
	cacheTTL time.Duration
	cfg      Config
	policy   Policy
	now      func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithBatchCache enables caching of unfiltered batches.
func WithBatchCache(c BatchCache, ttl time.Duration) EngineOption {
	return func(e *Engine) {
		e.cache = c
		e.cacheTTL = ttl
	}
}

// WithClock overrides the clock used for default evaluation dates.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates cfg and builds an engine over feed.
func NewEngine(feed metrics.Feed, cfg Config, policy Policy, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		feed:     feed,
		cfg:      cfg,
		policy:   policy,
		cacheTTL: 15 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the scoring config in use.
func (e *Engine) Config() Config { return e.cfg }

// BatchRequest selects the snapshot window, evaluation date and view filter.
type BatchRequest struct {
	DaysBack       int
	EvaluationDate time.Time // zero means today
	Filter         Filter
}

// BatchResponse is the filtered review view.
type BatchResponse struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	EvaluationDate    time.Time      `json:"evaluation_date"`
	DaysBack          int            `json:"days_back"`
	ConfigFingerprint string         `json:"config_fingerprint"`
	Cached            bool           `json:"cached"`
	Summary           Summary        `json:"summary"`
	Stores            []StoreOutcome `json:"stores"`
}

// Batch scores every store in the snapshot and returns the filtered view.
// Without an explicit floor, candidates below MinConfidenceThreshold are
// dropped before classification.
func (e *Engine) Batch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	evalDate := e.evaluationDate(req.EvaluationDate)
	b, cached, err := e.batch(ctx, req.DaysBack, evalDate)
	if err != nil {
		return nil, err
	}

	f := req.Filter
	if !f.ExplicitFloor {
		f.MinScore = e.cfg.MinConfidenceThreshold
	}
	rows := BuildOutcomes(b.Stores, b.Results, e.policy, f)
	return &BatchResponse{
		GeneratedAt:       b.GeneratedAt,
		EvaluationDate:    evalDate,
		DaysBack:          req.DaysBack,
		ConfigFingerprint: e.cfg.Fingerprint(),
		Cached:            cached,
		Summary:           Summarize(rows),
		Stores:            rows,
	}, nil
}

// ForStore returns the classified, unfiltered candidate list for one store.
// The planner uses it to pick alternatives, so no floor is applied.
func (e *Engine) ForStore(ctx context.Context, storeID string, daysBack int, evalDate time.Time) (*StoreOutcome, error) {
	b, _, err := e.batch(ctx, daysBack, e.evaluationDate(evalDate))
	if err != nil {
		return nil, err
	}
	for _, s := range b.Stores {
		if s.StoreID != storeID {
			continue
		}
		rows := BuildOutcomes([]domain.StorePerformanceMetrics{s}, b.Results, e.policy, Filter{})
		return &rows[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, storeID)
}

// snapshotInvalidator is implemented by feeds that cache their snapshot.
type snapshotInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Invalidate drops the cached metrics snapshot and every cached batch scored
// from it. The next request reads the feed again.
func (e *Engine) Invalidate(ctx context.Context) error {
	if inv, ok := e.feed.(snapshotInvalidator); ok {
		if err := inv.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidate metrics snapshot: %w", err)
		}
	}
	if e.cache != nil {
		if err := e.cache.Invalidate(ctx); err != nil {
			return fmt.Errorf("invalidate batch cache: %w", err)
		}
	}
	return nil
}

func (e *Engine) evaluationDate(d time.Time) time.Time {
	if d.IsZero() {
		d = e.now()
	}
	y, m, day := d.UTC().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) batch(ctx context.Context, daysBack int, evalDate time.Time) (*CachedBatch, bool, error) {
	key := batchKey(daysBack, e.cfg, evalDate)
	if e.cache != nil {
		b, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("batch cache read failed", "key", key, "error", err)
		} else if ok {
			return b, true, nil
		}
	}

	snap, err := metrics.LoadSnapshot(ctx, e.feed, daysBack)
	if err != nil {
		return nil, false, fmt.Errorf("load metrics snapshot: %w", err)
	}

	start := time.Now()
	results, err := GenerateBatch(ctx, snap.Stores, snap.Campaigns, snap.Geo, e.cfg, evalDate)
	if err != nil {
		return nil, false, err
	}
	logger.Info("batch recommendations generated",
		"stores", len(snap.Stores), "campaigns", len(snap.Campaigns),
		"days_back", daysBack, "duration_ms", time.Since(start).Milliseconds())

	b := &CachedBatch{GeneratedAt: e.now().UTC(), Stores: snap.Stores, Results: results}
	if e.cache != nil {
		if err := e.cache.Set(ctx, key, b, e.cacheTTL); err != nil {
			logger.Warn("batch cache write failed", "key", key, "error", err)
		}
	}
	return b, false, nil
}
