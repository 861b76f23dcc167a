package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/retail-planner/internal/pkg/httputil"
	"github.com/ignite/retail-planner/internal/pkg/logger"
	"github.com/ignite/retail-planner/internal/recommendation"
)

type batchView struct {
	GeneratedAt       time.Time              `json:"generated_at"`
	EvaluationDate    string                 `json:"evaluation_date"`
	DaysBack          int                    `json:"days_back"`
	ConfigFingerprint string                 `json:"config_fingerprint"`
	Cached            bool                   `json:"cached"`
	Summary           recommendation.Summary `json:"summary"`
	Stores            []storeOutcomeView     `json:"stores"`
}

// GetBatchRecommendations scores every store and returns the review view.
//
//	GET /api/recommendations/batch?daysBack=&region=&state=&status=&minConfidence=&evaluationDate=
func (h *Handlers) GetBatchRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	daysBack, ok := h.parseDaysBack(w, r)
	if !ok {
		return
	}
	evalDate, ok := parseEvaluationDate(w, r)
	if !ok {
		return
	}

	f := recommendation.Filter{Region: q.Get("region"), State: q.Get("state")}
	if raw := q.Get("status"); raw != "" {
		f.Status = recommendation.Status(raw)
		if !f.Status.Valid() {
			httputil.BadRequest(w, "status must be auto-approve, needs-review or skip")
			return
		}
	}
	minScore, minLevel, err := recommendation.ParseMinConfidence(q.Get("minConfidence"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	f.MinScore, f.MinLevel = minScore, minLevel
	f.ExplicitFloor = q.Get("minConfidence") != ""

	resp, err := h.reco.Batch(r.Context(), recommendation.BatchRequest{
		DaysBack:       daysBack,
		EvaluationDate: evalDate,
		Filter:         f,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	view := batchView{
		GeneratedAt:       resp.GeneratedAt,
		EvaluationDate:    resp.EvaluationDate.Format(time.DateOnly),
		DaysBack:          resp.DaysBack,
		ConfigFingerprint: resp.ConfigFingerprint,
		Cached:            resp.Cached,
		Summary:           resp.Summary,
		Stores:            make([]storeOutcomeView, 0, len(resp.Stores)),
	}
	for _, s := range resp.Stores {
		view.Stores = append(view.Stores, toStoreOutcomeView(s))
	}
	httputil.OK(w, view)
}

// GetStoreRecommendations returns the full candidate list for one store.
//
//	GET /api/recommendations/stores/{storeId}?daysBack=
func (h *Handlers) GetStoreRecommendations(w http.ResponseWriter, r *http.Request) {
	daysBack, ok := h.parseDaysBack(w, r)
	if !ok {
		return
	}
	evalDate, ok := parseEvaluationDate(w, r)
	if !ok {
		return
	}
	out, err := h.reco.ForStore(r.Context(), chi.URLParam(r, "storeId"), daysBack, evalDate)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, toStoreOutcomeView(*out))
}

// RefreshMetrics drops cached metrics snapshots and scored batches so the
// next batch reads the feed.
//
//	POST /api/recommendations/refresh
func (h *Handlers) RefreshMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		httputil.NoContent(w)
		return
	}
	if err := h.metrics.Invalidate(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	logger.Info("metrics cache invalidated", "actor", h.actor(r))
	httputil.NoContent(w)
}

func (h *Handlers) parseDaysBack(w http.ResponseWriter, r *http.Request) (int, bool) {
	daysBack, err := httputil.QueryInt(r, "daysBack", h.daysBack)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return 0, false
	}
	if daysBack <= 0 {
		httputil.BadRequest(w, "daysBack must be positive")
		return 0, false
	}
	return daysBack, true
}

func parseEvaluationDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("evaluationDate")
	if raw == "" {
		return time.Time{}, true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		httputil.BadRequest(w, "evaluationDate must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
