package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouteOptions configures cross-cutting middleware.
type RouteOptions struct {
	AllowedOrigins []string
	ActorHeader    string
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	actorHeader := opts.ActorHeader
	if actorHeader == "" {
		actorHeader = "X-Actor"
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", actorHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if hc != nil {
		r.Get("/health", hc.HandleHealth)
		r.Get("/health/live", hc.HandleLiveness)
		r.Get("/health/ready", hc.HandleReadiness)
	} else {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/batch", h.GetBatchRecommendations)
			r.Get("/stores/{storeId}", h.GetStoreRecommendations)
			r.Post("/refresh", h.RefreshMetrics)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.CreatePlan)
			r.Get("/", h.ListPlans)

			r.Route("/{planId}", func(r chi.Router) {
				r.Get("/", h.GetPlan)
				r.Delete("/", h.DeletePlan)

				r.Get("/items", h.ListPlanItems)
				r.Patch("/items/{itemId}", h.UpdatePlanItem)
				r.Get("/items/{itemId}/explain", h.ExplainPlanItem)

				r.Get("/waves", h.ListPlanWaves)
				r.Get("/activity", h.ListPlanActivity)
				r.Get("/executions", h.ListPlanExecutions)

				r.Post("/approve", h.ApprovePlan)
				r.Post("/execute", h.ExecutePlan)
			})
		})
	})

	return r
}
