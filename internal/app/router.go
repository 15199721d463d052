package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/makercost/makercost/internal/account"
	"github.com/makercost/makercost/internal/autosave"
	"github.com/makercost/makercost/internal/catalog"
	"github.com/makercost/makercost/internal/observability"
	"github.com/makercost/makercost/internal/quote"
	"github.com/makercost/makercost/internal/syncer"
	"github.com/makercost/makercost/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	QuoteHandler    *quote.Handler
	CatalogHandler  *catalog.Handler
	AccountHandler  *account.Handler
	SyncHandler     *syncer.Handler
	AutosaveHandler *autosave.Handler
	JobHandler      *jobs.Handler
	Orchestrator    *syncer.Orchestrator
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with MakerCost defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/quotes", params.QuoteHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		if params.AccountHandler != nil {
			r.Route("/account", params.AccountHandler.MountRoutes)
		}
		if params.SyncHandler != nil {
			r.Route("/sync", params.SyncHandler.MountRoutes)
		}
		if params.AutosaveHandler != nil {
			r.Route("/autosave", params.AutosaveHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.Orchestrator != nil {
			r.Post("/session/login", func(w http.ResponseWriter, r *http.Request) {
				params.Orchestrator.OnLogin(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
			r.Post("/session/logout", func(w http.ResponseWriter, r *http.Request) {
				params.Orchestrator.OnLogout()
				w.WriteHeader(http.StatusNoContent)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
