package syncer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/makercost/makercost/internal/platform/httpx"
	"github.com/makercost/makercost/internal/shared"
)

type Handler struct {
	logger *slog.Logger
	orch   *Orchestrator
}

func NewHandler(logger *slog.Logger, orch *Orchestrator) *Handler {
	return &Handler{logger: logger, orch: orch}
}

// MountRoutes attaches the sync API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/run", h.run)
	r.Post("/resolve", h.resolve)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.orch.Status())
}

type runRequest struct {
	Force bool `json:"force"`
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	httpx.JSON(w, http.StatusOK, h.orch.TriggerSync(r.Context(), req.Force))
}

type resolveRequest struct {
	Store  string     `json:"store"`
	Choice Resolution `json:"choice"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.orch.ResolveConflict(r.Context(), req.Store, req.Choice); err != nil {
		switch {
		case errors.Is(err, shared.ErrValidation):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		default:
			h.logger.Error("resolve conflict", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, h.orch.Status())
}
