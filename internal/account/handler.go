package account

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
	store  *Store
}

func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes attaches the account API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.current)
	r.Put("/tier", h.setTier)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.store.Current())
}

type setTierRequest struct {
	Tier Tier `json:"tier"`
}

func (h *Handler) setTier(w http.ResponseWriter, r *http.Request) {
	var req setTierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	a, err := h.store.SetTier(r.Context(), req.Tier)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("set tier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}
