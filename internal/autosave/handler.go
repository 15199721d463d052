package autosave

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/makercost/makercost/internal/platform/httpx"
	"github.com/makercost/makercost/internal/quote"
)

type Handler struct {
	logger     *slog.Logger
	controller *Controller
}

func NewHandler(logger *slog.Logger, controller *Controller) *Handler {
	return &Handler{logger: logger, controller: controller}
}

// MountRoutes attaches the autosave API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/observe", h.observe)
	r.Post("/flush", h.flush)
}

func (h *Handler) observe(w http.ResponseWriter, r *http.Request) {
	var snap quote.ProjectSnapshot
	if err := httpx.DecodeJSON(r, &snap); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	h.controller.Observe(r.Context(), snap)
	httpx.JSON(w, http.StatusAccepted, map[string]any{"pending": h.controller.Pending()})
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request) {
	h.controller.SaveNow(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]any{"saves": h.controller.SaveCount()})
}
