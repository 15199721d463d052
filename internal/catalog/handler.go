package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

// MountRoutes attaches the catalog API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.listMaterials)
	r.Post("/materials", h.upsertMaterial)
	r.Put("/materials/{id}", h.updateMaterial)
	r.Delete("/materials/{id}", h.removeMaterial)
	r.Get("/machines", h.listMachines)
	r.Post("/machines", h.upsertMachine)
	r.Put("/machines/{id}", h.updateMachine)
	r.Delete("/machines/{id}", h.removeMachine)
}

func (h *Handler) listMaterials(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"materials": h.store.Materials()})
}

func (h *Handler) listMachines(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"machines": h.store.Machines()})
}

func (h *Handler) upsertMaterial(w http.ResponseWriter, r *http.Request) {
	var m Material
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	m.ID = uuid.Nil
	saved, err := h.store.UpsertMaterial(r.Context(), m)
	if err != nil {
		h.respondError(w, "create material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) updateMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	if _, ok := h.store.MaterialByID(id); !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "material not found")
		return
	}
	var m Material
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	m.ID = id
	saved, err := h.store.UpsertMaterial(r.Context(), m)
	if err != nil {
		h.respondError(w, "update material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) removeMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid material id")
		return
	}
	if err := h.store.RemoveMaterial(r.Context(), id); err != nil {
		h.respondError(w, "delete material", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertMachine(w http.ResponseWriter, r *http.Request) {
	var m Machine
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	m.ID = uuid.Nil
	saved, err := h.store.UpsertMachine(r.Context(), m)
	if err != nil {
		h.respondError(w, "create machine", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, saved)
}

func (h *Handler) updateMachine(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid machine id")
		return
	}
	if _, ok := h.store.MachineByID(id); !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "machine not found")
		return
	}
	var m Machine
	if err := httpx.DecodeJSON(r, &m); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	m.ID = id
	saved, err := h.store.UpsertMachine(r.Context(), m)
	if err != nil {
		h.respondError(w, "update machine", err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) removeMachine(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid machine id")
		return
	}
	if err := h.store.RemoveMachine(r.Context(), id); err != nil {
		h.respondError(w, "delete machine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
