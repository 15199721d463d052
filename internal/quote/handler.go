package quote

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/makercost/makercost/internal/platform/httpx"
	"github.com/makercost/makercost/internal/pricing"
	"github.com/makercost/makercost/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	store    *Store
	rates    pricing.Rates
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, store *Store, rates pricing.Rates) *Handler {
	return &Handler{
		logger:   logger,
		store:    store,
		rates:    rates,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes attaches the quote API.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/compute", h.compute)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
	r.Post("/{id}/status", h.setStatus)
	r.Get("/{id}/breakdown", h.breakdown)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": h.store.List()})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.store.Create(r.Context(), req.ProjectName, req.ClientName, req.Currency)
	if err != nil {
		h.respondError(w, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	q, ok := h.store.GetByID(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, ok := h.store.GetByID(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		return
	}
	if req.ProjectName != nil {
		q.ProjectName = *req.ProjectName
	}
	if req.ClientName != nil {
		q.ClientName = *req.ClientName
	}
	if req.Products != nil {
		q.Products = req.Products
	}
	if req.Discount != nil {
		q.Discount = req.Discount
	}
	if req.Shipping != nil {
		q.Shipping = req.Shipping
	}
	updated, err := h.store.Update(r.Context(), q)
	if err != nil {
		h.respondError(w, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	h.store.Remove(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	q, err := h.store.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respondError(w, "set quote status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid quote id")
		return
	}
	q, ok := h.store.GetByID(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "quote not found")
		return
	}
	total, clamped := ComputeTotal(q, h.rates)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"quote_id":      q.ID,
		"total_amount":  total,
		"total_clamped": clamped,
		"products":      Breakdowns(q, h.rates),
	})
}

// compute runs the pure pricing engine on an arbitrary product document,
// without touching any stored quote.
func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if req.Product.SalePrice.UnitsCount < 1 {
		req.Product.SalePrice.UnitsCount = 1
	}
	if err := pricing.Validate(req.Product); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, ComputeResponse{Breakdown: pricing.Compute(req.Product, h.rates)})
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
