package cashbook

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/resto-erp/resto-erp/internal/platform/httpx"
)

// Handler exposes the cash book over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

// MountRoutes registers cash book endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.listEntries)
		r.Post("/", h.createEntry)
		r.Delete("/{id}", h.deleteEntry)
	})
	r.Get("/totals", h.monthlyTotals)
}

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
	Kind string `json:"kind" validate:"required,oneof=IN OUT"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed",
			"invalid category payload", validationFields(err))
		return
	}
	category, err := h.service.CreateCategory(r.Context(), CashCategory{Name: req.Name, Kind: Kind(req.Kind)})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": items})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type entryRequest struct {
	EntryDate   string  `json:"entry_date" validate:"omitempty,datetime=2006-01-02"`
	Kind        string  `json:"kind" validate:"required,oneof=IN OUT"`
	CategoryID  int64   `json:"category_id" validate:"required,gt=0"`
	Description string  `json:"description" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Method      string  `json:"method"`
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed",
			"invalid entry payload", validationFields(err))
		return
	}
	entry := CashEntry{
		Kind:        Kind(req.Kind),
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Amount:      req.Amount,
		Method:      req.Method,
	}
	if req.EntryDate != "" {
		entry.EntryDate, _ = time.Parse("2006-01-02", req.EntryDate)
	}
	created, err := h.service.CreateEntry(r.Context(), entry)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	if value := r.URL.Query().Get("from"); value != "" {
		from, _ = time.Parse("2006-01-02", value)
	}
	if value := r.URL.Query().Get("to"); value != "" {
		to, _ = time.Parse("2006-01-02", value)
	}
	kind := Kind(r.URL.Query().Get("kind"))

	items, err := h.service.ListEntries(r.Context(), from, to, kind)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": items})
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) monthlyTotals(w http.ResponseWriter, r *http.Request) {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))
	totals, err := h.service.MonthlyTotals(r.Context(), months)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"totals": totals})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrCategoryNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrKindMismatch), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("cashbook request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}
