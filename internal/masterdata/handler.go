// Package masterdata aggregates the product, unit, category and
// supplier catalogues behind one HTTP surface.
package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/resto-erp/resto-erp/internal/masterdata/categories"
	"github.com/resto-erp/resto-erp/internal/masterdata/products"
	"github.com/resto-erp/resto-erp/internal/masterdata/shared"
	"github.com/resto-erp/resto-erp/internal/masterdata/suppliers"
	"github.com/resto-erp/resto-erp/internal/masterdata/units"
	"github.com/resto-erp/resto-erp/internal/platform/httpx"
	erpshared "github.com/resto-erp/resto-erp/internal/shared"
)

// Handler manages master data endpoints.
type Handler struct {
	logger     *slog.Logger
	products   *products.Service
	units      *units.Service
	categories *categories.Service
	suppliers  *suppliers.Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, productService *products.Service, unitService *units.Service,
	categoryService *categories.Service, supplierService *suppliers.Service) *Handler {
	return &Handler{
		logger:     logger,
		products:   productService,
		units:      unitService,
		categories: categoryService,
		suppliers:  supplierService,
	}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
	r.Route("/units", func(r chi.Router) {
		r.Get("/", h.listUnits)
		r.Post("/", h.createUnit)
		r.Get("/{id}", h.getUnit)
		r.Put("/{id}", h.updateUnit)
		r.Delete("/{id}", h.deleteUnit)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
		r.Get("/{id}", h.getCategory)
		r.Put("/{id}", h.updateCategory)
		r.Delete("/{id}", h.deleteCategory)
	})
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
		r.Get("/{id}", h.getSupplier)
		r.Put("/{id}", h.updateSupplier)
		r.Delete("/{id}", h.deleteSupplier)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filters := listFilters(r)
	if value := r.URL.Query().Get("category_id"); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}
	if value := r.URL.Query().Get("is_ingredient"); value != "" {
		flag := value == "true"
		filters.IsIngredient = &flag
	}
	if value := r.URL.Query().Get("is_sale_item"); value != "" {
		flag := value == "true"
		filters.IsSaleItem = &flag
	}
	items, total, err := h.products.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products":   items,
		"pagination": erpshared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var product products.Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.products.Create(r.Context(), product)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var product products.Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.products.Update(r.Context(), id, product); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	items, err := h.units.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"units": items})
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var unit units.Unit
	if err := httpx.DecodeJSON(r, &unit); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.units.Create(r.Context(), unit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	unit, err := h.units.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var unit units.Unit
	if err := httpx.DecodeJSON(r, &unit); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.units.Update(r.Context(), id, unit); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUnit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.units.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.categories.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": items})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var category categories.Category
	if err := httpx.DecodeJSON(r, &category); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.categories.Create(r.Context(), category)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var category categories.Category
	if err := httpx.DecodeJSON(r, &category); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.categories.Update(r.Context(), id, category); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.suppliers.List(r.Context(), listFilters(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": items})
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var supplier suppliers.Supplier
	if err := httpx.DecodeJSON(r, &supplier); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	created, err := h.suppliers.Create(r.Context(), supplier)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	supplier, err := h.suppliers.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var supplier suppliers.Supplier
	if err := httpx.DecodeJSON(r, &supplier); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.suppliers.Update(r.Context(), id, supplier); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.suppliers.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidID),
		errors.Is(err, shared.ErrRequiredField):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("masterdata request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func listFilters(r *http.Request) shared.ListFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = shared.DefaultPage
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort_by"),
		SortDir: r.URL.Query().Get("sort_dir"),
	}
	if value := r.URL.Query().Get("is_active"); value != "" {
		flag := value == "true"
		filters.IsActive = &flag
	}
	return filters
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}
