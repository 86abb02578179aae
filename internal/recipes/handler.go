package recipes

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/platform/httpx"
)

// Handler exposes recipes over HTTP.
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

// MountRoutes registers recipe endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.remove)
		r.Get("/cost", h.previewCost)
		r.Get("/price", h.suggestPrice)
		r.Post("/items", h.addItem)
		r.Delete("/items/{itemID}", h.removeItem)
	})
}

type recipeRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	YieldQty    float64 `json:"yield_qty" validate:"required,gt=0"`
	YieldUnit   string  `json:"yield_unit" validate:"max=16"`
	OverheadPct float64 `json:"overhead_pct" validate:"gte=0"`
	LossPct     float64 `json:"loss_pct" validate:"gte=0"`
}

type recipeItemRequest struct {
	IngredientID     int64   `json:"ingredient_id" validate:"required,gt=0"`
	Qty              float64 `json:"qty" validate:"required,gt=0"`
	Unit             string  `json:"unit" validate:"max=16"`
	ConversionFactor float64 `json:"conversion_factor" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRecipe(w, r)
	if !ok {
		return
	}
	recipe, err := h.service.Create(r.Context(), Recipe{
		ProductID:   req.ProductID,
		YieldQty:    req.YieldQty,
		YieldUnit:   req.YieldUnit,
		OverheadPct: req.OverheadPct,
		LossPct:     req.LossPct,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recipe)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	req, ok := h.decodeRecipe(w, r)
	if !ok {
		return
	}
	recipe, err := h.service.Update(r.Context(), Recipe{
		ID:          id,
		ProductID:   req.ProductID,
		YieldQty:    req.YieldQty,
		YieldUnit:   req.YieldUnit,
		OverheadPct: req.OverheadPct,
		LossPct:     req.LossPct,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	recipe, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if productID := queryInt64(r, "product_id"); productID > 0 {
		recipe, err := h.service.GetByProduct(r.Context(), productID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"recipes": []Recipe{recipe}})
		return
	}
	recipes, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recipes": recipes})
}

func (h *Handler) previewCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	breakdown, err := h.service.PreviewCost(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) suggestPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	suggestion, err := h.service.SuggestPrice(r.Context(), id,
		queryFloat(r, "markup"), queryFloat(r, "discount"),
		queryFloat(r, "card_fee"), queryFloat(r, "tax"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suggestion)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req recipeItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "invalid recipe item payload", validationFields(err))
		return
	}
	item, err := h.service.AddItem(r.Context(), RecipeItem{
		RecipeID:         id,
		IngredientID:     req.IngredientID,
		Qty:              req.Qty,
		Unit:             req.Unit,
		ConversionFactor: req.ConversionFactor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := pathInt64(w, r, "itemID")
	if !ok {
		return
	}
	if err := h.service.RemoveItem(r.Context(), id, itemID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeRecipe(w http.ResponseWriter, r *http.Request) (recipeRequest, bool) {
	var req recipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return recipeRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "invalid recipe payload", validationFields(err))
		return recipeRequest{}, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecipeNotFound), errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidYield), errors.Is(err, ErrNoItems), errors.Is(err, inventory.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("recipes request failed", "error", err)
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

func pathInt64(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || value <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return value, true
}

func queryInt64(r *http.Request, key string) int64 {
	value, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func queryFloat(r *http.Request, key string) float64 {
	value, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return value
}
