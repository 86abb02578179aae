package production

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/platform/httpx"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/shared"
)

// Handler exposes production runs over HTTP.
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

// MountRoutes registers production endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/runs", h.list)
	r.Post("/runs", h.execute)
	r.Get("/runs/{id}", h.get)
	r.Post("/runs/{id}/cancel", h.cancel)
}

type runRequest struct {
	ProductID  int64   `json:"product_id" validate:"required,gt=0"`
	Qty        float64 `json:"qty" validate:"required,gt=0"`
	LotNumber  string  `json:"lot_number" validate:"max=64"`
	ExpiryDate string  `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) execute(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		fields := map[string]string{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "invalid run payload", fields)
		return
	}

	input := ExecuteInput{
		ProductID: req.ProductID,
		Qty:       req.Qty,
		LotNumber: req.LotNumber,
	}
	if req.ExpiryDate != "" {
		expiry, _ := time.Parse("2006-01-02", req.ExpiryDate)
		input.ExpiryDate = &expiry
	}

	run, err := h.service.Execute(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusCancelled)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.ProblemWithErrors(w, http.StatusUnprocessableEntity, "Insufficient Stock",
			"one or more ingredients cannot be covered", insufficient.Shortages)
	case errors.Is(err, ErrRunNotFound), errors.Is(err, recipes.ErrRecipeNotFound),
		errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyCancelled), errors.Is(err, ErrInvalidState),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, recipes.ErrInvalidYield),
		errors.Is(err, recipes.ErrNoItems):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("production request failed", "error", err)
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}
