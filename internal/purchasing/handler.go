package purchasing

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
	"github.com/resto-erp/resto-erp/internal/shared"
)

// Handler exposes purchases over HTTP.
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

// MountRoutes registers purchase endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/post", h.post)
		r.Post("/reverse", h.reverse)
	})
}

type purchaseItemRequest struct {
	ProductID  int64   `json:"product_id" validate:"required,gt=0"`
	Qty        float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	Discount   float64 `json:"discount" validate:"gte=0"`
	LotNumber  string  `json:"lot_number" validate:"max=64"`
	ExpiryDate string  `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

type purchaseRequest struct {
	SupplierID int64                 `json:"supplier_id" validate:"required,gt=0"`
	DocNumber  string                `json:"doc_number" validate:"max=64"`
	DocDate    string                `json:"doc_date" validate:"omitempty,datetime=2006-01-02"`
	Freight    float64               `json:"freight" validate:"gte=0"`
	OtherCosts float64               `json:"other_costs" validate:"gte=0"`
	Items      []purchaseItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "invalid purchase payload", validationFields(err))
		return
	}

	input := CreateDraftInput{
		SupplierID: req.SupplierID,
		DocNumber:  req.DocNumber,
		Freight:    req.Freight,
		OtherCosts: req.OtherCosts,
	}
	if req.DocDate != "" {
		input.DocDate, _ = time.Parse("2006-01-02", req.DocDate)
	}
	for _, item := range req.Items {
		line := DraftItem{
			ProductID: item.ProductID,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
			LotNumber: item.LotNumber,
		}
		if item.ExpiryDate != "" {
			expiry, _ := time.Parse("2006-01-02", item.ExpiryDate)
			line.ExpiryDate = &expiry
		}
		input.Items = append(input.Items, line)
	}

	purchase, err := h.service.CreateDraft(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	purchases, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"purchases": purchases})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	purchase, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Post(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusPosted)})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Reverse(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(StatusReversed)})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPurchaseNotFound), errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyReversed),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("purchasing request failed", "error", err)
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
