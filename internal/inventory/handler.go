package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/resto-erp/resto-erp/internal/platform/httpx"
)

// Handler exposes the movement ledger over HTTP.
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

// MountRoutes registers the inventory endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.listMovements)
	r.Get("/lots/expiring", h.expiringLots)
	r.Post("/adjustments", h.registerAdjustment)
	r.Route("/products/{id}", func(r chi.Router) {
		r.Get("/balance", h.getBalance)
		r.Get("/movements", h.productMovements)
		r.Get("/lots", h.lotBalances)
		r.Get("/ledger-check", h.ledgerCheck)
	})
}

type adjustmentRequest struct {
	Kind      string   `json:"kind" validate:"required,oneof=IN OUT"`
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Qty       float64  `json:"qty" validate:"required,gt=0"`
	UnitCost  *float64 `json:"unit_cost" validate:"omitempty,gte=0"`
	Note      string   `json:"note" validate:"max=255"`
}

func (h *Handler) registerAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
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
		httpx.ProblemWithErrors(w, http.StatusBadRequest, "Validation Failed", "invalid adjustment payload", fields)
		return
	}

	movement, err := h.service.RegisterMovement(r.Context(), RegisterInput{
		Kind:      MovementKind(req.Kind),
		ProductID: req.ProductID,
		Qty:       req.Qty,
		UnitCost:  req.UnitCost,
		Reason:    ReasonAdjustment,
		Note:      req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := MovementFilter{
		ProductID: queryInt64(r, "product_id"),
		Kind:      MovementKind(r.URL.Query().Get("kind")),
		Reason:    r.URL.Query().Get("reason"),
		Limit:     int(queryInt64(r, "limit")),
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) productMovements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	movements, err := h.service.ListMovements(r.Context(), MovementFilter{
		ProductID: id,
		Limit:     int(queryInt64(r, "limit")),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetBalance(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) lotBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	lots, err := h.service.LotBalances(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (h *Handler) ledgerCheck(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	check, err := h.service.VerifyProductLedger(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, check)
}

func (h *Handler) expiringLots(w http.ResponseWriter, r *http.Request) {
	days := int(queryInt64(r, "days"))
	lots, err := h.service.ExpiringLots(r.Context(), days)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidMovementKind),
		errors.Is(err, ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("inventory request failed", "error", err)
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

func queryInt64(r *http.Request, key string) int64 {
	value, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return value
}
