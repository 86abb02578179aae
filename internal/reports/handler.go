package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/resto-erp/resto-erp/internal/platform/httpx"
)

// Handler exposes the report views over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs Handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers report endpoints on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/valuation", h.valuation)
	r.Get("/cmv", h.cmv)
	r.Get("/result", h.result)
	r.Get("/expiring-lots", h.expiringLots)
	r.Get("/recipe-costs", h.recipeCosts)
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := h.service.StockValuation(r.Context())
	if err != nil {
		h.fail(w, "stock valuation", err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func (h *Handler) cmv(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.CMV(r.Context(), queryMonths(r))
	if err != nil {
		h.fail(w, "cmv", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"months": rows})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.MonthlyResult(r.Context(), queryMonths(r))
	if err != nil {
		h.fail(w, "monthly result", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"months": rows})
}

func (h *Handler) expiringLots(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	lots, err := h.service.ExpiringLots(r.Context(), days)
	if err != nil {
		h.fail(w, "expiring lots", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": lots})
}

func (h *Handler) recipeCosts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.RecipeCosts(r.Context())
	if err != nil {
		h.fail(w, "recipe costs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"recipes": rows})
}

func (h *Handler) fail(w http.ResponseWriter, report string, err error) {
	h.logger.Error("report build failed", "report", report, "error", err)
	httpx.RespondError(w, err)
}

func queryMonths(r *http.Request) int {
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))
	return months
}
