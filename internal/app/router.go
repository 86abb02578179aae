package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/resto-erp/resto-erp/internal/cashbook"
	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/masterdata"
	"github.com/resto-erp/resto-erp/internal/observability"
	"github.com/resto-erp/resto-erp/internal/production"
	"github.com/resto-erp/resto-erp/internal/purchasing"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/reports"
	"github.com/resto-erp/resto-erp/internal/sales"
	"github.com/resto-erp/resto-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	RecipesHandler    *recipes.Handler
	PurchasingHandler *purchasing.Handler
	ProductionHandler *production.Handler
	SalesHandler      *sales.Handler
	MasterDataHandler *masterdata.Handler
	ReportsHandler    *reports.Handler
	CashbookHandler   *cashbook.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/recipes", params.RecipesHandler.MountRoutes)
	r.Route("/purchases", params.PurchasingHandler.MountRoutes)
	r.Route("/production", params.ProductionHandler.MountRoutes)
	r.Route("/sales", params.SalesHandler.MountRoutes)
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.ReportsHandler != nil {
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	}
	if params.CashbookHandler != nil {
		r.Route("/cashbook", params.CashbookHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
