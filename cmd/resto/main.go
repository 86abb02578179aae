package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/resto-erp/resto-erp/internal/app"
	"github.com/resto-erp/resto-erp/internal/cashbook"
	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/masterdata"
	"github.com/resto-erp/resto-erp/internal/masterdata/categories"
	"github.com/resto-erp/resto-erp/internal/masterdata/products"
	"github.com/resto-erp/resto-erp/internal/masterdata/suppliers"
	"github.com/resto-erp/resto-erp/internal/masterdata/units"
	"github.com/resto-erp/resto-erp/internal/observability"
	"github.com/resto-erp/resto-erp/internal/platform/cache"
	"github.com/resto-erp/resto-erp/internal/platform/db"
	"github.com/resto-erp/resto-erp/internal/production"
	"github.com/resto-erp/resto-erp/internal/purchasing"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/reports"
	"github.com/resto-erp/resto-erp/internal/sales"
	"github.com/resto-erp/resto-erp/internal/shared"
	"github.com/resto-erp/resto-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Reports degrade to uncached builds when Redis is unreachable.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	productLocks := shared.NewProductLocks()
	metrics := observability.NewMetrics()

	// The report cache service is built after the ledger but must see
	// every posted batch, hence the late-bound hook.
	var reportsService *reports.Service
	ledgerHook := inventory.IntegrationFunc(func(ctx context.Context, movements []inventory.Movement) error {
		if reportsService == nil {
			return nil
		}
		return reportsService.InvalidateOnMovements(ctx, movements)
	})

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, metrics, ledgerHook, logger)

	recipesRepo := recipes.NewRepository(dbpool)
	recipesService := recipes.NewService(recipesRepo, inventoryService)

	purchasingRepo := purchasing.NewRepository(dbpool)
	purchasingService := purchasing.NewService(purchasingRepo, inventoryService, idempotencyStore, productLocks)

	productionRepo := production.NewRepository(dbpool)
	productionService := production.NewService(productionRepo, recipesService, inventoryService, idempotencyStore, productLocks)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, inventoryService, idempotencyStore, productLocks)

	cashbookRepo := cashbook.NewSQLRepository(dbpool)
	cashbookService := cashbook.NewService(cashbookRepo, auditLogger, logger)

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	if err := reportsCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("report cache subscribe", slog.Any("error", err))
	}
	reportsRepo := reports.NewSQLRepository(dbpool)
	reportsService = reports.NewService(reportsRepo, salesService, cashbookService,
		inventoryService, recipesService, reportsCache, logger)

	productsService := products.NewService(products.NewRepository(dbpool))
	unitsService := units.NewService(units.NewRepository(dbpool))
	categoriesService := categories.NewService(categories.NewRepository(dbpool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(dbpool))
	masterDataHandler := masterdata.NewHandler(logger, productsService, unitsService, categoriesService, suppliersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventory.NewHandler(inventoryService, logger),
		RecipesHandler:    recipes.NewHandler(recipesService, logger),
		PurchasingHandler: purchasing.NewHandler(purchasingService, logger),
		ProductionHandler: production.NewHandler(productionService, logger),
		SalesHandler:      sales.NewHandler(salesService, logger),
		MasterDataHandler: masterDataHandler,
		ReportsHandler:    reports.NewHandler(reportsService, logger),
		CashbookHandler:   cashbook.NewHandler(cashbookService, logger),
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
