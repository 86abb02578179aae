package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/resto-erp/resto-erp/internal/app"
	"github.com/resto-erp/resto-erp/internal/inventory"
	jobmetrics "github.com/resto-erp/resto-erp/internal/jobs"
	"github.com/resto-erp/resto-erp/internal/observability"
	"github.com/resto-erp/resto-erp/internal/platform/db"
	"github.com/resto-erp/resto-erp/internal/shared"
	"github.com/resto-erp/resto-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, metrics, nil, logger)

	verifyTask, err := jobs.NewLedgerVerifyTask(time.Now())
	if err != nil {
		logger.Error("build verify task", slog.Any("error", err))
		os.Exit(1)
	}
	expiryTask, err := jobs.NewLotExpiryScanTask(cfg.ExpiryAlertDays)
	if err != nil {
		logger.Error("build expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerVerify, Handler: jobs.NewLedgerVerifyHandler(inventoryService, jobMetrics, logger)},
			{Type: jobs.TaskLotExpiryScan, Handler: jobs.NewLotExpiryScanHandler(inventoryService, auditLogger, jobMetrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 2 * * *", Task: verifyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
