package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/resto-erp/resto-erp/internal/inventory"
	jobmetrics "github.com/resto-erp/resto-erp/internal/jobs"
	"github.com/resto-erp/resto-erp/internal/shared"
)

// LotScanner is the slice of the inventory service the scan needs.
type LotScanner interface {
	ExpiringLots(ctx context.Context, withinDays int) ([]inventory.ExpiringLot, error)
}

// AuditRecorder keeps a trace of what the scan flagged.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewLotExpiryScanHandler builds the asynq handler that flags lots
// expiring inside the configured window while stock remains.
func NewLotExpiryScanHandler(scanner LotScanner, audit AuditRecorder, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LotExpiryScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.WithinDays <= 0 {
			payload.WithinDays = 30
		}

		tracker := metrics.Track("lot_expiry_scan")
		lots, err := scanner.ExpiringLots(ctx, payload.WithinDays)
		if err != nil {
			return tracker.End(err)
		}
		for _, lot := range lots {
			logger.Warn("lot expiring soon",
				"lot_id", lot.LotID, "product_id", lot.ProductID,
				"product", lot.ProductName, "remaining", lot.Remaining,
				"days_left", lot.DaysLeft)
			if audit != nil {
				_ = audit.Record(ctx, shared.AuditLog{
					Action:   "lot.expiring",
					Entity:   "lot",
					EntityID: strconv.FormatInt(lot.LotID, 10),
					Meta: map[string]any{
						"product":   lot.ProductName,
						"remaining": lot.Remaining,
						"days_left": lot.DaysLeft,
					},
				})
			}
		}
		metrics.SetExpiringLots(len(lots))
		logger.Info("lot expiry scan finished", "window_days", payload.WithinDays, "flagged", len(lots))
		return tracker.End(nil)
	}
}
