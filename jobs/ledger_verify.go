package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/resto-erp/resto-erp/internal/inventory"
	jobmetrics "github.com/resto-erp/resto-erp/internal/jobs"
)

// LedgerVerifier is the slice of the inventory service the job needs.
type LedgerVerifier interface {
	ListProductIDs(ctx context.Context) ([]int64, error)
	VerifyProductLedger(ctx context.Context, productID int64) (inventory.LedgerCheck, error)
}

// NewLedgerVerifyHandler builds the asynq handler that replays every
// product ledger and logs any drift against the cached balance.
func NewLedgerVerifyHandler(verifier LedgerVerifier, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LedgerVerifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("ledger_verify")
		drifted, checked, err := VerifyAllLedgers(ctx, verifier, logger)
		if err != nil {
			return tracker.End(err)
		}
		metrics.AddDrift(drifted)
		logger.Info("ledger verification finished",
			"checked", checked, "drifted", drifted,
			"scheduled_for", payload.ScheduledFor)
		return tracker.End(nil)
	}
}

// VerifyAllLedgers runs the check across all products with bounded
// concurrency and returns how many products drifted.
func VerifyAllLedgers(ctx context.Context, verifier LedgerVerifier, logger *slog.Logger) (drifted, checked int, err error) {
	ids, err := verifier.ListProductIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	results := make([]inventory.LedgerCheck, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			check, err := verifier.VerifyProductLedger(ctx, id)
			if err != nil {
				return err
			}
			results[i] = check
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	for _, check := range results {
		if !check.Consistent {
			drifted++
			logger.Warn("ledger drift detected",
				"product_id", check.ProductID,
				"ledger_qty", check.LedgerQty, "cached_qty", check.CachedQty,
				"ledger_avg", check.LedgerAvg, "cached_avg", check.CachedAvg)
		}
	}
	return drifted, len(ids), nil
}
