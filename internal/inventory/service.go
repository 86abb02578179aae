package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/resto-erp/resto-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListByReference(ctx context.Context, reason string, referenceID int64) ([]Movement, error)
	ListLedger(ctx context.Context, productID int64) ([]Movement, error)
	GetBalance(ctx context.Context, productID int64) (ProductBalance, error)
	LotOrigins(ctx context.Context, productID int64) ([]LotBalance, error)
	ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error)
	ListProductIDs(ctx context.Context) ([]int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posted movements.
type MetricsPort interface {
	CountMovement(kind, reason string)
}

// Service is the movement registrar and product ledger. Every stock
// change in the system funnels through it.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	metrics     MetricsPort
	integration IntegrationHandler
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, metrics: metrics, integration: integration, logger: logger}
}

// RegisterMovement appends a single movement and updates the product
// balance atomically.
func (s *Service) RegisterMovement(ctx context.Context, input RegisterInput) (Movement, error) {
	movements, err := s.RegisterBatch(ctx, []RegisterInput{input})
	if err != nil {
		return Movement{}, err
	}
	return movements[0], nil
}

// RegisterBatch appends a set of movements as one atomic unit. Either
// every movement is durably committed or none is. Balance rows are
// locked in ascending product id order.
func (s *Service) RegisterBatch(ctx context.Context, inputs []RegisterInput) ([]Movement, error) {
	if len(inputs) == 0 {
		return nil, errors.New("inventory: at least one movement required")
	}
	for _, input := range inputs {
		if err := validateInput(input); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	movements := make([]Movement, 0, len(inputs))
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements = movements[:0]
		balances := make(map[int64]*ProductBalance)
		for _, id := range distinctProductIDs(inputs) {
			bal, err := tx.GetBalanceForUpdate(ctx, id)
			if err != nil {
				return err
			}
			balances[id] = &bal
		}
		for _, input := range inputs {
			bal := balances[input.ProductID]
			unitCost := bal.AvgCost
			if input.UnitCost != nil {
				unitCost = *input.UnitCost
			}
			applyToBalance(bal, input.Kind, input.Qty, unitCost, input.Reason)
			bal.UpdatedAt = now

			mov := Movement{
				MovedAt:     now,
				Kind:        input.Kind,
				ProductID:   input.ProductID,
				Qty:         input.Qty,
				UnitCost:    unitCost,
				TotalCost:   input.Qty * unitCost,
				Reason:      input.Reason,
				ReferenceID: input.ReferenceID,
				Note:        input.Note,
			}
			id, err := tx.InsertMovement(ctx, mov)
			if err != nil {
				return err
			}
			mov.ID = id
			movements = append(movements, mov)
		}
		for _, bal := range balances {
			if err := tx.UpdateBalance(ctx, *bal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, mov := range movements {
		if s.metrics != nil {
			s.metrics.CountMovement(string(mov.Kind), mov.Reason)
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   fmt.Sprintf("inventory:%s", movements[0].Reason),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", movements[0].ID),
			Meta:     map[string]any{"movements": len(movements)},
		})
	}
	// The movements are durably committed at this point. A failing
	// hook must not turn the call into an error, or callers would
	// compensate a posting that actually happened.
	if s.integration != nil {
		if err := s.integration.HandleMovementsPosted(ctx, movements); err != nil {
			s.logger.Warn("post-commit integration hook failed", "error", err)
		}
	}
	return movements, nil
}

// GetBalance returns the cached product ledger row.
func (s *Service) GetBalance(ctx context.Context, productID int64) (ProductBalance, error) {
	return s.repo.GetBalance(ctx, productID)
}

// ListMovements lists ledger rows, most recent first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 200
	}
	return s.repo.ListMovements(ctx, filter)
}

// MovementsByReference returns movements tagged with the given reason
// and reference id, oldest first.
func (s *Service) MovementsByReference(ctx context.Context, reason string, referenceID int64) ([]Movement, error) {
	return s.repo.ListByReference(ctx, reason, referenceID)
}

// ExpiringLots lists lots with remaining balance expiring within the window.
func (s *Service) ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	return s.repo.ExpiringLots(ctx, withinDays)
}

// VerifyProductLedger replays every movement of the product and compares
// the result against the cached balance row.
func (s *Service) VerifyProductLedger(ctx context.Context, productID int64) (LedgerCheck, error) {
	ledger, err := s.repo.ListLedger(ctx, productID)
	if err != nil {
		return LedgerCheck{}, err
	}
	cached, err := s.repo.GetBalance(ctx, productID)
	if err != nil {
		return LedgerCheck{}, err
	}
	replayed := ReplayLedger(productID, ledger)
	check := LedgerCheck{
		ProductID: productID,
		LedgerQty: replayed.StockQty,
		LedgerAvg: replayed.AvgCost,
		CachedQty: cached.StockQty,
		CachedAvg: cached.AvgCost,
	}
	check.Consistent = math.Abs(check.LedgerQty-check.CachedQty) < 1e-6 &&
		math.Abs(check.LedgerAvg-check.CachedAvg) < 1e-6
	return check, nil
}

// ListProductIDs exposes every product known to the ledger.
func (s *Service) ListProductIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListProductIDs(ctx)
}

// ReplayLedger folds movements in order into a fresh balance using the
// same rules the registrar applies incrementally.
func ReplayLedger(productID int64, movements []Movement) ProductBalance {
	bal := ProductBalance{ProductID: productID}
	for _, mov := range movements {
		applyToBalance(&bal, mov.Kind, mov.Qty, mov.UnitCost, mov.Reason)
	}
	return bal
}

// applyToBalance mutates the balance for one movement. Inbound
// movements fold the unit cost into the weighted average; outbound
// movements only decrement quantity. Compensating movements (reason
// *_revert) invert the effect of the movement they undo: a revert OUT
// un-applies a previous IN's average contribution, a revert IN gives
// quantity back without touching the average.
func applyToBalance(bal *ProductBalance, kind MovementKind, qty, unitCost float64, reason string) {
	switch kind {
	case MovementIn:
		if isRevertReason(reason) {
			bal.StockQty += qty
			return
		}
		newQty := bal.StockQty + qty
		if newQty > 0 {
			bal.AvgCost = (bal.StockQty*bal.AvgCost + qty*unitCost) / newQty
		}
		bal.StockQty = newQty
		bal.LastCost = unitCost
	case MovementOut:
		if isRevertReason(reason) {
			remaining := bal.StockQty - qty
			residual := bal.StockQty*bal.AvgCost - qty*unitCost
			switch {
			case remaining > CoverageEpsilon:
				avg := residual / remaining
				if avg < 0 {
					avg = 0
				}
				bal.AvgCost = avg
			case math.Abs(residual) <= 1e-6:
				bal.AvgCost = 0
			}
			bal.StockQty = remaining
			return
		}
		bal.StockQty -= qty
	}
}

func validateInput(input RegisterInput) error {
	if input.Kind != MovementIn && input.Kind != MovementOut {
		return ErrInvalidMovementKind
	}
	if input.ProductID == 0 {
		return ErrProductNotFound
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if input.UnitCost != nil && *input.UnitCost < 0 {
		return ErrInvalidUnitCost
	}
	if input.Reason == "" {
		return errors.New("inventory: movement reason required")
	}
	return nil
}

func distinctProductIDs(inputs []RegisterInput) []int64 {
	seen := make(map[int64]struct{}, len(inputs))
	ids := make([]int64, 0, len(inputs))
	for _, input := range inputs {
		if _, ok := seen[input.ProductID]; ok {
			continue
		}
		seen[input.ProductID] = struct{}{}
		ids = append(ids, input.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
