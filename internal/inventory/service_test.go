package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resto-erp/resto-erp/internal/shared"
)

type memoryRepo struct {
	mu            sync.Mutex
	balances      map[int64]ProductBalance
	movements     []Movement
	lots          map[int64][]LotBalance
	nextID        int64
	failInsertFor int64
}

func newMemoryRepo(productIDs ...int64) *memoryRepo {
	repo := &memoryRepo{
		balances: make(map[int64]ProductBalance),
		lots:     make(map[int64][]LotBalance),
	}
	for _, id := range productIDs {
		repo.balances[id] = ProductBalance{ProductID: id}
	}
	return repo
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	balanceSnapshot := make(map[int64]ProductBalance, len(r.balances))
	for id, bal := range r.balances {
		balanceSnapshot[id] = bal
	}
	movementCount := len(r.movements)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.balances = balanceSnapshot
		r.movements = r.movements[:movementCount]
		return err
	}
	return nil
}

func (t *memoryTx) GetBalanceForUpdate(_ context.Context, productID int64) (ProductBalance, error) {
	bal, ok := t.repo.balances[productID]
	if !ok {
		return ProductBalance{}, ErrProductNotFound
	}
	return bal, nil
}

func (t *memoryTx) UpdateBalance(_ context.Context, balance ProductBalance) error {
	t.repo.balances[balance.ProductID] = balance
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, movement Movement) (int64, error) {
	if t.repo.failInsertFor != 0 && movement.ProductID == t.repo.failInsertFor {
		return 0, errors.New("insert failed")
	}
	t.repo.nextID++
	movement.ID = t.repo.nextID
	t.repo.movements = append(t.repo.movements, movement)
	return movement.ID, nil
}

func (r *memoryRepo) GetBalance(_ context.Context, productID int64) (ProductBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bal, ok := r.balances[productID]
	if !ok {
		return ProductBalance{}, ErrProductNotFound
	}
	return bal, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Movement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if filter.Reason != "" && m.Reason != filter.Reason {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) ListByReference(_ context.Context, reason string, referenceID int64) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Movement{}
	for _, m := range r.movements {
		if m.Reason == reason && m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListLedger(_ context.Context, productID int64) ([]Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Movement{}
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) LotOrigins(_ context.Context, productID int64) ([]LotBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lots := make([]LotBalance, len(r.lots[productID]))
	copy(lots, r.lots[productID])
	return lots, nil
}

func (r *memoryRepo) ExpiringLots(_ context.Context, withinDays int) ([]ExpiringLot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().AddDate(0, 0, withinDays)
	out := []ExpiringLot{}
	for productID, lots := range r.lots {
		view := make([]LotBalance, len(lots))
		copy(view, lots)
		history := []Movement{}
		for _, m := range r.movements {
			if m.ProductID == productID {
				history = append(history, m)
			}
		}
		ApplyLotConsumption(view, history)
		for _, lot := range view {
			if lot.ExpiryDate == nil || lot.Remaining <= 0 || lot.ExpiryDate.After(cutoff) {
				continue
			}
			out = append(out, ExpiringLot{
				LotID:      lot.LotID,
				ProductID:  productID,
				LotNumber:  lot.LotNumber,
				ExpiryDate: *lot.ExpiryDate,
				Remaining:  lot.Remaining,
			})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListProductIDs(_ context.Context) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []int64{}
	for id := range r.balances {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *fakeMetrics) CountMovement(kind, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[kind+"/"+reason]++
}

func ptrFloat(v float64) *float64 { return &v }

func TestRegisterMovementWeightedAverage(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(2.00), Reason: ReasonPurchase,
	})
	require.NoError(t, err)
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(4.00), Reason: ReasonPurchase,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 20.0, bal.StockQty, 1e-9)
	require.InDelta(t, 3.00, bal.AvgCost, 1e-9)
	require.InDelta(t, 4.00, bal.LastCost, 1e-9)

	out, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 5, Reason: ReasonSale, ReferenceID: 77,
	})
	require.NoError(t, err)
	require.InDelta(t, 3.00, out.UnitCost, 1e-9)
	require.InDelta(t, 15.00, out.TotalCost, 1e-9)

	bal, err = svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 15.0, bal.StockQty, 1e-9)
	require.InDelta(t, 3.00, bal.AvgCost, 1e-9)
}

func TestOutboundNeverChangesAverage(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 8, UnitCost: ptrFloat(2.50), Reason: ReasonPurchase,
	})
	require.NoError(t, err)

	// Even an explicit OUT cost above the average leaves the average alone.
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 3, UnitCost: ptrFloat(9.99), Reason: ReasonAdjustment,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 5.0, bal.StockQty, 1e-9)
	require.InDelta(t, 2.50, bal.AvgCost, 1e-9)
}

func TestOutboundMayDriveStockNegative(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 4, UnitCost: ptrFloat(1), Reason: ReasonAdjustment,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, -4.0, bal.StockQty, 1e-9)
}

func TestRevertRoundTripRestoresBalance(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	// Base stock at a distinct cost so the restore is observable.
	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(2.00), Reason: ReasonPurchase, ReferenceID: 1,
	})
	require.NoError(t, err)

	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(4.00), Reason: ReasonPurchase, ReferenceID: 2,
	})
	require.NoError(t, err)

	// Undo the second receipt with a compensating OUT at its cost.
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 10, UnitCost: ptrFloat(4.00), Reason: ReasonPurchaseRevert, ReferenceID: 2,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 10.0, bal.StockQty, 1e-9)
	require.InDelta(t, 2.00, bal.AvgCost, 1e-9)
}

func TestRevertToEmptyZeroesAverage(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 5, UnitCost: ptrFloat(3.20), Reason: ReasonPurchase, ReferenceID: 9,
	})
	require.NoError(t, err)

	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 5, UnitCost: ptrFloat(3.20), Reason: ReasonPurchaseRevert, ReferenceID: 9,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, bal.StockQty, 1e-9)
	require.InDelta(t, 0.0, bal.AvgCost, 1e-9)
}

func TestRevertInboundKeepsAverage(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(2.00), Reason: ReasonPurchase,
	})
	require.NoError(t, err)
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 4, Reason: ReasonSale, ReferenceID: 5,
	})
	require.NoError(t, err)

	// Voiding the sale gives quantity back without re-averaging.
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 4, UnitCost: ptrFloat(2.00), Reason: ReasonSaleRevert, ReferenceID: 5,
	})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 10.0, bal.StockQty, 1e-9)
	require.InDelta(t, 2.00, bal.AvgCost, 1e-9)
	require.InDelta(t, 2.00, bal.LastCost, 1e-9)
}

func TestRegisterBatchIsAtomic(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	repo.failInsertFor = 2
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterBatch(ctx, []RegisterInput{
		{Kind: MovementIn, ProductID: 1, Qty: 5, UnitCost: ptrFloat(1.00), Reason: ReasonPurchase},
		{Kind: MovementIn, ProductID: 2, Qty: 5, UnitCost: ptrFloat(1.00), Reason: ReasonPurchase},
	})
	require.Error(t, err)
	require.Empty(t, repo.movements)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, bal.StockQty, 1e-9)
}

func TestRegisterMovementValidation(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
		want  error
	}{
		{"bad kind", RegisterInput{Kind: "MOVE", ProductID: 1, Qty: 1, Reason: ReasonAdjustment}, ErrInvalidMovementKind},
		{"zero qty", RegisterInput{Kind: MovementIn, ProductID: 1, Qty: 0, UnitCost: ptrFloat(1), Reason: ReasonAdjustment}, ErrInvalidQuantity},
		{"negative qty", RegisterInput{Kind: MovementOut, ProductID: 1, Qty: -2, Reason: ReasonAdjustment}, ErrInvalidQuantity},
		{"negative cost", RegisterInput{Kind: MovementIn, ProductID: 1, Qty: 1, UnitCost: ptrFloat(-1), Reason: ReasonAdjustment}, ErrInvalidUnitCost},
		{"unknown product", RegisterInput{Kind: MovementIn, ProductID: 99, Qty: 1, UnitCost: ptrFloat(1), Reason: ReasonAdjustment}, ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterMovement(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, repo.movements)
		})
	}
}

func TestVerifyProductLedger(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	inputs := []RegisterInput{
		{Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(2.00), Reason: ReasonPurchase, ReferenceID: 1},
		{Kind: MovementIn, ProductID: 1, Qty: 6, UnitCost: ptrFloat(3.50), Reason: ReasonPurchase, ReferenceID: 2},
		{Kind: MovementOut, ProductID: 1, Qty: 4, Reason: ReasonSale, ReferenceID: 3},
		{Kind: MovementOut, ProductID: 1, Qty: 6, UnitCost: ptrFloat(3.50), Reason: ReasonPurchaseRevert, ReferenceID: 2},
		{Kind: MovementIn, ProductID: 1, Qty: 4, UnitCost: ptrFloat(2.5625), Reason: ReasonSaleRevert, ReferenceID: 3},
	}
	for _, input := range inputs {
		_, err := svc.RegisterMovement(ctx, input)
		require.NoError(t, err)
	}

	check, err := svc.VerifyProductLedger(ctx, 1)
	require.NoError(t, err)
	require.True(t, check.Consistent)
	require.InDelta(t, check.CachedQty, check.LedgerQty, 1e-6)
	require.InDelta(t, check.CachedAvg, check.LedgerAvg, 1e-6)
}

func TestRegisterBatchSideEffects(t *testing.T) {
	repo := newMemoryRepo(1)
	audit := &fakeAudit{}
	metrics := &fakeMetrics{}
	var handled []Movement
	integration := IntegrationFunc(func(_ context.Context, movements []Movement) error {
		handled = append(handled, movements...)
		return nil
	})
	svc := NewService(repo, audit, metrics, integration, nil)

	_, err := svc.RegisterBatch(context.Background(), []RegisterInput{
		{Kind: MovementIn, ProductID: 1, Qty: 2, UnitCost: ptrFloat(1.50), Reason: ReasonPurchase, ReferenceID: 1},
		{Kind: MovementOut, ProductID: 1, Qty: 1, Reason: ReasonSale, ReferenceID: 2},
	})
	require.NoError(t, err)
	require.Len(t, audit.logs, 1)
	require.Equal(t, 1, metrics.counts["IN/purchase"])
	require.Equal(t, 1, metrics.counts["OUT/sale"])
	require.Len(t, handled, 2)
}

func TestIntegrationHookErrorDoesNotFailPosting(t *testing.T) {
	repo := newMemoryRepo(1)
	integration := IntegrationFunc(func(context.Context, []Movement) error {
		return errors.New("cache bump failed")
	})
	svc := NewService(repo, nil, nil, integration, nil)
	ctx := context.Background()

	// The batch is committed before the hook runs; a hook failure
	// must not look like a failed posting.
	movements, err := svc.RegisterBatch(ctx, []RegisterInput{
		{Kind: MovementIn, ProductID: 1, Qty: 2, UnitCost: ptrFloat(1.50), Reason: ReasonPurchase},
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)

	bal, err := svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 2.0, bal.StockQty, 1e-9)
}

func TestMovementsByReference(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 3, UnitCost: ptrFloat(2), Reason: ReasonPurchase, ReferenceID: 41,
	})
	require.NoError(t, err)
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 1, Reason: ReasonSale, ReferenceID: 41,
	})
	require.NoError(t, err)

	movements, err := svc.MovementsByReference(ctx, ReasonPurchase, 41)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementIn, movements[0].Kind)
}
