package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return &parsed
}

func TestAllocateTakesOldestLotsFirst(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 101, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-01"), OriginalQty: 10, UnitCost: 2.00},
		{LotID: 102, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-10"), OriginalQty: 8, UnitCost: 3.00},
		{LotID: 103, ProductID: 1, ExpiryDate: datePtr(t, "2026-10-01"), OriginalQty: 6, UnitCost: 4.00},
	}
	svc := NewService(repo, nil, nil, nil, nil)

	alloc, err := svc.Allocate(context.Background(), 1, 15)
	require.NoError(t, err)
	require.Len(t, alloc.Lines, 2)
	require.Equal(t, int64(101), alloc.Lines[0].LotID)
	require.InDelta(t, 10.0, alloc.Lines[0].Qty, 1e-9)
	require.Equal(t, int64(102), alloc.Lines[1].LotID)
	require.InDelta(t, 5.0, alloc.Lines[1].Qty, 1e-9)
	require.True(t, alloc.Covered())
	require.InDelta(t, 35.0, alloc.TotalCost(), 1e-9)
}

func TestAllocateReportsShortfallExactly(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 101, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-01"), OriginalQty: 5, UnitCost: 2.00},
		{LotID: 102, ProductID: 1, OriginalQty: 3, UnitCost: 2.50},
	}
	svc := NewService(repo, nil, nil, nil, nil)

	alloc, err := svc.Allocate(context.Background(), 1, 10)
	require.NoError(t, err)
	require.InDelta(t, 8.0, alloc.Allocated(), 1e-9)
	require.False(t, alloc.Covered())
	require.InDelta(t, 2.0, alloc.Shortfall(), 1e-9)
}

func TestAllocateZeroOrNegativeRequired(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 101, ProductID: 1, OriginalQty: 5, UnitCost: 2.00},
	}
	svc := NewService(repo, nil, nil, nil, nil)

	alloc, err := svc.Allocate(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Empty(t, alloc.Lines)
	require.True(t, alloc.Covered())

	alloc, err = svc.Allocate(context.Background(), 1, -3)
	require.NoError(t, err)
	require.Empty(t, alloc.Lines)
	require.InDelta(t, 0.0, alloc.Required, 1e-9)
}

func TestAllocateSkipsExhaustedLots(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 101, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-01"), OriginalQty: 10, UnitCost: 2.00},
		{LotID: 102, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-10"), OriginalQty: 4, UnitCost: 3.00},
	}
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	// Lot 101 was fully consumed by an earlier production run.
	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 10, UnitCost: ptrFloat(2.00), Reason: ReasonProduction, ReferenceID: 101,
	})
	require.NoError(t, err)

	alloc, err := svc.Allocate(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, alloc.Lines, 1)
	require.Equal(t, int64(102), alloc.Lines[0].LotID)
}

func TestProductionLotNotConsumedByItsOwnReceipt(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 100, Source: LotSourceProduction, ProductID: 1, OriginalQty: 10, UnitCost: 5.775},
	}
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	// The finished-good IN references the run's own lot id.
	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(5.775), Reason: ReasonProduction, ReferenceID: 100,
	})
	require.NoError(t, err)

	lots, err := svc.LotBalances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.InDelta(t, 0.0, lots[0].Consumed, 1e-9)
	require.InDelta(t, 10.0, lots[0].Remaining, 1e-9)

	alloc, err := svc.Allocate(ctx, 1, 20)
	require.NoError(t, err)
	require.InDelta(t, 10.0, alloc.Allocated(), 1e-9)
	require.InDelta(t, 10.0, alloc.Shortfall(), 1e-9)
}

func TestCancelledRunLotHasNoBalance(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 100, Source: LotSourceProduction, ProductID: 1, OriginalQty: 10, UnitCost: 5.00},
	}
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 10, UnitCost: ptrFloat(5.00), Reason: ReasonProduction, ReferenceID: 100,
	})
	require.NoError(t, err)
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 10, UnitCost: ptrFloat(5.00), Reason: ReasonProductionRevert, ReferenceID: 100,
	})
	require.NoError(t, err)

	lots, err := svc.LotBalances(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 10.0, lots[0].Consumed, 1e-9)
	require.InDelta(t, 0.0, lots[0].Remaining, 1e-9)

	alloc, err := svc.Allocate(ctx, 1, 1)
	require.NoError(t, err)
	require.Empty(t, alloc.Lines)
}

func TestRevertedConsumptionReturnsToLot(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 55, Source: LotSourcePurchase, ProductID: 1, OriginalQty: 10, UnitCost: 2.00},
	}
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementOut, ProductID: 1, Qty: 4, UnitCost: ptrFloat(2.00), Reason: ReasonProduction, ReferenceID: 55,
	})
	require.NoError(t, err)

	lots, err := svc.LotBalances(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 6.0, lots[0].Remaining, 1e-9)

	// Cancelling the run returns the slice to its source lot.
	_, err = svc.RegisterMovement(ctx, RegisterInput{
		Kind: MovementIn, ProductID: 1, Qty: 4, UnitCost: ptrFloat(2.00), Reason: ReasonProductionRevert, ReferenceID: 55,
	})
	require.NoError(t, err)

	lots, err = svc.LotBalances(ctx, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.0, lots[0].Consumed, 1e-9)
	require.InDelta(t, 10.0, lots[0].Remaining, 1e-9)
}

func TestSortLotsExpiryThenID(t *testing.T) {
	lots := []LotBalance{
		{LotID: 5},
		{LotID: 4, ExpiryDate: datePtr(t, "2026-09-10")},
		{LotID: 3, ExpiryDate: datePtr(t, "2026-09-01")},
		{LotID: 2, ExpiryDate: datePtr(t, "2026-09-01")},
		{LotID: 1},
	}
	SortLots(lots)

	order := make([]int64, 0, len(lots))
	for _, lot := range lots {
		order = append(order, lot.LotID)
	}
	require.Equal(t, []int64{2, 3, 4, 1, 5}, order)
}

func TestLotBalancesReturnsSortedView(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.lots[1] = []LotBalance{
		{LotID: 9, ProductID: 1, OriginalQty: 2},
		{LotID: 7, ProductID: 1, ExpiryDate: datePtr(t, "2026-09-05"), OriginalQty: 3},
	}
	svc := NewService(repo, nil, nil, nil, nil)

	lots, err := svc.LotBalances(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), lots[0].LotID)
	require.Equal(t, int64(9), lots[1].LotID)
}
