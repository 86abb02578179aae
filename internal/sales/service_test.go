package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/shared"
)

type memorySaleRepo struct {
	sales      map[int64]Sale
	nextID     int64
	nextItemID int64
}

func newMemorySaleRepo() *memorySaleRepo {
	return &memorySaleRepo{sales: make(map[int64]Sale)}
}

func (r *memorySaleRepo) Create(_ context.Context, sale Sale) (Sale, error) {
	r.nextID++
	sale.ID = r.nextID
	for i := range sale.Items {
		r.nextItemID++
		sale.Items[i].ID = r.nextItemID
		sale.Items[i].SaleID = sale.ID
	}
	r.sales[sale.ID] = sale
	return sale, nil
}

func (r *memorySaleRepo) Delete(_ context.Context, id int64) error {
	delete(r.sales, id)
	return nil
}

func (r *memorySaleRepo) GetByID(_ context.Context, id int64) (Sale, error) {
	sale, ok := r.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return sale, nil
}

func (r *memorySaleRepo) List(_ context.Context, status Status, limit int) ([]Sale, error) {
	out := []Sale{}
	for _, sale := range r.sales {
		if status != "" && sale.Status != status {
			continue
		}
		out = append(out, sale)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memorySaleRepo) SetStatus(_ context.Context, id int64, from, to Status) error {
	sale, ok := r.sales[id]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.Status != from {
		return ErrInvalidState
	}
	sale.Status = to
	r.sales[id] = sale
	return nil
}

func (r *memorySaleRepo) MonthlyRevenue(_ context.Context, months int) ([]MonthlyRevenue, error) {
	totals := map[[2]int]float64{}
	for _, sale := range r.sales {
		if sale.Status != StatusClosed {
			continue
		}
		key := [2]int{sale.SaleDate.Year(), int(sale.SaleDate.Month())}
		totals[key] += sale.Total
	}
	out := []MonthlyRevenue{}
	for key, revenue := range totals {
		out = append(out, MonthlyRevenue{Year: key[0], Month: key[1], Revenue: revenue})
	}
	return out, nil
}

// ledgerRegistrar applies movements with the real balance rules so the
// tests can observe average-cost behaviour end to end.
type ledgerRegistrar struct {
	movements []inventory.Movement
	seed      map[int64][]inventory.Movement
}

func (f *ledgerRegistrar) history(productID int64) []inventory.Movement {
	out := append([]inventory.Movement{}, f.seed[productID]...)
	for _, movement := range f.movements {
		if movement.ProductID == productID {
			out = append(out, movement)
		}
	}
	return out
}

func (f *ledgerRegistrar) balance(productID int64) inventory.ProductBalance {
	return inventory.ReplayLedger(productID, f.history(productID))
}

func (f *ledgerRegistrar) RegisterBatch(_ context.Context, inputs []inventory.RegisterInput) ([]inventory.Movement, error) {
	out := make([]inventory.Movement, 0, len(inputs))
	for _, input := range inputs {
		unitCost := f.balance(input.ProductID).AvgCost
		if input.UnitCost != nil {
			unitCost = *input.UnitCost
		}
		movement := inventory.Movement{
			ID:          int64(len(f.movements) + 1),
			MovedAt:     time.Now(),
			Kind:        input.Kind,
			ProductID:   input.ProductID,
			Qty:         input.Qty,
			UnitCost:    unitCost,
			TotalCost:   input.Qty * unitCost,
			Reason:      input.Reason,
			ReferenceID: input.ReferenceID,
			Note:        input.Note,
		}
		f.movements = append(f.movements, movement)
		out = append(out, movement)
	}
	return out, nil
}

func (f *ledgerRegistrar) MovementsByReference(_ context.Context, reason string, referenceID int64) ([]inventory.Movement, error) {
	out := []inventory.Movement{}
	for _, movement := range f.movements {
		if movement.Reason == reason && movement.ReferenceID == referenceID {
			out = append(out, movement)
		}
	}
	return out, nil
}

type fakeIdempotency struct {
	keys map[string]bool
}

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func seedStock(productID int64, qty, unitCost float64) []inventory.Movement {
	return []inventory.Movement{{
		Kind: inventory.MovementIn, ProductID: productID, Qty: qty,
		UnitCost: unitCost, TotalCost: qty * unitCost, Reason: inventory.ReasonPurchase,
	}}
}

func newTestService(seed map[int64][]inventory.Movement) (*Service, *memorySaleRepo, *ledgerRegistrar) {
	repo := newMemorySaleRepo()
	registrar := &ledgerRegistrar{seed: seed}
	svc := NewService(repo, registrar, &fakeIdempotency{}, shared.NewProductLocks())
	return svc, repo, registrar
}

func TestCheckoutRegistersOutAtAverageCost(t *testing.T) {
	svc, _, registrar := newTestService(map[int64][]inventory.Movement{
		1: seedStock(1, 10, 3.00),
	})

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		Items: []CheckoutItem{{ProductID: 1, Qty: 4, UnitPrice: 9.90}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, sale.Status)
	require.InDelta(t, 39.60, sale.Total, 1e-9)

	require.Len(t, registrar.movements, 1)
	movement := registrar.movements[0]
	require.Equal(t, inventory.MovementOut, movement.Kind)
	require.Equal(t, inventory.ReasonSale, movement.Reason)
	require.Equal(t, sale.ID, movement.ReferenceID)
	require.InDelta(t, 3.00, movement.UnitCost, 1e-9)
	require.InDelta(t, 12.00, movement.TotalCost, 1e-9)

	balance := registrar.balance(1)
	require.InDelta(t, 6.0, balance.StockQty, 1e-9)
	require.InDelta(t, 3.00, balance.AvgCost, 1e-9)
}

func TestCheckoutValidation(t *testing.T) {
	svc, repo, _ := newTestService(nil)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, CheckoutInput{})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Checkout(ctx, CheckoutInput{Items: []CheckoutItem{{ProductID: 1, Qty: 0}}})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	require.Empty(t, repo.sales)
}

func TestVoidRestoresStockAtCapturedCost(t *testing.T) {
	svc, repo, registrar := newTestService(map[int64][]inventory.Movement{
		1: seedStock(1, 10, 3.00),
	})
	ctx := context.Background()

	sale, err := svc.Checkout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: 1, Qty: 4, UnitPrice: 9.90}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Void(ctx, sale.ID))

	stored, err := repo.GetByID(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, stored.Status)

	balance := registrar.balance(1)
	require.InDelta(t, 10.0, balance.StockQty, 1e-9)
	require.InDelta(t, 3.00, balance.AvgCost, 1e-9)

	reverts, err := registrar.MovementsByReference(ctx, inventory.ReasonSaleRevert, sale.ID)
	require.NoError(t, err)
	require.Len(t, reverts, 1)
	require.InDelta(t, 3.00, reverts[0].UnitCost, 1e-9)
}

func TestVoidTwiceFails(t *testing.T) {
	svc, _, registrar := newTestService(map[int64][]inventory.Movement{
		1: seedStock(1, 10, 3.00),
	})
	ctx := context.Background()

	sale, err := svc.Checkout(ctx, CheckoutInput{
		Items: []CheckoutItem{{ProductID: 1, Qty: 2, UnitPrice: 5.00}},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Void(ctx, sale.ID))

	movementCount := len(registrar.movements)
	require.ErrorIs(t, svc.Void(ctx, sale.ID), ErrAlreadyVoided)
	require.Len(t, registrar.movements, movementCount)
}

func TestRevenueGroupsClosedSales(t *testing.T) {
	svc, _, _ := newTestService(map[int64][]inventory.Movement{
		1: seedStock(1, 100, 1.00),
	})
	ctx := context.Background()

	date := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	_, err := svc.Checkout(ctx, CheckoutInput{SaleDate: date,
		Items: []CheckoutItem{{ProductID: 1, Qty: 1, UnitPrice: 10.00}}})
	require.NoError(t, err)
	voided, err := svc.Checkout(ctx, CheckoutInput{SaleDate: date,
		Items: []CheckoutItem{{ProductID: 1, Qty: 1, UnitPrice: 99.00}}})
	require.NoError(t, err)
	require.NoError(t, svc.Void(ctx, voided.ID))

	revenue, err := svc.Revenue(ctx, 12)
	require.NoError(t, err)
	require.Len(t, revenue, 1)
	require.InDelta(t, 10.00, revenue[0].Revenue, 1e-9)
}
