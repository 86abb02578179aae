package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/shared"
)

type memoryRunRepo struct {
	runs       map[int64]ProductionRun
	nextID     int64
	nextItemID int64
}

func newMemoryRunRepo() *memoryRunRepo {
	return &memoryRunRepo{runs: make(map[int64]ProductionRun)}
}

func (r *memoryRunRepo) Create(_ context.Context, run ProductionRun) (ProductionRun, error) {
	r.nextID++
	run.ID = r.nextID + 1000 // lot ids from a separate range, like the shared sequence
	for i := range run.Items {
		r.nextItemID++
		run.Items[i].ID = r.nextItemID
		run.Items[i].RunID = run.ID
	}
	r.runs[run.ID] = run
	return run, nil
}

func (r *memoryRunRepo) Delete(_ context.Context, id int64) error {
	delete(r.runs, id)
	return nil
}

func (r *memoryRunRepo) GetByID(_ context.Context, id int64) (ProductionRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return ProductionRun{}, ErrRunNotFound
	}
	return run, nil
}

func (r *memoryRunRepo) List(_ context.Context, status Status, limit int) ([]ProductionRun, error) {
	out := []ProductionRun{}
	for _, run := range r.runs {
		if status != "" && run.Status != status {
			continue
		}
		out = append(out, run)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRunRepo) SetStatus(_ context.Context, id int64, from, to Status) error {
	run, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status != from {
		return ErrInvalidState
	}
	run.Status = to
	r.runs[id] = run
	return nil
}

// fakeInventory keeps lots and movements in memory and derives lot
// remainders with the ledger's own consumption rules.
type fakeInventory struct {
	lots      map[int64][]inventory.LotBalance
	movements []inventory.Movement
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{lots: make(map[int64][]inventory.LotBalance)}
}

func (f *fakeInventory) Allocate(_ context.Context, productID int64, required float64) (inventory.Allocation, error) {
	alloc := inventory.Allocation{ProductID: productID, Required: required}
	if required <= 0 {
		alloc.Required = 0
		return alloc, nil
	}
	lots := make([]inventory.LotBalance, len(f.lots[productID]))
	copy(lots, f.lots[productID])
	inventory.ApplyLotConsumption(lots, f.movements)
	inventory.SortLots(lots)
	needed := required
	for _, lot := range lots {
		if needed <= 0 {
			break
		}
		if lot.Remaining <= 0 {
			continue
		}
		take := lot.Remaining
		if needed < take {
			take = needed
		}
		alloc.Lines = append(alloc.Lines, inventory.AllocationLine{
			LotID: lot.LotID, Qty: take, UnitCost: lot.UnitCost,
		})
		needed -= take
	}
	return alloc, nil
}

func (f *fakeInventory) RegisterBatch(_ context.Context, inputs []inventory.RegisterInput) ([]inventory.Movement, error) {
	out := make([]inventory.Movement, 0, len(inputs))
	for _, input := range inputs {
		unitCost := 0.0
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

type fakeRecipes struct {
	byProduct map[int64]recipes.Recipe
}

func (f *fakeRecipes) GetByProduct(_ context.Context, productID int64) (recipes.Recipe, error) {
	recipe, ok := f.byProduct[productID]
	if !ok {
		return recipes.Recipe{}, recipes.ErrRecipeNotFound
	}
	return recipe, nil
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

func expiry(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return &parsed
}

const (
	pizzaID = int64(10)
	flourID = int64(1)
	oilID   = int64(2)
)

func newTestService(recipe recipes.Recipe) (*Service, *memoryRunRepo, *fakeInventory) {
	repo := newMemoryRunRepo()
	inv := newFakeInventory()
	svc := NewService(repo, &fakeRecipes{byProduct: map[int64]recipes.Recipe{recipe.ProductID: recipe}},
		inv, &fakeIdempotency{}, shared.NewProductLocks())
	return svc, repo, inv
}

func TestExecuteConsumesLotsInOrder(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 2,
		Items: []recipes.RecipeItem{
			{IngredientID: flourID, IngredientName: "flour", Qty: 2, Unit: "kg", IngredientUnit: "kg"},
		},
	}
	svc, _, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, ExpiryDate: expiry(t, "2026-09-05"), OriginalQty: 3, UnitCost: 2.00},
		{LotID: 102, ProductID: flourID, ExpiryDate: expiry(t, "2026-09-20"), OriginalQty: 8, UnitCost: 3.00},
	}

	run, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 4})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)

	// scale 2 => 4 kg of flour: 3 from lot 101, 1 from lot 102.
	require.Len(t, run.Items, 2)
	require.Equal(t, int64(101), run.Items[0].LotID)
	require.InDelta(t, 3.0, run.Items[0].Qty, 1e-9)
	require.Equal(t, int64(102), run.Items[1].LotID)
	require.InDelta(t, 1.0, run.Items[1].Qty, 1e-9)

	// Batch cost from actual lot costs: 3*2.00 + 1*3.00 = 9.00.
	require.InDelta(t, 9.00, run.TotalCost, 1e-9)
	require.InDelta(t, 2.25, run.UnitCost, 1e-9)

	// One OUT per slice referencing the source lot, one IN for the run.
	require.Len(t, inv.movements, 3)
	final := inv.movements[2]
	require.Equal(t, inventory.MovementIn, final.Kind)
	require.Equal(t, run.ID, final.ReferenceID)
	require.Equal(t, pizzaID, final.ProductID)
	require.InDelta(t, run.UnitCost, final.UnitCost, 1e-9)
}

func TestExecuteCostIncludesOverheadAndLoss(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 2, OverheadPct: 10, LossPct: 5,
		Items: []recipes.RecipeItem{
			{IngredientID: flourID, Qty: 2, Unit: "kg", IngredientUnit: "kg"},
			{IngredientID: oilID, Qty: 4, Unit: "l", IngredientUnit: "l"},
		},
	}
	svc, _, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, OriginalQty: 10, UnitCost: 3.00},
	}
	inv.lots[oilID] = []inventory.LotBalance{
		{LotID: 102, ProductID: oilID, OriginalQty: 10, UnitCost: 1.00},
	}

	run, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 2})
	require.NoError(t, err)

	// Ingredients 2*3 + 4*1 = 10; +10% overhead; +5% loss on top.
	require.InDelta(t, 11.55, run.TotalCost, 1e-9)
	require.InDelta(t, 5.775, run.UnitCost, 1e-9)
}

func TestExecuteAppliesItemConversionFactor(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 1,
		Items: []recipes.RecipeItem{
			// 2 units per batch, 0.25 kg each.
			{IngredientID: flourID, Qty: 2, Unit: "un", IngredientUnit: "kg", ConversionFactor: 0.25},
		},
	}
	svc, _, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, OriginalQty: 10, UnitCost: 4.00},
	}

	run, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 2})
	require.NoError(t, err)

	// need = 2 un * 0.25 kg/un * scale 2 = 1 kg.
	require.Len(t, run.Items, 1)
	require.InDelta(t, 1.0, run.Items[0].Qty, 1e-9)
	require.InDelta(t, 4.00, run.TotalCost, 1e-9)
}

func TestExecuteInsufficientStockAbortsCleanly(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 1,
		Items: []recipes.RecipeItem{
			{IngredientID: flourID, IngredientName: "flour", Qty: 5, Unit: "kg", IngredientUnit: "kg"},
			{IngredientID: oilID, IngredientName: "oil", Qty: 1, Unit: "l", IngredientUnit: "l"},
		},
	}
	svc, repo, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, OriginalQty: 3, UnitCost: 2.00},
	}
	inv.lots[oilID] = []inventory.LotBalance{
		{LotID: 102, ProductID: oilID, OriginalQty: 10, UnitCost: 1.00},
	}

	_, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 2})
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	require.Equal(t, "flour", insufficient.Shortages[0].ProductName)
	require.InDelta(t, 10.0, insufficient.Shortages[0].Required, 1e-9)
	require.InDelta(t, 3.0, insufficient.Shortages[0].Available, 1e-9)

	require.Empty(t, inv.movements)
	require.Empty(t, repo.runs)
}

func TestCancelReturnsSlicesToLots(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 1,
		Items: []recipes.RecipeItem{
			{IngredientID: flourID, Qty: 4, Unit: "kg", IngredientUnit: "kg"},
		},
	}
	svc, repo, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, OriginalQty: 5, UnitCost: 2.00},
	}

	run, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 1})
	require.NoError(t, err)

	alloc, err := inv.Allocate(context.Background(), flourID, 5)
	require.NoError(t, err)
	require.InDelta(t, 1.0, alloc.Allocated(), 1e-9)

	require.NoError(t, svc.Cancel(context.Background(), run.ID))

	stored, err := repo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)

	// Cancellation hands the consumed slice back to lot 101.
	alloc, err = inv.Allocate(context.Background(), flourID, 5)
	require.NoError(t, err)
	require.InDelta(t, 5.0, alloc.Allocated(), 1e-9)
}

func TestCancelTwiceFails(t *testing.T) {
	recipe := recipes.Recipe{
		ID: 1, ProductID: pizzaID, YieldQty: 1,
		Items: []recipes.RecipeItem{
			{IngredientID: flourID, Qty: 1, Unit: "kg", IngredientUnit: "kg"},
		},
	}
	svc, _, inv := newTestService(recipe)
	inv.lots[flourID] = []inventory.LotBalance{
		{LotID: 101, ProductID: flourID, OriginalQty: 5, UnitCost: 2.00},
	}

	run, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), run.ID))

	movementCount := len(inv.movements)
	require.ErrorIs(t, svc.Cancel(context.Background(), run.ID), ErrAlreadyCancelled)
	require.Len(t, inv.movements, movementCount)
}

func TestExecuteUnknownRecipe(t *testing.T) {
	svc, _, _ := newTestService(recipes.Recipe{ProductID: 99, YieldQty: 1,
		Items: []recipes.RecipeItem{{IngredientID: flourID, Qty: 1}}})
	_, err := svc.Execute(context.Background(), ExecuteInput{ProductID: pizzaID, Qty: 1})
	require.ErrorIs(t, err, recipes.ErrRecipeNotFound)
}
