package production

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/resto-erp/resto-erp/internal/inventory"
	"github.com/resto-erp/resto-erp/internal/recipes"
	"github.com/resto-erp/resto-erp/internal/shared"
)

// Repository abstracts production run persistence.
type Repository interface {
	Create(ctx context.Context, run ProductionRun) (ProductionRun, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (ProductionRun, error)
	List(ctx context.Context, status Status, limit int) ([]ProductionRun, error)
	SetStatus(ctx context.Context, id int64, from, to Status) error
}

// RecipePort resolves the recipe that produces a product.
type RecipePort interface {
	GetByProduct(ctx context.Context, productID int64) (recipes.Recipe, error)
}

// InventoryPort is the slice of the ledger used by production.
type InventoryPort interface {
	Allocate(ctx context.Context, productID int64, required float64) (inventory.Allocation, error)
	RegisterBatch(ctx context.Context, inputs []inventory.RegisterInput) ([]inventory.Movement, error)
}

// IdempotencyPort guards posting and cancellation against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service executes and cancels production runs.
type Service struct {
	repo        Repository
	recipes     RecipePort
	inventory   InventoryPort
	idempotency IdempotencyPort
	locks       *shared.ProductLocks
}

// NewService builds Service.
func NewService(repo Repository, recipePort RecipePort, inventoryPort InventoryPort, idempotency IdempotencyPort, locks *shared.ProductLocks) *Service {
	return &Service{
		repo:        repo,
		recipes:     recipePort,
		inventory:   inventoryPort,
		idempotency: idempotency,
		locks:       locks,
	}
}

// ExecuteInput describes a requested production run.
type ExecuteInput struct {
	ProductID  int64
	Qty        float64
	LotNumber  string
	ExpiryDate *time.Time
}

// Execute runs one batch: ingredient needs are scaled from the recipe,
// allocated FIFO across lots, and only if every ingredient is fully
// covered are the consumption OUTs and the finished-good IN posted as
// one atomic batch. Any shortfall aborts with a per-ingredient report
// and zero movements.
func (s *Service) Execute(ctx context.Context, input ExecuteInput) (ProductionRun, error) {
	if input.Qty <= 0 {
		return ProductionRun{}, inventory.ErrInvalidQuantity
	}
	recipe, err := s.recipes.GetByProduct(ctx, input.ProductID)
	if err != nil {
		return ProductionRun{}, err
	}
	if recipe.YieldQty <= 0 {
		return ProductionRun{}, recipes.ErrInvalidYield
	}
	if len(recipe.Items) == 0 {
		return ProductionRun{}, recipes.ErrNoItems
	}
	scale := input.Qty / recipe.YieldQty

	lockIDs := []int64{input.ProductID}
	for _, item := range recipe.Items {
		lockIDs = append(lockIDs, item.IngredientID)
	}
	release := s.locks.Acquire(lockIDs...)
	defer release()

	type allocated struct {
		item  recipes.RecipeItem
		need  float64
		alloc inventory.Allocation
	}
	allocations := make([]allocated, 0, len(recipe.Items))
	shortages := []inventory.Shortage{}
	for _, item := range recipe.Items {
		factor, _ := recipes.ItemConversion(item)
		need := item.Qty * factor * scale
		alloc, err := s.inventory.Allocate(ctx, item.IngredientID, need)
		if err != nil {
			return ProductionRun{}, err
		}
		if !alloc.Covered() {
			shortages = append(shortages, inventory.Shortage{
				ProductID:   item.IngredientID,
				ProductName: item.IngredientName,
				Required:    need,
				Available:   alloc.Allocated(),
			})
			continue
		}
		allocations = append(allocations, allocated{item: item, need: need, alloc: alloc})
	}
	if len(shortages) > 0 {
		return ProductionRun{}, &inventory.InsufficientStockError{Shortages: shortages}
	}

	run := ProductionRun{
		ProductID:  input.ProductID,
		Qty:        input.Qty,
		LotNumber:  input.LotNumber,
		ExpiryDate: input.ExpiryDate,
		RunDate:    time.Now().UTC(),
		Status:     StatusCompleted,
	}
	var ingredientTotal float64
	for _, entry := range allocations {
		for _, line := range entry.alloc.Lines {
			item := ProductionItem{
				IngredientID: entry.item.IngredientID,
				LotID:        line.LotID,
				Qty:          line.Qty,
				UnitCost:     line.UnitCost,
				TotalCost:    line.Qty * line.UnitCost,
			}
			run.Items = append(run.Items, item)
			ingredientTotal += item.TotalCost
		}
	}
	overhead := ingredientTotal * recipe.OverheadPct / 100
	loss := (ingredientTotal + overhead) * recipe.LossPct / 100
	run.TotalCost = ingredientTotal + overhead + loss
	run.UnitCost = run.TotalCost / input.Qty

	run, err = s.repo.Create(ctx, run)
	if err != nil {
		return ProductionRun{}, err
	}

	key := idempotencyKey("production:execute", run.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "production"); err != nil {
			_ = s.repo.Delete(ctx, run.ID)
			return ProductionRun{}, err
		}
		inserted = true
	}

	inputs := make([]inventory.RegisterInput, 0, len(run.Items)+1)
	for _, item := range run.Items {
		cost := item.UnitCost
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementOut,
			ProductID:   item.IngredientID,
			Qty:         item.Qty,
			UnitCost:    &cost,
			Reason:      inventory.ReasonProduction,
			ReferenceID: item.LotID,
			Note:        fmt.Sprintf("run:%d", run.ID),
		})
	}
	unitCost := run.UnitCost
	inputs = append(inputs, inventory.RegisterInput{
		Kind:        inventory.MovementIn,
		ProductID:   run.ProductID,
		Qty:         run.Qty,
		UnitCost:    &unitCost,
		Reason:      inventory.ReasonProduction,
		ReferenceID: run.ID,
		Note:        lotNote(run),
	})
	if _, err := s.inventory.RegisterBatch(ctx, inputs); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		_ = s.repo.Delete(ctx, run.ID)
		return ProductionRun{}, err
	}
	return run, nil
}

// Cancel undoes a completed run: the finished goods leave stock at the
// run's unit cost and each consumed slice returns to its source lot.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch run.Status {
	case StatusCompleted:
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return ErrInvalidState
	}

	key := idempotencyKey("production:cancel", run.ID)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "production"); err != nil {
			return err
		}
		inserted = true
	}

	lockIDs := []int64{run.ProductID}
	for _, item := range run.Items {
		lockIDs = append(lockIDs, item.IngredientID)
	}
	release := s.locks.Acquire(lockIDs...)
	defer release()

	unitCost := run.UnitCost
	inputs := []inventory.RegisterInput{{
		Kind:        inventory.MovementOut,
		ProductID:   run.ProductID,
		Qty:         run.Qty,
		UnitCost:    &unitCost,
		Reason:      inventory.ReasonProductionRevert,
		ReferenceID: run.ID,
		Note:        fmt.Sprintf("cancel run:%d", run.ID),
	}}
	for _, item := range run.Items {
		cost := item.UnitCost
		inputs = append(inputs, inventory.RegisterInput{
			Kind:        inventory.MovementIn,
			ProductID:   item.IngredientID,
			Qty:         item.Qty,
			UnitCost:    &cost,
			Reason:      inventory.ReasonProductionRevert,
			ReferenceID: item.LotID,
			Note:        fmt.Sprintf("cancel run:%d", run.ID),
		})
	}
	if _, err := s.inventory.RegisterBatch(ctx, inputs); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	if err := s.repo.SetStatus(ctx, run.ID, StatusCompleted, StatusCancelled); err != nil {
		return err
	}
	return nil
}

// GetByID loads a run with its items.
func (s *Service) GetByID(ctx context.Context, id int64) (ProductionRun, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns runs, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]ProductionRun, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.List(ctx, status, limit)
}

func idempotencyKey(scope string, id int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", scope, id))).String()
}

func lotNote(run ProductionRun) string {
	note := fmt.Sprintf("lot:%s", run.LotNumber)
	if run.ExpiryDate != nil {
		note += ";exp:" + run.ExpiryDate.Format("2006-01-02")
	}
	return note
}
