package recipes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resto-erp/resto-erp/internal/inventory"
)

type memoryRecipeRepo struct {
	recipes    map[int64]Recipe
	nextID     int64
	nextItemID int64
}

func newMemoryRecipeRepo() *memoryRecipeRepo {
	return &memoryRecipeRepo{recipes: make(map[int64]Recipe)}
}

func (r *memoryRecipeRepo) Create(_ context.Context, recipe Recipe) (Recipe, error) {
	r.nextID++
	recipe.ID = r.nextID
	r.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (r *memoryRecipeRepo) Update(_ context.Context, recipe Recipe) (Recipe, error) {
	stored, ok := r.recipes[recipe.ID]
	if !ok {
		return Recipe{}, ErrRecipeNotFound
	}
	recipe.Items = stored.Items
	r.recipes[recipe.ID] = recipe
	return recipe, nil
}

func (r *memoryRecipeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.recipes[id]; !ok {
		return ErrRecipeNotFound
	}
	delete(r.recipes, id)
	return nil
}

func (r *memoryRecipeRepo) GetByID(_ context.Context, id int64) (Recipe, error) {
	recipe, ok := r.recipes[id]
	if !ok {
		return Recipe{}, ErrRecipeNotFound
	}
	return recipe, nil
}

func (r *memoryRecipeRepo) GetByProduct(_ context.Context, productID int64) (Recipe, error) {
	for _, recipe := range r.recipes {
		if recipe.ProductID == productID {
			return recipe, nil
		}
	}
	return Recipe{}, ErrRecipeNotFound
}

func (r *memoryRecipeRepo) List(_ context.Context) ([]Recipe, error) {
	out := []Recipe{}
	for _, recipe := range r.recipes {
		out = append(out, recipe)
	}
	return out, nil
}

func (r *memoryRecipeRepo) AddItem(_ context.Context, item RecipeItem) (RecipeItem, error) {
	recipe, ok := r.recipes[item.RecipeID]
	if !ok {
		return RecipeItem{}, ErrRecipeNotFound
	}
	r.nextItemID++
	item.ID = r.nextItemID
	recipe.Items = append(recipe.Items, item)
	r.recipes[item.RecipeID] = recipe
	return item, nil
}

func (r *memoryRecipeRepo) RemoveItem(_ context.Context, recipeID, itemID int64) error {
	recipe, ok := r.recipes[recipeID]
	if !ok {
		return ErrRecipeNotFound
	}
	for i, item := range recipe.Items {
		if item.ID == itemID {
			recipe.Items = append(recipe.Items[:i], recipe.Items[i+1:]...)
			r.recipes[recipeID] = recipe
			return nil
		}
	}
	return ErrRecipeNotFound
}

type fakeCosts struct {
	avg map[int64]float64
}

func (f *fakeCosts) GetBalance(_ context.Context, productID int64) (inventory.ProductBalance, error) {
	avg, ok := f.avg[productID]
	if !ok {
		return inventory.ProductBalance{}, inventory.ErrProductNotFound
	}
	return inventory.ProductBalance{ProductID: productID, AvgCost: avg}, nil
}

func TestServiceCreateRejectsInvalidYield(t *testing.T) {
	svc := NewService(newMemoryRecipeRepo(), &fakeCosts{})
	_, err := svc.Create(context.Background(), Recipe{ProductID: 1, YieldQty: 0})
	require.ErrorIs(t, err, ErrInvalidYield)
}

func TestServicePreviewCostUsesAverageCosts(t *testing.T) {
	repo := newMemoryRecipeRepo()
	costs := &fakeCosts{avg: map[int64]float64{1: 3.00, 2: 1.00}}
	svc := NewService(repo, costs)
	ctx := context.Background()

	recipe, err := svc.Create(ctx, Recipe{ProductID: 10, YieldQty: 2, OverheadPct: 10, LossPct: 5})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, RecipeItem{RecipeID: recipe.ID, IngredientID: 1, Qty: 2, Unit: "kg"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, RecipeItem{RecipeID: recipe.ID, IngredientID: 2, Qty: 4, Unit: "l"})
	require.NoError(t, err)

	breakdown, err := svc.PreviewCost(ctx, recipe.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.00, breakdown.IngredientTotal, 1e-9)
	require.InDelta(t, 11.55, breakdown.BatchCost, 1e-9)
	require.InDelta(t, 5.775, breakdown.UnitCost, 1e-9)
}

func TestServiceAddItemUnknownRecipe(t *testing.T) {
	svc := NewService(newMemoryRecipeRepo(), &fakeCosts{})
	_, err := svc.AddItem(context.Background(), RecipeItem{RecipeID: 99, IngredientID: 1, Qty: 1})
	require.ErrorIs(t, err, ErrRecipeNotFound)
}

func TestServiceSuggestPrice(t *testing.T) {
	repo := newMemoryRecipeRepo()
	costs := &fakeCosts{avg: map[int64]float64{1: 5.00}}
	svc := NewService(repo, costs)
	ctx := context.Background()

	recipe, err := svc.Create(ctx, Recipe{ProductID: 10, YieldQty: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, RecipeItem{RecipeID: recipe.ID, IngredientID: 1, Qty: 2, Unit: "kg"})
	require.NoError(t, err)

	suggestion, err := svc.SuggestPrice(ctx, recipe.ID, 100, 0, 0, 0)
	require.NoError(t, err)
	require.InDelta(t, 10.00, suggestion.UnitCost, 1e-9)
	require.InDelta(t, 20.00, suggestion.Price, 1e-9)
}
