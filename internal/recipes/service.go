package recipes

import (
	"context"

	"github.com/resto-erp/resto-erp/internal/inventory"
)

// Repository abstracts recipe persistence.
type Repository interface {
	Create(ctx context.Context, recipe Recipe) (Recipe, error)
	Update(ctx context.Context, recipe Recipe) (Recipe, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Recipe, error)
	GetByProduct(ctx context.Context, productID int64) (Recipe, error)
	List(ctx context.Context) ([]Recipe, error)
	AddItem(ctx context.Context, item RecipeItem) (RecipeItem, error)
	RemoveItem(ctx context.Context, recipeID, itemID int64) error
}

// CostProvider supplies the current average cost of an ingredient.
type CostProvider interface {
	GetBalance(ctx context.Context, productID int64) (inventory.ProductBalance, error)
}

// Service manages recipes and their cost previews.
type Service struct {
	repo  Repository
	costs CostProvider
}

// NewService builds Service.
func NewService(repo Repository, costs CostProvider) *Service {
	return &Service{repo: repo, costs: costs}
}

// Create validates and stores a recipe.
func (s *Service) Create(ctx context.Context, recipe Recipe) (Recipe, error) {
	if recipe.YieldQty <= 0 {
		return Recipe{}, ErrInvalidYield
	}
	return s.repo.Create(ctx, recipe)
}

// Update validates and replaces a recipe's header fields.
func (s *Service) Update(ctx context.Context, recipe Recipe) (Recipe, error) {
	if recipe.YieldQty <= 0 {
		return Recipe{}, ErrInvalidYield
	}
	return s.repo.Update(ctx, recipe)
}

// Delete removes a recipe and its items.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// GetByID loads a recipe with its items.
func (s *Service) GetByID(ctx context.Context, id int64) (Recipe, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByProduct loads the recipe producing the given product.
func (s *Service) GetByProduct(ctx context.Context, productID int64) (Recipe, error) {
	return s.repo.GetByProduct(ctx, productID)
}

// List returns all recipes without items.
func (s *Service) List(ctx context.Context) ([]Recipe, error) {
	return s.repo.List(ctx)
}

// AddItem appends an ingredient line to a recipe.
func (s *Service) AddItem(ctx context.Context, item RecipeItem) (RecipeItem, error) {
	if item.Qty <= 0 {
		return RecipeItem{}, inventory.ErrInvalidQuantity
	}
	if item.ConversionFactor <= 0 {
		item.ConversionFactor = 1
	}
	if _, err := s.repo.GetByID(ctx, item.RecipeID); err != nil {
		return RecipeItem{}, err
	}
	return s.repo.AddItem(ctx, item)
}

// RemoveItem drops an ingredient line from a recipe.
func (s *Service) RemoveItem(ctx context.Context, recipeID, itemID int64) error {
	return s.repo.RemoveItem(ctx, recipeID, itemID)
}

// PreviewCost prices one batch using each ingredient's current average
// cost. Production uses actual lot costs instead; this preview feeds
// the recipe listing and the price simulator.
func (s *Service) PreviewCost(ctx context.Context, recipeID int64) (CostBreakdown, error) {
	recipe, err := s.repo.GetByID(ctx, recipeID)
	if err != nil {
		return CostBreakdown{}, err
	}
	inputs := make([]ItemCostInput, 0, len(recipe.Items))
	for _, item := range recipe.Items {
		balance, err := s.costs.GetBalance(ctx, item.IngredientID)
		if err != nil {
			return CostBreakdown{}, err
		}
		inputs = append(inputs, ItemCostInput{Item: item, UnitCost: balance.AvgCost})
	}
	return ComputeCost(recipe, inputs)
}

// SuggestPrice previews the recipe cost and applies the markup simulator.
func (s *Service) SuggestPrice(ctx context.Context, recipeID int64, markupPct, discountPct, cardFeePct, taxPct float64) (PriceSuggestion, error) {
	breakdown, err := s.PreviewCost(ctx, recipeID)
	if err != nil {
		return PriceSuggestion{}, err
	}
	return SuggestPrice(breakdown.UnitCost, markupPct, discountPct, cardFeePct, taxPct), nil
}
