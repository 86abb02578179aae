package recipes

import (
	"errors"
	"time"
)

// Recipe describes how one batch of a sale item is produced.
type Recipe struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	YieldQty    float64      `json:"yield_qty"`
	YieldUnit   string       `json:"yield_unit"`
	OverheadPct float64      `json:"overhead_pct"`
	LossPct     float64      `json:"loss_pct"`
	Items       []RecipeItem `json:"items,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// RecipeItem is one ingredient line of a recipe. Qty is expressed in
// Unit and converted to the ingredient's stock unit when costing. A
// ConversionFactor other than 1 overrides the unit-pair table, so
// pairs the table cannot know ("unidade" to kg) stay expressible.
type RecipeItem struct {
	ID               int64   `json:"id"`
	RecipeID         int64   `json:"recipe_id"`
	IngredientID     int64   `json:"ingredient_id"`
	IngredientName   string  `json:"ingredient_name,omitempty"`
	IngredientUnit   string  `json:"ingredient_unit,omitempty"`
	Qty              float64 `json:"qty"`
	Unit             string  `json:"unit"`
	ConversionFactor float64 `json:"conversion_factor"`
}

// IngredientCost is one costed line of a breakdown.
type IngredientCost struct {
	IngredientID int64   `json:"ingredient_id"`
	Name         string  `json:"name,omitempty"`
	Qty          float64 `json:"qty"`
	Unit         string  `json:"unit"`
	UnitCost     float64 `json:"unit_cost"`
	Total        float64 `json:"total"`
}

// CostBreakdown is the batch costing of a recipe. Overhead applies on
// the ingredient total, loss applies on ingredients plus overhead.
type CostBreakdown struct {
	RecipeID        int64            `json:"recipe_id"`
	ProductID       int64            `json:"product_id"`
	Ingredients     []IngredientCost `json:"ingredients"`
	IngredientTotal float64          `json:"ingredient_total"`
	OverheadAmount  float64          `json:"overhead_amount"`
	LossAmount      float64          `json:"loss_amount"`
	BatchCost       float64          `json:"batch_cost"`
	YieldQty        float64          `json:"yield_qty"`
	UnitCost        float64          `json:"unit_cost"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// PriceSuggestion is the markup simulator output.
type PriceSuggestion struct {
	UnitCost    float64 `json:"unit_cost"`
	MarkupPct   float64 `json:"markup_pct"`
	Price       float64 `json:"price"`
	DiscountPct float64 `json:"discount_pct"`
	CardFeePct  float64 `json:"card_fee_pct"`
	TaxPct      float64 `json:"tax_pct"`
	NetReceived float64 `json:"net_received"`
	NetMargin   float64 `json:"net_margin"`
}

var (
	// ErrInvalidYield indicates a recipe yield of zero or less.
	ErrInvalidYield = errors.New("recipes: yield must be greater than zero")
	// ErrRecipeNotFound indicates an unknown recipe.
	ErrRecipeNotFound = errors.New("recipes: recipe not found")
	// ErrNoItems indicates a costing attempt on an empty recipe.
	ErrNoItems = errors.New("recipes: recipe has no items")
)
