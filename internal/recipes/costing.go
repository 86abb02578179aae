package recipes

import "fmt"

// ItemCostInput pairs a recipe item with the unit cost to charge for it,
// expressed per the ingredient's stock unit.
type ItemCostInput struct {
	Item     RecipeItem
	UnitCost float64
}

// ComputeCost prices one batch of a recipe from explicit ingredient
// costs. Item quantities are converted into each ingredient's stock
// unit; unknown unit pairs convert 1:1 and show up in Warnings.
func ComputeCost(recipe Recipe, items []ItemCostInput) (CostBreakdown, error) {
	if recipe.YieldQty <= 0 {
		return CostBreakdown{}, ErrInvalidYield
	}
	if len(items) == 0 {
		return CostBreakdown{}, ErrNoItems
	}

	breakdown := CostBreakdown{
		RecipeID:  recipe.ID,
		ProductID: recipe.ProductID,
		YieldQty:  recipe.YieldQty,
	}
	for _, input := range items {
		item := input.Item
		factor, known := ItemConversion(item)
		qty := item.Qty * factor
		if !known {
			breakdown.Warnings = append(breakdown.Warnings,
				fmt.Sprintf("no conversion from %q to %q for ingredient %d, assuming 1:1",
					item.Unit, item.IngredientUnit, item.IngredientID))
		}
		line := IngredientCost{
			IngredientID: item.IngredientID,
			Name:         item.IngredientName,
			Qty:          qty,
			Unit:         item.IngredientUnit,
			UnitCost:     input.UnitCost,
			Total:        qty * input.UnitCost,
		}
		breakdown.Ingredients = append(breakdown.Ingredients, line)
		breakdown.IngredientTotal += line.Total
	}

	breakdown.OverheadAmount = breakdown.IngredientTotal * recipe.OverheadPct / 100
	breakdown.LossAmount = (breakdown.IngredientTotal + breakdown.OverheadAmount) * recipe.LossPct / 100
	breakdown.BatchCost = breakdown.IngredientTotal + breakdown.OverheadAmount + breakdown.LossAmount
	breakdown.UnitCost = breakdown.BatchCost / recipe.YieldQty
	return breakdown, nil
}

// SuggestPrice runs the markup simulator over a unit cost.
func SuggestPrice(unitCost, markupPct, discountPct, cardFeePct, taxPct float64) PriceSuggestion {
	price := unitCost * (1 + markupPct/100)
	net := price * (1 - discountPct/100) * (1 - cardFeePct/100) * (1 - taxPct/100)
	return PriceSuggestion{
		UnitCost:    unitCost,
		MarkupPct:   markupPct,
		Price:       price,
		DiscountPct: discountPct,
		CardFeePct:  cardFeePct,
		TaxPct:      taxPct,
		NetReceived: net,
		NetMargin:   net - unitCost,
	}
}
