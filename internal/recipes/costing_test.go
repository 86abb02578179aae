package recipes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeCostOverheadAndLoss(t *testing.T) {
	recipe := Recipe{ID: 1, ProductID: 10, YieldQty: 2, OverheadPct: 10, LossPct: 5}
	items := []ItemCostInput{
		{Item: RecipeItem{IngredientID: 1, Qty: 2, Unit: "kg", IngredientUnit: "kg"}, UnitCost: 3.00},
		{Item: RecipeItem{IngredientID: 2, Qty: 4, Unit: "l", IngredientUnit: "l"}, UnitCost: 1.00},
	}

	breakdown, err := ComputeCost(recipe, items)
	require.NoError(t, err)
	require.InDelta(t, 10.00, breakdown.IngredientTotal, 1e-9)
	require.InDelta(t, 1.00, breakdown.OverheadAmount, 1e-9)
	require.InDelta(t, 0.55, breakdown.LossAmount, 1e-9)
	require.InDelta(t, 11.55, breakdown.BatchCost, 1e-9)
	require.InDelta(t, 5.775, breakdown.UnitCost, 1e-9)
	require.Empty(t, breakdown.Warnings)
}

func TestComputeCostConvertsUnits(t *testing.T) {
	recipe := Recipe{ID: 1, ProductID: 10, YieldQty: 1}
	items := []ItemCostInput{
		// 500 g of an ingredient stocked in kg at 8.00/kg.
		{Item: RecipeItem{IngredientID: 1, Qty: 500, Unit: "g", IngredientUnit: "kg"}, UnitCost: 8.00},
	}

	breakdown, err := ComputeCost(recipe, items)
	require.NoError(t, err)
	require.InDelta(t, 4.00, breakdown.IngredientTotal, 1e-9)
	require.Empty(t, breakdown.Warnings)
}

func TestComputeCostUnknownUnitPairWarns(t *testing.T) {
	recipe := Recipe{ID: 1, ProductID: 10, YieldQty: 1}
	items := []ItemCostInput{
		{Item: RecipeItem{IngredientID: 1, Qty: 3, Unit: "un", IngredientUnit: "kg"}, UnitCost: 2.00},
	}

	breakdown, err := ComputeCost(recipe, items)
	require.NoError(t, err)
	require.InDelta(t, 6.00, breakdown.IngredientTotal, 1e-9)
	require.Len(t, breakdown.Warnings, 1)
	require.Contains(t, breakdown.Warnings[0], "assuming 1:1")
}

func TestComputeCostExplicitFactorOverridesUnitTable(t *testing.T) {
	recipe := Recipe{ID: 1, ProductID: 10, YieldQty: 1}
	items := []ItemCostInput{
		// 2 units of an ingredient stocked in kg, 0.25 kg each.
		{Item: RecipeItem{IngredientID: 1, Qty: 2, Unit: "un", IngredientUnit: "kg", ConversionFactor: 0.25}, UnitCost: 10.00},
	}

	breakdown, err := ComputeCost(recipe, items)
	require.NoError(t, err)
	require.InDelta(t, 5.00, breakdown.IngredientTotal, 1e-9)
	require.Empty(t, breakdown.Warnings)
}

func TestItemConversionDefaultsToUnitTable(t *testing.T) {
	factor, known := ItemConversion(RecipeItem{Qty: 500, Unit: "g", IngredientUnit: "kg", ConversionFactor: 1})
	require.True(t, known)
	require.InDelta(t, 0.001, factor, 1e-12)

	factor, known = ItemConversion(RecipeItem{Qty: 3, Unit: "un", IngredientUnit: "kg", ConversionFactor: 2.5})
	require.True(t, known)
	require.InDelta(t, 2.5, factor, 1e-12)
}

func TestComputeCostInvalidYield(t *testing.T) {
	recipe := Recipe{ID: 1, ProductID: 10, YieldQty: 0}
	_, err := ComputeCost(recipe, []ItemCostInput{
		{Item: RecipeItem{IngredientID: 1, Qty: 1, Unit: "kg", IngredientUnit: "kg"}, UnitCost: 1},
	})
	require.ErrorIs(t, err, ErrInvalidYield)

	recipe.YieldQty = -2
	_, err = ComputeCost(recipe, []ItemCostInput{
		{Item: RecipeItem{IngredientID: 1, Qty: 1, Unit: "kg", IngredientUnit: "kg"}, UnitCost: 1},
	})
	require.ErrorIs(t, err, ErrInvalidYield)
}

func TestComputeCostNoItems(t *testing.T) {
	_, err := ComputeCost(Recipe{YieldQty: 1}, nil)
	require.ErrorIs(t, err, ErrNoItems)
}

func TestConversionFactor(t *testing.T) {
	cases := []struct {
		from, to string
		factor   float64
		known    bool
	}{
		{"g", "kg", 0.001, true},
		{"kg", "g", 1000, true},
		{"ml", "l", 0.001, true},
		{"L", "ML", 1000, true},
		{"kg", "kg", 1, true},
		{"un", "kg", 1, false},
		{"", "kg", 1, true},
	}
	for _, tc := range cases {
		factor, known := ConversionFactor(tc.from, tc.to)
		require.InDelta(t, tc.factor, factor, 1e-12, "%s->%s", tc.from, tc.to)
		require.Equal(t, tc.known, known, "%s->%s", tc.from, tc.to)
	}
}

func TestSuggestPrice(t *testing.T) {
	suggestion := SuggestPrice(10.00, 150, 0, 3, 7)
	require.InDelta(t, 25.00, suggestion.Price, 1e-9)
	require.InDelta(t, 25.00*0.97*0.93, suggestion.NetReceived, 1e-9)
	require.InDelta(t, suggestion.NetReceived-10.00, suggestion.NetMargin, 1e-9)
}
