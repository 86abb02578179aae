package recipes

import "strings"

// conversionFactors maps a (from, to) unit pair to the multiplier that
// converts a quantity in from-units into to-units.
var conversionFactors = map[[2]string]float64{
	{"g", "kg"}:  0.001,
	{"kg", "g"}:  1000,
	{"mg", "g"}:  0.001,
	{"g", "mg"}:  1000,
	{"ml", "l"}:  0.001,
	{"l", "ml"}:  1000,
	{"mg", "kg"}: 1e-6,
	{"kg", "mg"}: 1e6,
}

// ConversionFactor returns the multiplier converting from one unit into
// another. Identical units and unknown pairs yield 1; the second return
// tells whether the pair was actually known.
func ConversionFactor(from, to string) (float64, bool) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return 1, true
	}
	if factor, ok := conversionFactors[[2]string{from, to}]; ok {
		return factor, true
	}
	return 1, false
}

// ItemConversion resolves the factor that converts a recipe item's
// quantity into the ingredient's stock unit. An explicit per-item
// factor wins; the default factor of 1 defers to the unit-pair table.
func ItemConversion(item RecipeItem) (float64, bool) {
	if item.ConversionFactor > 0 && item.ConversionFactor != 1 {
		return item.ConversionFactor, true
	}
	return ConversionFactor(item.Unit, item.IngredientUnit)
}
