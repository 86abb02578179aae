// Package reports builds the read-side views: stock valuation, cost of
// goods sold, expiring lots and the monthly result. Everything here is
// derived from the ledger and the cash book, cached behind a versioned
// Redis layer that gets bumped whenever movements post.
package reports

import "time"

// ValuationLine is one product's share of the stock value.
type ValuationLine struct {
	ProductID int64   `json:"product_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
	AvgCost   float64 `json:"avg_cost"`
	Value     float64 `json:"value"`
}

// StockValuation is the point-in-time value of everything on hand.
type StockValuation struct {
	Lines        []ValuationLine `json:"lines"`
	Total        float64         `json:"total"`
	TotalDisplay string          `json:"total_display"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// MonthlyCMV is the cost of goods sold for one month.
type MonthlyCMV struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	CMV   float64 `json:"cmv"`
}

// MonthlyResult is the simple monthly P&L:
// revenue - CMV - cash expenses + other cash income.
type MonthlyResult struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Revenue     float64 `json:"revenue"`
	CMV         float64 `json:"cmv"`
	GrossMargin float64 `json:"gross_margin"`
	Expenses    float64 `json:"expenses"`
	OtherIncome float64 `json:"other_income"`
	Net         float64 `json:"net"`
	NetDisplay  string  `json:"net_display"`
}

// RecipeCostRow is one recipe's current cost preview.
type RecipeCostRow struct {
	RecipeID    int64    `json:"recipe_id"`
	ProductID   int64    `json:"product_id"`
	ProductName string   `json:"product_name,omitempty"`
	BatchCost   float64  `json:"batch_cost"`
	UnitCost    float64  `json:"unit_cost"`
	Warnings    []string `json:"warnings,omitempty"`
}
