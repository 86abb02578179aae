package products

import (
	"time"
)

// Product represents a product entity. StockQty, AvgCost and LastCost
// are maintained exclusively by the inventory registrar; masterdata
// only reads them back.
type Product struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	CategoryID    int64     `json:"category_id"`
	UnitID        int64     `json:"unit_id"`
	SalePrice     float64   `json:"sale_price"`
	DefaultMarkup float64   `json:"default_markup"`
	IsIngredient  bool      `json:"is_ingredient"`
	IsSaleItem    bool      `json:"is_sale_item"`
	StockQty      float64   `json:"stock_qty"`
	AvgCost       float64   `json:"avg_cost"`
	LastCost      float64   `json:"last_cost"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
