package sales

import (
	"errors"
	"time"
)

// Status is the sale lifecycle state.
type Status string

const (
	// StatusClosed marks a completed checkout.
	StatusClosed Status = "CLOSED"
	// StatusVoided marks a closed sale that was voided.
	StatusVoided Status = "VOIDED"
)

// Sale is one checkout. Items leave stock at the product's current
// average cost, without lot tracking.
type Sale struct {
	ID         int64      `json:"id"`
	SaleNumber string     `json:"sale_number"`
	SaleDate   time.Time  `json:"sale_date"`
	Total      float64    `json:"total"`
	Status     Status     `json:"status"`
	Items      []SaleItem `json:"items,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SaleItem is one sold line.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// MonthlyRevenue is one month of closed sales.
type MonthlyRevenue struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Revenue float64 `json:"revenue"`
}

var (
	// ErrSaleNotFound indicates an unknown sale id.
	ErrSaleNotFound = errors.New("sales: sale not found")
	// ErrAlreadyVoided indicates a second void attempt.
	ErrAlreadyVoided = errors.New("sales: sale already voided")
	// ErrInvalidState indicates an operation not allowed in the current status.
	ErrInvalidState = errors.New("sales: invalid sale state")
	// ErrNoItems indicates a checkout without lines.
	ErrNoItems = errors.New("sales: sale requires at least one item")
)
