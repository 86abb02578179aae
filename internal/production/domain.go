package production

import (
	"errors"
	"time"
)

// Status is the production run lifecycle state.
type Status string

const (
	// StatusCompleted marks an executed run whose output entered stock.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled marks a completed run that was undone.
	StatusCancelled Status = "CANCELLED"
)

// ProductionRun records one executed batch. The run id doubles as the
// lot id of the finished goods it produced.
type ProductionRun struct {
	ID          int64            `json:"id"`
	ProductID   int64            `json:"product_id"`
	ProductName string           `json:"product_name,omitempty"`
	Qty         float64          `json:"qty"`
	UnitCost    float64          `json:"unit_cost"`
	TotalCost   float64          `json:"total_cost"`
	LotNumber   string           `json:"lot_number,omitempty"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	RunDate     time.Time        `json:"run_date"`
	Status      Status           `json:"status"`
	Items       []ProductionItem `json:"items,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ProductionItem is one ingredient slice consumed from a specific lot.
type ProductionItem struct {
	ID             int64   `json:"id"`
	RunID          int64   `json:"run_id"`
	IngredientID   int64   `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name,omitempty"`
	LotID          int64   `json:"lot_id"`
	Qty            float64 `json:"qty"`
	UnitCost       float64 `json:"unit_cost"`
	TotalCost      float64 `json:"total_cost"`
}

var (
	// ErrRunNotFound indicates an unknown production run.
	ErrRunNotFound = errors.New("production: run not found")
	// ErrAlreadyCancelled indicates a second cancellation attempt.
	ErrAlreadyCancelled = errors.New("production: run already cancelled")
	// ErrInvalidState indicates an operation not allowed in the current status.
	ErrInvalidState = errors.New("production: invalid run state")
)
