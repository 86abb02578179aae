package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementKind = "OUT"
)

// Origin tags recorded on movements. Reversal flows use the *_revert
// variant of the reason that created the original movement.
const (
	ReasonPurchase         = "purchase"
	ReasonPurchaseRevert   = "purchase_revert"
	ReasonProduction       = "production"
	ReasonProductionRevert = "production_revert"
	ReasonSale             = "sale"
	ReasonSaleRevert       = "sale_revert"
	ReasonAdjustment       = "adjustment"
)

const revertSuffix = "_revert"

// CoverageEpsilon is the tolerance used when deciding whether an
// allocation fully covers a requirement.
const CoverageEpsilon = 1e-9

// Movement is one append-only row in the stock ledger.
type Movement struct {
	ID          int64        `json:"id"`
	MovedAt     time.Time    `json:"moved_at"`
	Kind        MovementKind `json:"kind"`
	ProductID   int64        `json:"product_id"`
	Qty         float64      `json:"qty"`
	UnitCost    float64      `json:"unit_cost"`
	TotalCost   float64      `json:"total_cost"`
	Reason      string       `json:"reason"`
	ReferenceID int64        `json:"reference_id,omitempty"`
	Note        string       `json:"note,omitempty"`
}

// IsRevert reports whether the movement compensates a previous one.
func (m Movement) IsRevert() bool {
	return isRevertReason(m.Reason)
}

func isRevertReason(reason string) bool {
	return strings.HasSuffix(reason, revertSuffix)
}

// ProductBalance holds the per-product running totals maintained by the
// registrar. The movement ledger is the source of truth; these values
// are an incrementally maintained cache of a full replay.
type ProductBalance struct {
	ProductID int64     `json:"product_id"`
	StockQty  float64   `json:"stock_qty"`
	AvgCost   float64   `json:"avg_cost"`
	LastCost  float64   `json:"last_cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LotSource tells which table a lot originates from.
type LotSource string

const (
	// LotSourcePurchase marks a purchase line item lot.
	LotSourcePurchase LotSource = "purchase"
	// LotSourceProduction marks a finished-goods production lot.
	LotSourceProduction LotSource = "production"
)

// LotBalance is the derived remaining balance of one inbound lot.
type LotBalance struct {
	LotID       int64      `json:"lot_id"`
	Source      LotSource  `json:"source"`
	ProductID   int64      `json:"product_id"`
	LotNumber   string     `json:"lot_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	OriginalQty float64    `json:"original_qty"`
	Consumed    float64    `json:"consumed"`
	Remaining   float64    `json:"remaining"`
	UnitCost    float64    `json:"unit_cost"`
}

// AllocationLine is one lot slice taken by the FIFO allocator.
type AllocationLine struct {
	LotID      int64      `json:"lot_id"`
	Qty        float64    `json:"qty"`
	UnitCost   float64    `json:"unit_cost"`
	LotNumber  string     `json:"lot_number,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// Allocation is the result of walking lots for a required quantity.
type Allocation struct {
	ProductID int64            `json:"product_id"`
	Required  float64          `json:"required"`
	Lines     []AllocationLine `json:"lines"`
}

// Allocated sums the quantities taken across all lines.
func (a Allocation) Allocated() float64 {
	var total float64
	for _, line := range a.Lines {
		total += line.Qty
	}
	return total
}

// Covered reports whether the allocation satisfies the requirement.
func (a Allocation) Covered() bool {
	return a.Allocated()+CoverageEpsilon >= a.Required
}

// Shortfall returns how much of the requirement is left uncovered.
func (a Allocation) Shortfall() float64 {
	short := a.Required - a.Allocated()
	if short < CoverageEpsilon {
		return 0
	}
	return short
}

// TotalCost sums qty times unit cost across all lines.
func (a Allocation) TotalCost() float64 {
	var total float64
	for _, line := range a.Lines {
		total += line.Qty * line.UnitCost
	}
	return total
}

// RegisterInput describes one movement to append.
type RegisterInput struct {
	Kind        MovementKind
	ProductID   int64
	Qty         float64
	UnitCost    *float64 // nil substitutes the product's current average cost
	Reason      string
	ReferenceID int64
	Note        string
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID int64
	Kind      MovementKind
	Reason    string
	Limit     int
}

// ExpiringLot is a lot approaching its expiry date with balance left.
type ExpiringLot struct {
	LotID       int64     `json:"lot_id"`
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	LotNumber   string    `json:"lot_number,omitempty"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Remaining   float64   `json:"remaining"`
	DaysLeft    int       `json:"days_left"`
}

// LedgerCheck compares a full ledger replay against the cached balance.
type LedgerCheck struct {
	ProductID  int64   `json:"product_id"`
	LedgerQty  float64 `json:"ledger_qty"`
	LedgerAvg  float64 `json:"ledger_avg"`
	CachedQty  float64 `json:"cached_qty"`
	CachedAvg  float64 `json:"cached_avg"`
	Consistent bool    `json:"consistent"`
}

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrInvalidMovementKind indicates a kind outside IN/OUT.
	ErrInvalidMovementKind = errors.New("inventory: movement kind must be IN or OUT")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")
	// ErrProductNotFound indicates an unknown product id.
	ErrProductNotFound = errors.New("inventory: product not found")
)

// Shortage reports one ingredient that could not be fully allocated.
type Shortage struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Required    float64 `json:"required"`
	Available   float64 `json:"available"`
}

// InsufficientStockError aborts a multi-movement transaction, naming
// every short ingredient.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		name := s.ProductName
		if name == "" {
			name = fmt.Sprintf("product %d", s.ProductID)
		}
		parts = append(parts, fmt.Sprintf("%s: required %.3f, available %.3f", name, s.Required, s.Available))
	}
	return "inventory: insufficient stock for " + strings.Join(parts, "; ")
}
