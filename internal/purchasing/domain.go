package purchasing

import (
	"errors"
	"time"
)

// Status is the purchase lifecycle state.
type Status string

const (
	// StatusDraft marks an editable purchase with no ledger effect.
	StatusDraft Status = "DRAFT"
	// StatusPosted marks a purchase whose items entered stock.
	StatusPosted Status = "POSTED"
	// StatusReversed marks a posted purchase that was backed out.
	StatusReversed Status = "REVERSED"
)

// Purchase is a supplier invoice. Each posted item becomes an inbound
// lot tracked by the inventory ledger.
type Purchase struct {
	ID           int64          `json:"id"`
	SupplierID   int64          `json:"supplier_id"`
	SupplierName string         `json:"supplier_name,omitempty"`
	DocNumber    string         `json:"doc_number"`
	DocDate      time.Time      `json:"doc_date"`
	Freight      float64        `json:"freight"`
	OtherCosts   float64        `json:"other_costs"`
	Total        float64        `json:"total"`
	Status       Status         `json:"status"`
	Items        []PurchaseItem `json:"items,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PurchaseItem is one invoice line. Its id doubles as the lot id.
type PurchaseItem struct {
	ID          int64      `json:"id"`
	PurchaseID  int64      `json:"purchase_id"`
	ProductID   int64      `json:"product_id"`
	ProductName string     `json:"product_name,omitempty"`
	Qty         float64    `json:"qty"`
	UnitPrice   float64    `json:"unit_price"`
	Discount    float64    `json:"discount"`
	Total       float64    `json:"total"`
	LotNumber   string     `json:"lot_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// EffectiveUnitCost is the landed cost per unit of the line, with the
// line discount spread over the quantity.
func (i PurchaseItem) EffectiveUnitCost() float64 {
	if i.Qty <= 0 {
		return 0
	}
	return i.Total / i.Qty
}

var (
	// ErrPurchaseNotFound indicates an unknown purchase id.
	ErrPurchaseNotFound = errors.New("purchasing: purchase not found")
	// ErrInvalidState indicates an operation not allowed in the current status.
	ErrInvalidState = errors.New("purchasing: invalid purchase state")
	// ErrAlreadyReversed indicates a second reversal attempt.
	ErrAlreadyReversed = errors.New("purchasing: purchase already reversed")
	// ErrNoItems indicates a purchase without lines.
	ErrNoItems = errors.New("purchasing: purchase requires at least one item")
)
