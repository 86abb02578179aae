package suppliers

import "time"

// Supplier represents a purchasing counterparty.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TaxNumber string    `json:"tax_number,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
