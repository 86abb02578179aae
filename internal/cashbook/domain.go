// Package cashbook records cash in and out of the house: supplier
// payments, rent, card settlements, everything that is not a stock
// movement but still lands in the monthly result.
package cashbook

import (
	"errors"
	"time"
)

// Kind tells whether money came in or went out.
type Kind string

const (
	KindIn  Kind = "IN"
	KindOut Kind = "OUT"
)

// CashCategory groups entries for reporting.
type CashCategory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// CashEntry is a single cash book line.
type CashEntry struct {
	ID           int64     `json:"id"`
	EntryDate    time.Time `json:"entry_date"`
	Kind         Kind      `json:"kind"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	Description  string    `json:"description"`
	Amount       float64   `json:"amount"`
	Method       string    `json:"method,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MonthlyTotal aggregates entries by calendar month.
type MonthlyTotal struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// Net is income minus expense for the month.
func (t MonthlyTotal) Net() float64 {
	return t.Income - t.Expense
}

var (
	ErrEntryNotFound    = errors.New("cash entry not found")
	ErrCategoryNotFound = errors.New("cash category not found")
	ErrKindMismatch     = errors.New("entry kind does not match category kind")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
)
