package units

import "time"

// Unit represents a measurement unit. The abbreviation is what recipes
// use when converting quantities.
type Unit struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
