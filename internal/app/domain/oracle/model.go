// Package oracle declares price feed value types.
package oracle

import "time"

// Price is a fixed-point native/USD observation from the external feed.
// Value is scaled by 10^Decimals; the observed feed uses 8 decimals.
type Price struct {
	Value     int64     `json:"value"`
	Decimals  int       `json:"decimals"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot captures a recorded oracle price for observability.
type Snapshot struct {
	ID          string    `json:"id"`
	Price8      int64     `json:"price_8dec"`
	Source      string    `json:"source"`
	CollectedAt time.Time `json:"collected_at"`
	CreatedAt   time.Time `json:"created_at"`
}
