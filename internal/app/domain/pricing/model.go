// Package pricing declares the value types for tiered subname pricing.
package pricing

import "math/big"

// Tier maps a minimum batch quantity to a per-subname price in USD cents.
// Tables are ordered by MinQuantity ascending; a tier applies from its
// MinQuantity up to the next tier's threshold.
type Tier struct {
	MinQuantity    int   `yaml:"min_quantity" json:"min_quantity"`
	UnitPriceCents int64 `yaml:"unit_price_cents" json:"unit_price_cents"`
}

// Quote is an advisory price computation for a bulk registration. It is
// recomputed authoritatively at settlement time and never persisted.
type Quote struct {
	Quantity       int
	UnitPriceCents int64
	TotalCents     int64
	// OraclePrice8 is the native/USD price scaled by 10^8.
	OraclePrice8 int64
	// RequiredWei is the payment required in the smallest native unit.
	RequiredWei *big.Int
}
