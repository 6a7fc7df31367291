// Package license declares the flat-fee license value types.
package license

import "time"

// License exempts one account from per-subname fees under one parent name.
// Licenses never expire and have no revocation path.
type License struct {
	ID          string `json:"id"`
	Account     string `json:"account"`
	ParentLabel string `json:"parent_label"`
	// ChargedWei is the amount forwarded to the payout account at purchase,
	// as a decimal string in the smallest native unit.
	ChargedWei string `json:"charged_wei"`
	// OraclePrice8 is the native/USD price (8 decimals) used for conversion.
	OraclePrice8 int64     `json:"oracle_price_8dec"`
	CreatedAt    time.Time `json:"created_at"`
}
