// Package registration declares the bulk registration value types.
package registration

import "time"

// Batch is a caller-supplied request to register labels under a parent name.
// Labels are applied in the given order; the batch is all-or-nothing.
type Batch struct {
	ParentLabel string   `json:"parent_label"`
	Labels      []string `json:"labels"`
	Recipient   string   `json:"recipient,omitempty"`
	Resolver    string   `json:"resolver,omitempty"`
	TTL         uint64   `json:"ttl,omitempty"`
}

// Receipt records a successfully applied batch.
type Receipt struct {
	ID          string   `json:"id"`
	ParentLabel string   `json:"parent_label"`
	Labels      []string `json:"labels"`
	Payer       string   `json:"payer"`
	Recipient   string   `json:"recipient"`
	// Licensed is true when the payer held a license and no per-subname
	// fee was charged.
	Licensed       bool  `json:"licensed"`
	UnitPriceCents int64 `json:"unit_price_cents"`
	OraclePrice8   int64 `json:"oracle_price_8dec"`
	// ChargedWei and RefundWei are decimal strings in the smallest native
	// unit. RefundWei is the excess returned to the payer.
	ChargedWei string    `json:"charged_wei"`
	RefundWei  string    `json:"refund_wei"`
	CreatedAt  time.Time `json:"created_at"`
}
