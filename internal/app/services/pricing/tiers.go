// Package pricing resolves tiered USD prices and converts them to native
// currency using the oracle adapter.
package pricing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domain "github.com/namedock/registrar/internal/app/domain/pricing"
)

// ErrInvalidTiers indicates a tier table that violates the monotonicity
// rules and was rejected at configuration time.
var ErrInvalidTiers = errors.New("invalid tier table")

// TierTable is an ordered, validated set of quantity tiers.
type TierTable struct {
	tiers []domain.Tier
}

// NewTierTable validates and wraps a tier configuration. The first tier must
// start at quantity 1, thresholds must be strictly ascending and unit prices
// non-increasing so bulk quantities never cost more per subname.
func NewTierTable(tiers []domain.Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers configured", ErrInvalidTiers)
	}
	if tiers[0].MinQuantity != 1 {
		return nil, fmt.Errorf("%w: first tier must start at quantity 1, got %d", ErrInvalidTiers, tiers[0].MinQuantity)
	}
	for i, tier := range tiers {
		if tier.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: tier %d has negative price", ErrInvalidTiers, i)
		}
		if i == 0 {
			continue
		}
		if tier.MinQuantity <= tiers[i-1].MinQuantity {
			return nil, fmt.Errorf("%w: tier %d threshold %d not above previous %d",
				ErrInvalidTiers, i, tier.MinQuantity, tiers[i-1].MinQuantity)
		}
		if tier.UnitPriceCents > tiers[i-1].UnitPriceCents {
			return nil, fmt.Errorf("%w: tier %d price %d exceeds previous %d",
				ErrInvalidTiers, i, tier.UnitPriceCents, tiers[i-1].UnitPriceCents)
		}
	}

	table := &TierTable{tiers: make([]domain.Tier, len(tiers))}
	copy(table.tiers, tiers)
	return table, nil
}

// DefaultTiers returns the observed production tier table:
// 1-10 at 500 cents, 11-50 at 300 cents, 51+ at 150 cents per subname.
func DefaultTiers() []domain.Tier {
	return []domain.Tier{
		{MinQuantity: 1, UnitPriceCents: 500},
		{MinQuantity: 11, UnitPriceCents: 300},
		{MinQuantity: 51, UnitPriceCents: 150},
	}
}

// UnitPriceFor resolves the per-subname price in USD cents for a quantity.
// Defined for every quantity >= 1.
func (t *TierTable) UnitPriceFor(quantity int) (int64, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	price := t.tiers[0].UnitPriceCents
	for _, tier := range t.tiers[1:] {
		if quantity < tier.MinQuantity {
			break
		}
		price = tier.UnitPriceCents
	}
	return price, nil
}

// Tiers returns a copy of the configured tiers.
func (t *TierTable) Tiers() []domain.Tier {
	out := make([]domain.Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// LoadTiersFile reads a tier table from a YAML file of the form:
//
//	tiers:
//	  - min_quantity: 1
//	    unit_price_cents: 500
func LoadTiersFile(path string) (*TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}

	var cfg struct {
		Tiers []domain.Tier `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tiers file: %w", err)
	}
	return NewTierTable(cfg.Tiers)
}
