package pricing

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	domain "github.com/namedock/registrar/internal/app/domain/pricing"
	"github.com/namedock/registrar/internal/app/services/oracle"
)

func testService(t *testing.T, price8 int64) *Service {
	t.Helper()
	tiers, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	source := oracle.NewStaticSource(price8)
	adapter := oracle.NewAdapter(source, nil)
	svc, err := New(tiers, adapter, 2500, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestQuoteBulk_ExactConversion(t *testing.T) {
	// 25 names at 300 cents each is $75.00. At $3000 per native unit
	// that is exactly 0.025 units, so no rounding occurs.
	svc := testService(t, 300000000000)

	quote, err := svc.QuoteBulk(context.Background(), 25)
	if err != nil {
		t.Fatalf("QuoteBulk: %v", err)
	}
	if quote.UnitPriceCents != 300 {
		t.Fatalf("unit price = %d, want 300", quote.UnitPriceCents)
	}
	if quote.TotalCents != 7500 {
		t.Fatalf("total = %d, want 7500", quote.TotalCents)
	}
	want := new(big.Int).Mul(big.NewInt(25), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
	if quote.RequiredWei.Cmp(want) != 0 {
		t.Fatalf("required wei = %s, want %s", quote.RequiredWei, want)
	}
}

func TestQuoteBulk_TierBoundaries(t *testing.T) {
	svc := testService(t, 300000000000)

	cases := []struct {
		quantity int
		unit     int64
	}{
		{1, 500},
		{10, 500},
		{11, 300},
		{50, 300},
		{51, 150},
		{500, 150},
	}
	for _, tc := range cases {
		quote, err := svc.QuoteBulk(context.Background(), tc.quantity)
		if err != nil {
			t.Fatalf("QuoteBulk(%d): %v", tc.quantity, err)
		}
		if quote.UnitPriceCents != tc.unit {
			t.Fatalf("QuoteBulk(%d) unit = %d, want %d", tc.quantity, quote.UnitPriceCents, tc.unit)
		}
		if quote.TotalCents != tc.unit*int64(tc.quantity) {
			t.Fatalf("QuoteBulk(%d) total = %d", tc.quantity, quote.TotalCents)
		}
	}
}

func TestQuoteBulk_RoundsUp(t *testing.T) {
	// A price that does not divide the total evenly must round up so the
	// registrar never under-collects.
	svc := testService(t, 299999999999)

	quote, err := svc.QuoteBulk(context.Background(), 25)
	if err != nil {
		t.Fatalf("QuoteBulk: %v", err)
	}
	price := big.NewInt(299999999999)
	numerator := new(big.Int).Mul(big.NewInt(7500), new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil))
	floor := new(big.Int).Quo(numerator, price)

	if quote.RequiredWei.Cmp(floor) <= 0 {
		t.Fatalf("required wei %s not rounded above floor %s", quote.RequiredWei, floor)
	}
	// Ceiling is at most floor+1.
	diff := new(big.Int).Sub(quote.RequiredWei, floor)
	if diff.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("required wei %s more than one above floor %s", quote.RequiredWei, floor)
	}
}

func TestQuoteBulk_InvalidQuantity(t *testing.T) {
	svc := testService(t, 300000000000)

	for _, quantity := range []int{0, -1} {
		if _, err := svc.QuoteBulk(context.Background(), quantity); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("QuoteBulk(%d) err = %v, want ErrInvalidQuantity", quantity, err)
		}
	}
}

func TestQuoteBulk_OverflowingQuantity(t *testing.T) {
	svc := testService(t, 300000000000)

	// At the 150-cent tier anything above MaxInt64/150 would wrap the total.
	for _, quantity := range []int{1 << 61, int(^uint(0) >> 1)} {
		if _, err := svc.QuoteBulk(context.Background(), quantity); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("QuoteBulk(%d) err = %v, want ErrInvalidQuantity", quantity, err)
		}
	}

	// Large but representable quantities still quote.
	quote, err := svc.QuoteBulk(context.Background(), 10_000_000)
	if err != nil {
		t.Fatalf("QuoteBulk(10M): %v", err)
	}
	if quote.TotalCents != 1_500_000_000 || quote.RequiredWei.Sign() <= 0 {
		t.Fatalf("unexpected quote: total=%d wei=%s", quote.TotalCents, quote.RequiredWei)
	}
}

func TestQuoteBulk_StaleOracle(t *testing.T) {
	tiers, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	source := oracle.NewStaticSource(300000000000)
	source.Set(300000000000, time.Now().Add(-4*time.Hour))
	adapter := oracle.NewAdapter(source, nil, oracle.WithMaxAge(3*time.Hour))
	svc, err := New(tiers, adapter, 2500, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	if _, err := svc.QuoteBulk(context.Background(), 5); !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("err = %v, want ErrStalePrice", err)
	}
}

func TestLicenseQuote(t *testing.T) {
	svc := testService(t, 300000000000)

	wei, price8, err := svc.LicenseQuote(context.Background())
	if err != nil {
		t.Fatalf("LicenseQuote: %v", err)
	}
	if price8 != 300000000000 {
		t.Fatalf("price8 = %d", price8)
	}
	// $25.00 at $3000 per unit is exactly 1/120 of a unit.
	want := centsToWei(2500, 300000000000)
	if wei.Cmp(want) != 0 {
		t.Fatalf("license wei = %s, want %s", wei, want)
	}
	manual := new(big.Int).Mul(big.NewInt(2500), new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil))
	manual.Quo(manual, big.NewInt(300000000000))
	if wei.Cmp(manual) != 0 {
		t.Fatalf("license wei = %s, want %s", wei, manual)
	}
}

func TestTierTable_Validation(t *testing.T) {
	cases := []struct {
		name  string
		tiers []domain.Tier
	}{
		{"empty", nil},
		{"first tier not one", []domain.Tier{
			{MinQuantity: 2, UnitPriceCents: 500},
		}},
		{"descending thresholds", []domain.Tier{
			{MinQuantity: 1, UnitPriceCents: 500},
			{MinQuantity: 50, UnitPriceCents: 300},
			{MinQuantity: 11, UnitPriceCents: 150},
		}},
		{"increasing price", []domain.Tier{
			{MinQuantity: 1, UnitPriceCents: 300},
			{MinQuantity: 11, UnitPriceCents: 500},
		}},
		{"negative price", []domain.Tier{
			{MinQuantity: 1, UnitPriceCents: -5},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTierTable(tc.tiers); !errors.Is(err, ErrInvalidTiers) {
				t.Fatalf("err = %v, want ErrInvalidTiers", err)
			}
		})
	}
}

func TestTierTable_UnitPriceFor(t *testing.T) {
	table, err := NewTierTable(DefaultTiers())
	if err != nil {
		t.Fatalf("tier table: %v", err)
	}
	if _, err := table.UnitPriceFor(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("err = %v, want ErrInvalidQuantity", err)
	}
	unit, err := table.UnitPriceFor(1000000)
	if err != nil {
		t.Fatalf("UnitPriceFor: %v", err)
	}
	if unit != 150 {
		t.Fatalf("unit = %d, want 150", unit)
	}
}
