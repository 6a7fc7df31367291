package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	domain "github.com/namedock/registrar/internal/app/domain/pricing"
	"github.com/namedock/registrar/internal/app/services/oracle"
	"github.com/namedock/registrar/pkg/logger"
)

// ErrInvalidQuantity indicates a quote request for zero or negative items.
var ErrInvalidQuantity = errors.New("invalid quantity")

// weiPerCentNumerator converts USD cents to wei when divided by an 8-decimal
// price: cents * 10^18 (wei per native unit) * 10^8 (price scale) / 10^2
// (cents per USD) = cents * 10^24 / price8.
var weiPerCentNumerator = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// Service computes advisory quotes from the tier table and the live oracle
// price. It is stateless and safe for unlimited concurrent use.
type Service struct {
	tiers             *TierTable
	oracle            *oracle.Adapter
	licensePriceCents int64
	log               *logger.Logger
}

// New constructs a pricing service.
func New(tiers *TierTable, adapter *oracle.Adapter, licensePriceCents int64, log *logger.Logger) (*Service, error) {
	if tiers == nil {
		return nil, fmt.Errorf("tier table required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("oracle adapter required")
	}
	if licensePriceCents < 0 {
		return nil, fmt.Errorf("license price must not be negative")
	}
	if log == nil {
		log = logger.NewDefault("pricing")
	}
	return &Service{
		tiers:             tiers,
		oracle:            adapter,
		licensePriceCents: licensePriceCents,
		log:               log,
	}, nil
}

// QuoteBulk computes the native-currency amount required to register the
// given quantity of subnames. The result is advisory: the registrar
// recomputes it at settlement time.
func (s *Service) QuoteBulk(ctx context.Context, quantity int) (domain.Quote, error) {
	if quantity < 1 {
		return domain.Quote{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	unitPrice, err := s.tiers.UnitPriceFor(quantity)
	if err != nil {
		return domain.Quote{}, err
	}
	if unitPrice > 0 && int64(quantity) > math.MaxInt64/unitPrice {
		return domain.Quote{}, fmt.Errorf("%w: quantity %d overflows total price", ErrInvalidQuantity, quantity)
	}
	totalCents := unitPrice * int64(quantity)

	price, err := s.oracle.LatestPrice(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	return domain.Quote{
		Quantity:       quantity,
		UnitPriceCents: unitPrice,
		TotalCents:     totalCents,
		OraclePrice8:   price.Value,
		RequiredWei:    centsToWei(totalCents, price.Value),
	}, nil
}

// LicensePriceCents reports the flat license fee in USD cents.
func (s *Service) LicensePriceCents() int64 { return s.licensePriceCents }

// LicenseQuote converts the flat license fee to wei at the current oracle
// price.
func (s *Service) LicenseQuote(ctx context.Context) (*big.Int, int64, error) {
	price, err := s.oracle.LatestPrice(ctx)
	if err != nil {
		return nil, 0, err
	}
	return centsToWei(s.licensePriceCents, price.Value), price.Value, nil
}

// TierPrices returns the configured tier table.
func (s *Service) TierPrices() []domain.Tier { return s.tiers.Tiers() }

// centsToWei converts USD cents to wei at an 8-decimal price, rounding up
// so integer division never under-collects.
func centsToWei(cents, price8 int64) *big.Int {
	if cents == 0 {
		return new(big.Int)
	}
	numerator := new(big.Int).Mul(big.NewInt(cents), weiPerCentNumerator)
	quotient, remainder := new(big.Int).QuoRem(numerator, big.NewInt(price8), new(big.Int))
	if remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
