// Package license sells flat-fee exemptions that waive per-subname charges
// for one (account, parent label) pair.
package license

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"

	domain "github.com/namedock/registrar/internal/app/domain/license"
	"github.com/namedock/registrar/internal/app/metrics"
	"github.com/namedock/registrar/internal/app/services/pricing"
	"github.com/namedock/registrar/internal/app/storage"
	"github.com/namedock/registrar/pkg/logger"
)

var (
	// ErrAlreadyLicensed indicates the pair already holds a license.
	ErrAlreadyLicensed = errors.New("license already held")
	// ErrInsufficientPayment indicates the attached payment does not cover
	// the price computed at the current oracle reading.
	ErrInsufficientPayment = errors.New("insufficient payment")
)

// Forwarder moves collected funds to the payout account. Implementations
// must be safe for concurrent use.
type Forwarder interface {
	Forward(ctx context.Context, amount *big.Int) error
}

// ForwarderFunc adapts a function to the Forwarder interface.
type ForwarderFunc func(ctx context.Context, amount *big.Int) error

func (f ForwarderFunc) Forward(ctx context.Context, amount *big.Int) error { return f(ctx, amount) }

// Service sells and checks licenses. Purchases for the same pair are
// serialized so concurrent buyers cannot both be charged.
type Service struct {
	store   storage.LicenseStore
	pricing *pricing.Service
	forward Forwarder
	log     *logger.Logger

	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	sync.Mutex
	refs int
}

// New constructs a license service. forward may be nil when collected funds
// are settled out of band.
func New(store storage.LicenseStore, pricingSvc *pricing.Service, forward Forwarder, log *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("license store required")
	}
	if pricingSvc == nil {
		return nil, fmt.Errorf("pricing service required")
	}
	if log == nil {
		log = logger.NewDefault("license")
	}
	return &Service{
		store:   store,
		pricing: pricingSvc,
		forward: forward,
		log:     log,
		locks:   make(map[string]*pairLock),
	}, nil
}

// Purchase charges the flat license fee at the current oracle price and
// records the license. The caller's payment must cover the fee; any excess
// is returned as the refund amount. The recorded license never expires.
func (s *Service) Purchase(ctx context.Context, account, parentLabel string, payment *big.Int) (domain.License, *big.Int, error) {
	account = strings.ToLower(strings.TrimSpace(account))
	parentLabel = strings.ToLower(strings.TrimSpace(parentLabel))
	if account == "" || parentLabel == "" {
		return domain.License{}, nil, fmt.Errorf("account and parent label required")
	}
	if payment == nil {
		payment = new(big.Int)
	}

	unlock := s.lockPair(account, parentLabel)
	defer unlock()

	if _, err := s.store.GetLicense(ctx, account, parentLabel); err == nil {
		return domain.License{}, nil, fmt.Errorf("%w: %s under %s", ErrAlreadyLicensed, account, parentLabel)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.License{}, nil, fmt.Errorf("check existing license: %w", err)
	}

	priceWei, price8, err := s.pricing.LicenseQuote(ctx)
	if err != nil {
		return domain.License{}, nil, err
	}
	if payment.Cmp(priceWei) < 0 {
		return domain.License{}, nil, fmt.Errorf("%w: need %s wei, got %s", ErrInsufficientPayment, priceWei, payment)
	}
	refund := new(big.Int).Sub(payment, priceWei)

	if s.forward != nil && priceWei.Sign() > 0 {
		if err := s.forward.Forward(ctx, priceWei); err != nil {
			return domain.License{}, nil, fmt.Errorf("forward license payment: %w", err)
		}
	}

	lic, err := s.store.CreateLicense(ctx, domain.License{
		ID:           uuid.NewString(),
		Account:      account,
		ParentLabel:  parentLabel,
		ChargedWei:   priceWei.String(),
		OraclePrice8: price8,
	})
	if err != nil {
		return domain.License{}, nil, fmt.Errorf("record license: %w", err)
	}

	metrics.RecordLicensePurchase()
	s.log.WithField("account", account).
		WithField("parent", parentLabel).
		WithField("charged_wei", lic.ChargedWei).
		Info("License purchased")
	return lic, refund, nil
}

// HasLicense reports whether the pair holds a license.
func (s *Service) HasLicense(ctx context.Context, account, parentLabel string) (bool, error) {
	account = strings.ToLower(strings.TrimSpace(account))
	parentLabel = strings.ToLower(strings.TrimSpace(parentLabel))

	_, err := s.store.GetLicense(ctx, account, parentLabel)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// List returns all licenses recorded under a parent label.
func (s *Service) List(ctx context.Context, parentLabel string) ([]domain.License, error) {
	return s.store.ListLicenses(ctx, strings.ToLower(strings.TrimSpace(parentLabel)))
}

// lockPair serializes operations on one (account, parent) pair without
// blocking unrelated pairs.
func (s *Service) lockPair(account, parentLabel string) func() {
	key := account + "|" + parentLabel

	s.mu.Lock()
	pl, ok := s.locks[key]
	if !ok {
		pl = &pairLock{}
		s.locks[key] = pl
	}
	pl.refs++
	s.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		s.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}
