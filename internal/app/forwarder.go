package app

import (
	"context"
	"math/big"
	"sync"

	"github.com/namedock/registrar/internal/app/services/license"
	"github.com/namedock/registrar/pkg/logger"
)

// PayoutForwarder records each settlement destined for the payout account
// and keeps the running total. Fund movement itself is settled out of band
// against the logged ledger.
type PayoutForwarder struct {
	account string
	log     *logger.Logger

	mu    sync.Mutex
	total *big.Int
}

var _ license.Forwarder = (*PayoutForwarder)(nil)

// NewPayoutForwarder creates a forwarder bound to the payout account.
func NewPayoutForwarder(account string, log *logger.Logger) *PayoutForwarder {
	if log == nil {
		log = logger.NewDefault("payout")
	}
	return &PayoutForwarder{account: account, log: log, total: new(big.Int)}
}

// Forward records one settlement. Zero amounts are ignored.
func (f *PayoutForwarder) Forward(_ context.Context, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}

	f.mu.Lock()
	f.total.Add(f.total, amount)
	total := f.total.String()
	f.mu.Unlock()

	f.log.WithField("payout_account", f.account).
		WithField("amount_wei", amount.String()).
		WithField("total_wei", total).
		Info("Settlement forwarded")
	return nil
}

// Total reports the cumulative forwarded amount.
func (f *PayoutForwarder) Total() *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.total)
}

// Account reports the configured payout account.
func (f *PayoutForwarder) Account() string { return f.account }
