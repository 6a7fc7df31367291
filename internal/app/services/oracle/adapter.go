// Package oracle adapts the external native/USD price feed and enforces
// freshness before any price is used for conversion.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/pkg/logger"
)

// FeedDecimals is the fixed-point scale of the observed price feed.
const FeedDecimals = 8

var (
	// ErrOracleUnavailable indicates the underlying feed could not be
	// reached. Callers may retry later.
	ErrOracleUnavailable = errors.New("price oracle unavailable")

	// ErrStalePrice indicates the feed's last update is older than the
	// configured maximum age. No fallback price is ever substituted.
	ErrStalePrice = errors.New("price oracle stale")
)

// Source retrieves the latest price from an external feed.
type Source interface {
	LatestPrice(ctx context.Context) (domain.Price, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (domain.Price, error)

func (f SourceFunc) LatestPrice(ctx context.Context) (domain.Price, error) {
	if f == nil {
		return domain.Price{}, ErrOracleUnavailable
	}
	return f(ctx)
}

// Adapter wraps a Source with staleness and sanity checks.
type Adapter struct {
	source  Source
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time
	log     *logger.Logger
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithMaxAge overrides the staleness threshold.
func WithMaxAge(maxAge time.Duration) Option {
	return func(a *Adapter) {
		if maxAge > 0 {
			a.maxAge = maxAge
		}
	}
}

// WithTimeout bounds each source read.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		if timeout > 0 {
			a.timeout = timeout
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAdapter constructs an adapter over the given source.
func NewAdapter(source Source, log *logger.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = logger.NewDefault("oracle")
	}
	a := &Adapter{
		source:  source,
		maxAge:  3 * time.Hour,
		timeout: 10 * time.Second,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LatestPrice returns the current feed price after freshness validation.
func (a *Adapter) LatestPrice(ctx context.Context) (domain.Price, error) {
	if a.source == nil {
		return domain.Price{}, ErrOracleUnavailable
	}

	readCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	price, err := a.source.LatestPrice(readCtx)
	if err != nil {
		if errors.Is(err, ErrStalePrice) {
			return domain.Price{}, err
		}
		a.log.WithError(err).Warn("price feed read failed")
		return domain.Price{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	if price.Value <= 0 {
		return domain.Price{}, fmt.Errorf("%w: non-positive answer %d", ErrOracleUnavailable, price.Value)
	}
	if price.Decimals != FeedDecimals {
		return domain.Price{}, fmt.Errorf("%w: unexpected decimals %d", ErrOracleUnavailable, price.Decimals)
	}

	if age := a.now().Sub(price.UpdatedAt); age > a.maxAge {
		return domain.Price{}, fmt.Errorf("%w: last update %s ago", ErrStalePrice, age.Round(time.Second))
	}
	return price, nil
}

// MaxAge reports the configured staleness threshold.
func (a *Adapter) MaxAge() time.Duration { return a.maxAge }
