package oracle

import (
	"context"
	"sync"
	"time"

	domain "github.com/namedock/registrar/internal/app/domain/oracle"
)

// StaticSource serves a fixed price, for tests and local development.
type StaticSource struct {
	mu    sync.RWMutex
	price domain.Price
}

var _ Source = (*StaticSource)(nil)

// NewStaticSource creates a source reporting the given 8-decimal price,
// timestamped now.
func NewStaticSource(price8 int64) *StaticSource {
	return &StaticSource{
		price: domain.Price{
			Value:     price8,
			Decimals:  FeedDecimals,
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// Set replaces the served price and its update time.
func (s *StaticSource) Set(price8 int64, updatedAt time.Time) {
	s.mu.Lock()
	s.price = domain.Price{Value: price8, Decimals: FeedDecimals, UpdatedAt: updatedAt}
	s.mu.Unlock()
}

// LatestPrice returns the configured price.
func (s *StaticSource) LatestPrice(context.Context) (domain.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price, nil
}
