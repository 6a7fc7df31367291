package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domain "github.com/namedock/registrar/internal/app/domain/oracle"
	"github.com/namedock/registrar/internal/chain"
	"github.com/namedock/registrar/pkg/logger"
)

// ChainSource reads a Chainlink-style aggregator contract over JSON-RPC.
type ChainSource struct {
	client     *chain.Client
	aggregator string
	log        *logger.Logger

	mu       sync.Mutex
	decimals int
}

var _ Source = (*ChainSource)(nil)

// NewChainSource creates a source bound to an aggregator contract address.
func NewChainSource(client *chain.Client, aggregator string, log *logger.Logger) (*ChainSource, error) {
	aggregator = strings.TrimSpace(aggregator)
	if client == nil {
		return nil, fmt.Errorf("chain client required")
	}
	if aggregator == "" {
		return nil, fmt.Errorf("aggregator address required")
	}
	if log == nil {
		log = logger.NewDefault("oracle-chain-source")
	}
	return &ChainSource{client: client, aggregator: aggregator, log: log}, nil
}

// LatestPrice reads latestRoundData from the aggregator and reports the
// price at the scale the aggregator itself declares.
func (s *ChainSource) LatestPrice(ctx context.Context) (domain.Price, error) {
	decimals, err := s.feedDecimals(ctx)
	if err != nil {
		return domain.Price{}, fmt.Errorf("aggregator decimals: %w", err)
	}

	round, err := s.client.LatestRoundData(ctx, s.aggregator)
	if err != nil {
		return domain.Price{}, fmt.Errorf("aggregator read: %w", err)
	}
	if !round.Answer.IsInt64() {
		return domain.Price{}, fmt.Errorf("aggregator answer out of range: %s", round.Answer)
	}
	return domain.Price{
		Value:     round.Answer.Int64(),
		Decimals:  decimals,
		UpdatedAt: round.UpdatedAt,
	}, nil
}

// feedDecimals reads decimals() once and caches it; the scale of a deployed
// aggregator never changes.
func (s *ChainSource) feedDecimals(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decimals != 0 {
		return s.decimals, nil
	}
	decimals, err := s.client.FeedDecimals(ctx, s.aggregator)
	if err != nil {
		return 0, err
	}
	if decimals != FeedDecimals {
		s.log.WithField("decimals", decimals).Warn("Aggregator scale differs from the expected feed scale")
	}
	s.decimals = decimals
	return decimals, nil
}
