package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// RoundData is the result of a Chainlink-style aggregator read.
type RoundData struct {
	Answer    *big.Int
	UpdatedAt time.Time
}

// LatestRoundData reads latestRoundData() from an aggregator contract.
// The aggregator returns (roundId, answer, startedAt, updatedAt,
// answeredInRound); only answer and updatedAt matter here.
func (c *Client) LatestRoundData(ctx context.Context, aggregator string) (RoundData, error) {
	result, err := c.EthCall(ctx, aggregator, encodeCall("latestRoundData()"))
	if err != nil {
		return RoundData{}, fmt.Errorf("latestRoundData call: %w", err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return RoundData{}, err
	}
	if len(words) < 5 {
		return RoundData{}, fmt.Errorf("latestRoundData: expected 5 words, got %d", len(words))
	}

	updated := wordToBig(words[3])
	if !updated.IsInt64() {
		return RoundData{}, fmt.Errorf("latestRoundData: updatedAt out of range")
	}

	return RoundData{
		Answer:    wordToBig(words[1]),
		UpdatedAt: time.Unix(updated.Int64(), 0).UTC(),
	}, nil
}

// FeedDecimals reads decimals() from an aggregator contract.
func (c *Client) FeedDecimals(ctx context.Context, aggregator string) (int, error) {
	result, err := c.EthCall(ctx, aggregator, encodeCall("decimals()"))
	if err != nil {
		return 0, fmt.Errorf("decimals call: %w", err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return 0, err
	}
	if len(words) == 0 {
		return 0, fmt.Errorf("decimals: empty result")
	}

	decimals := wordToBig(words[0])
	if !decimals.IsInt64() || decimals.Int64() > 77 {
		return 0, fmt.Errorf("decimals: value out of range")
	}
	return int(decimals.Int64()), nil
}
