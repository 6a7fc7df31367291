package chain

import (
	"context"
	"fmt"
)

// WrapperReader exposes the read-only name wrapper queries the registrar
// needs: parent ownership, operator approval and subname availability.
// Registration itself is submitted on-chain by the wrapper operator and is
// outside this client's responsibility.
type WrapperReader struct {
	client   *Client
	contract string
	// tld is the suffix under which parent labels live, e.g. "eth".
	tld string
}

// NewWrapperReader creates a reader bound to a wrapper contract address.
func NewWrapperReader(client *Client, contract, tld string) (*WrapperReader, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client required")
	}
	if contract == "" {
		return nil, fmt.Errorf("wrapper contract address required")
	}
	if tld == "" {
		tld = "eth"
	}
	return &WrapperReader{client: client, contract: contract, tld: tld}, nil
}

// OwnerOf returns the owner address of a parent label, or the zero value
// when the name is unregistered.
func (w *WrapperReader) OwnerOf(ctx context.Context, parentLabel string) (string, error) {
	node := Namehash(parentLabel + "." + w.tld)
	result, err := w.client.EthCall(ctx, w.contract, encodeCall("ownerOf(uint256)", node[:]))
	if err != nil {
		return "", fmt.Errorf("ownerOf call: %w", err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return "", err
	}
	if len(words) == 0 {
		return "", fmt.Errorf("ownerOf: empty result")
	}
	if wordIsZero(words[0]) {
		return "", nil
	}
	return wordToAddress(words[0]), nil
}

// IsApprovedForAll reports whether operator may manage names owned by owner.
func (w *WrapperReader) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	ownerWord, err := addressWord(owner)
	if err != nil {
		return false, err
	}
	operatorWord, err := addressWord(operator)
	if err != nil {
		return false, err
	}

	result, err := w.client.EthCall(ctx, w.contract,
		encodeCall("isApprovedForAll(address,address)", ownerWord, operatorWord))
	if err != nil {
		return false, fmt.Errorf("isApprovedForAll call: %w", err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, fmt.Errorf("isApprovedForAll: empty result")
	}
	return !wordIsZero(words[0]), nil
}

// Available reports whether a subname under the parent has no owner yet.
func (w *WrapperReader) Available(ctx context.Context, parentLabel, label string) (bool, error) {
	node := Namehash(label + "." + parentLabel + "." + w.tld)
	result, err := w.client.EthCall(ctx, w.contract, encodeCall("ownerOf(uint256)", node[:]))
	if err != nil {
		return false, fmt.Errorf("ownerOf call: %w", err)
	}

	words, err := decodeWords(result)
	if err != nil {
		return false, err
	}
	if len(words) == 0 {
		return false, fmt.Errorf("ownerOf: empty result")
	}
	return wordIsZero(words[0]), nil
}
