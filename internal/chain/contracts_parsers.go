package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

// keccak256 hashes data with the Ethereum-legacy Keccak variant.
func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// selector returns the 4-byte function selector for an ABI signature.
func selector(signature string) []byte {
	return keccak256([]byte(signature))[:4]
}

// Namehash computes the ENS namehash of a dot-separated name.
// Labels must already be normalised to lowercase.
func Namehash(name string) [wordSize]byte {
	var node [wordSize]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := keccak256([]byte(labels[i]))
		copy(node[:], keccak256(node[:], labelHash))
	}
	return node
}

// encodeCall builds calldata from a selector signature and 32-byte words.
func encodeCall(signature string, words ...[]byte) []byte {
	data := make([]byte, 0, 4+len(words)*wordSize)
	data = append(data, selector(signature)...)
	for _, w := range words {
		data = append(data, padWord(w)...)
	}
	return data
}

// padWord left-pads a value to a 32-byte ABI word.
func padWord(value []byte) []byte {
	if len(value) >= wordSize {
		return value[:wordSize]
	}
	word := make([]byte, wordSize)
	copy(word[wordSize-len(value):], value)
	return word
}

// addressWord converts a 0x-prefixed address into an ABI word.
func addressWord(address string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(address), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", address, err)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("address %q: expected 20 bytes, got %d", address, len(raw))
	}
	return padWord(raw), nil
}

// decodeWords splits a hex call result into 32-byte words.
func decodeWords(hexResult string) ([][]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexResult, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode call result: %w", err)
	}
	if len(raw)%wordSize != 0 {
		return nil, fmt.Errorf("call result length %d not word-aligned", len(raw))
	}
	words := make([][]byte, 0, len(raw)/wordSize)
	for i := 0; i < len(raw); i += wordSize {
		words = append(words, raw[i:i+wordSize])
	}
	return words, nil
}

// wordToBig interprets an ABI word as an unsigned integer.
func wordToBig(word []byte) *big.Int {
	return new(big.Int).SetBytes(word)
}

// wordToAddress extracts the trailing 20 bytes of a word as a 0x address.
func wordToAddress(word []byte) string {
	return "0x" + hex.EncodeToString(word[wordSize-20:])
}

// wordIsZero reports whether every byte of a word is zero.
func wordIsZero(word []byte) bool {
	for _, b := range word {
		if b != 0 {
			return false
		}
	}
	return true
}

func parseHexUint64(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return 0, fmt.Errorf("parse hex number %q", value)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex number %q overflows uint64", value)
	}
	return n.Uint64(), nil
}
