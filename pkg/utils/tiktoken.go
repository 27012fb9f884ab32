// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with a BPE encoding chosen from a model name.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter for model. gpt-4o and o-series models use
// o200k_base; everything else, including unknown models, uses cl100k_base.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding := tokenizer.Cl100kBase
	name := strings.ToLower(model)
	if strings.HasPrefix(name, "gpt-4o") || strings.HasPrefix(name, "o1") || strings.HasPrefix(name, "o3") {
		encoding = tokenizer.O200kBase
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// CountAll sums CountTokens over texts.
func (tc *TokenCounter) CountAll(texts ...string) int {
	total := 0
	for _, text := range texts {
		total += tc.CountTokens(text)
	}
	return total
}

// CountTokensSimple counts with the default cl100k_base encoding.
func CountTokensSimple(text string) int {
	counter, err := NewTokenCounter("")
	if err != nil {
		return len(text) / 4
	}
	return counter.CountTokens(text)
}
