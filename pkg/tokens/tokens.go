// Package tokens provides tiktoken-based token counting used to bound
// assembled model context.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Counter provides token counting for context budgeting. All supported
// providers are approximated with the GPT-4 encoding, which is close enough
// for budget enforcement.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a token counter.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text. Falls back to a 4-chars-per-
// token estimate if the codec is unavailable.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / 4
	}
	count, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// Estimate returns a character-based token estimate without a Counter.
func Estimate(text string) int {
	return len(text) / 4
}
