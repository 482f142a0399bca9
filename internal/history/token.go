package history

import "strider/internal/provider"

// Per-message overhead for role and separators.
const roleOverheadTokens = 4

// DefaultCharsPerToken is the estimation divisor used when the config
// does not override it.
const DefaultCharsPerToken = 3

// TokenCounter estimates token counts for text and messages.
// The estimate is a character heuristic, not a tokenizer; every
// component that accounts tokens must share one counter so totals
// stay comparable.
type TokenCounter struct {
	charsPerToken int
}

// NewTokenCounter creates a TokenCounter with the given divisor.
// Non-positive divisors fall back to DefaultCharsPerToken.
func NewTokenCounter(charsPerToken int) *TokenCounter {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &TokenCounter{charsPerToken: charsPerToken}
}

// CountText estimates the token count for a text string, rounding up.
func (tc *TokenCounter) CountText(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + tc.charsPerToken - 1) / tc.charsPerToken
}

// CountMessage estimates the token count for a single message,
// including the per-message role overhead.
func (tc *TokenCounter) CountMessage(msg provider.Message) int {
	return tc.CountText(msg.Content) + roleOverheadTokens
}

// CountMessages estimates the total token count for a slice of messages.
func (tc *TokenCounter) CountMessages(messages []provider.Message) int {
	total := 0
	for _, msg := range messages {
		total += tc.CountMessage(msg)
	}
	return total
}
