package history

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"strider/internal/provider"
)

// Config holds message history settings.
type Config struct {
	// MaxInputTokens caps the estimated token total the history may
	// hold. Zero or negative disables trimming.
	MaxInputTokens int `json:"max_input_tokens" mapstructure:"max_input_tokens"`
	// CharsPerToken is the divisor for the token estimation heuristic.
	CharsPerToken int `json:"chars_per_token" mapstructure:"chars_per_token"`
}

// DefaultConfig returns the default history settings.
func DefaultConfig() Config {
	return Config{
		MaxInputTokens: 128000,
		CharsPerToken:  DefaultCharsPerToken,
	}
}

// Manager owns the ordered message history and its token accounting.
// The running total always equals the sum of the metadata token counts
// of the messages it holds. All mutation goes through Append and
// Rewrite; a single goroutine drives mutation while the lock lets
// observers read a consistent snapshot.
type Manager struct {
	mu       sync.RWMutex
	counter  *TokenCounter
	maxInput int
	messages []ManagedMessage
	tokens   int
	log      zerolog.Logger
}

// NewManager creates an empty history manager.
func NewManager(cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		counter:  NewTokenCounter(cfg.CharsPerToken),
		maxInput: cfg.MaxInputTokens,
		log:      log,
	}
}

// Append counts, tags, and appends a message, updating the total.
// When the total exceeds the input budget the newest step content is
// trimmed to fit.
func (m *Manager) Append(msg provider.Message, typ MessageType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := ManagedMessage{
		Message:  msg,
		Metadata: Metadata{Tokens: m.counter.CountMessage(msg), Type: typ},
	}
	m.messages = append(m.messages, entry)
	m.tokens += entry.Metadata.Tokens
	m.trimToBudget()
}

// Messages returns a copy of the managed history in order.
func (m *Manager) Messages() []ManagedMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ManagedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// ModelMessages returns the bare chat messages for a model call.
func (m *Manager) ModelMessages() []provider.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]provider.Message, len(m.messages))
	for i, entry := range m.messages {
		out[i] = entry.Message
	}
	return out
}

// CurrentTokens returns the running token total.
func (m *Manager) CurrentTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens
}

// Len returns the number of managed messages.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// CountTokens estimates the token cost of a message using the same
// counter that priced every entry already in the history.
func (m *Manager) CountTokens(msg provider.Message) int {
	return m.counter.CountMessage(msg)
}

// Rewrite replaces the history and its token total in one step.
// The supplied total must equal the sum of the metadata token counts;
// a mismatch rejects the rewrite and leaves the prior state in place.
func (m *Manager) Rewrite(messages []ManagedMessage, tokens int) error {
	sum := 0
	for _, entry := range messages {
		sum += entry.Metadata.Tokens
	}
	if sum != tokens {
		return fmt.Errorf("%w: total %d, metadata sums to %d", ErrTokenMismatch, tokens, sum)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append([]ManagedMessage(nil), messages...)
	m.tokens = tokens
	return nil
}

// trimToBudget shortens the newest step entry when the total exceeds
// the input budget. Init and memory entries are never trimmed.
// Caller holds the lock.
func (m *Manager) trimToBudget() {
	if m.maxInput <= 0 || m.tokens <= m.maxInput {
		return
	}
	idx := len(m.messages) - 1
	if idx < 0 || m.messages[idx].Metadata.Type != TypeStep {
		return
	}
	last := &m.messages[idx]
	if last.Metadata.Tokens <= 0 {
		return
	}

	over := m.tokens - m.maxInput
	proportion := float64(over) / float64(last.Metadata.Tokens)
	if proportion >= 1 {
		proportion = 0.99
	}

	runes := []rune(last.Message.Content)
	keep := int(float64(len(runes)) * (1 - proportion))
	if keep < 0 {
		keep = 0
	}
	last.Message.Content = string(runes[:keep])

	recounted := m.counter.CountMessage(last.Message)
	m.tokens += recounted - last.Metadata.Tokens
	last.Metadata.Tokens = recounted

	m.log.Debug().
		Int("over_budget", over).
		Int("kept_chars", keep).
		Int("current_tokens", m.tokens).
		Msg("trimmed newest step message to fit input budget")
}
