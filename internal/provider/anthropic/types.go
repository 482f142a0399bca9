package anthropic

import "time"

// Default configuration values.
const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultTimeout   = 2 * time.Minute
	DefaultMaxTokens = 4096
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Model:     DefaultModel,
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
	}
}
