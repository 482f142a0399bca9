package agent

// Config holds configuration for the browse loop.
type Config struct {
	// Model is the model identifier passed to the provider.
	Model string `mapstructure:"model" json:"model"`

	// MaxSteps is the maximum number of steps per run.
	// Default is 40.
	MaxSteps int `mapstructure:"max_steps" json:"max_steps"`

	// MaxTokens is the maximum number of tokens for model output.
	// Default is 2048.
	MaxTokens int `mapstructure:"max_tokens" json:"max_tokens"`

	// Temperature controls the randomness of the model output.
	// Default is 0.3.
	Temperature float64 `mapstructure:"temperature" json:"temperature"`

	// SystemPrompt is an optional custom system prompt.
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:    40,
		MaxTokens:   2048,
		Temperature: 0.3,
	}
}

// withDefaults fills unset fields and clamps temperature to [0, 2].
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Temperature > 2 {
		c.Temperature = 2
	}
	return c
}
