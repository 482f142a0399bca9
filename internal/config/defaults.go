package config

import (
	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
func SetDefaults() {
	// Gateway
	viper.SetDefault("gateway.port", 8080)
	viper.SetDefault("gateway.host", "127.0.0.1")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	// Provider
	viper.SetDefault("provider.default", "anthropic")

	// OpenAI
	viper.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.max_tokens", 4096)
	viper.SetDefault("openai.timeout", "2m")

	// Anthropic
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("anthropic.max_tokens", 4096)
	viper.SetDefault("anthropic.timeout", "2m")

	// Agent
	viper.SetDefault("agent.max_steps", 40)
	viper.SetDefault("agent.max_tokens", 2048)
	viper.SetDefault("agent.temperature", 0.3)

	// Memory
	viper.SetDefault("memory.enable_summarization", true)
	viper.SetDefault("memory.summarize_every_n_steps", 10)

	// Storage
	viper.SetDefault("storage.driver", "sqlite")

	// Profile
	viper.SetDefault("profile.enabled", true)
	viper.SetDefault("profile.recall_limit", 5)

	// Schedule
	viper.SetDefault("schedule.enabled", false)
	viper.SetDefault("schedule.tasks_file", "~/.strider/tasks.yaml")
}
