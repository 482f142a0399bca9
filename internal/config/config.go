package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Provider  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
	OpenAI    OpenAIConfig    `mapstructure:"openai" yaml:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic" yaml:"anthropic"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Memory    MemoryConfig    `mapstructure:"memory" yaml:"memory"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Profile   ProfileConfig   `mapstructure:"profile" yaml:"profile"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Port      int             `mapstructure:"port" yaml:"port"`
	Host      string          `mapstructure:"host" yaml:"host"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per client request throttling.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	// Default is the backend used when nothing else is specified:
	// openai or anthropic.
	Default string `mapstructure:"default" yaml:"default"`
}

// OpenAIConfig configures the OpenAI backend. Endpoint accepts any
// gateway speaking the chat completions protocol.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}

// GetTimeout parses the Timeout field, defaulting to 2 minutes.
func (c *OpenAIConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 2*time.Minute)
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout"`
}

// GetTimeout parses the Timeout field, defaulting to 2 minutes.
func (c *AnthropicConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout, 2*time.Minute)
}

// AgentConfig configures the browse loop.
type AgentConfig struct {
	// Model overrides the backend default model when set.
	Model        string  `mapstructure:"model" yaml:"model,omitempty"`
	MaxSteps     int     `mapstructure:"max_steps" yaml:"max_steps"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// MemoryConfig configures history compaction.
type MemoryConfig struct {
	EnableSummarization  bool `mapstructure:"enable_summarization" yaml:"enable_summarization"`
	SummarizeEveryNSteps int  `mapstructure:"summarize_every_n_steps" yaml:"summarize_every_n_steps"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StorageConfig configures the run database.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// ProfileConfig configures long term user memory.
type ProfileConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	RecallLimit int  `mapstructure:"recall_limit" yaml:"recall_limit"`
}

// BrowserConfig configures the browser driver.
type BrowserConfig struct {
	// SiteFile points to a YAML site map served by the scripted
	// driver. Empty means an empty site.
	SiteFile string `mapstructure:"site_file" yaml:"site_file,omitempty"`
}

// ScheduleConfig configures recurring task execution.
type ScheduleConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	TasksFile string `mapstructure:"tasks_file" yaml:"tasks_file"`
}

func parseTimeout(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

var (
	globalConfig *Config
	configPath   string
	mu           sync.RWMutex
)

// Load reads configuration with priority ENV > file > defaults.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("STRIDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		configPath = expandedPath

		viper.SetConfigFile(expandedPath)
		if err := viper.ReadInConfig(); err != nil {
			// A missing file falls back to defaults; a broken one
			// does not.
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) && !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigParseError); ok {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the currently loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// Get returns an arbitrary configuration value.
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string configuration value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an integer configuration value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a boolean configuration value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// Set stores a configuration value and persists it when a config
// file path is known.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)

	if configPath != "" {
		return save()
	}
	return nil
}

// Save writes the current configuration to the loaded file path.
func Save() error {
	mu.Lock()
	defer mu.Unlock()
	return save()
}

// save writes the config file. Caller holds the lock.
func save() error {
	if configPath == "" {
		return errors.New("config path not set")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}

	// 0600 because the file carries API keys.
	return os.WriteFile(configPath, data, 0600)
}

// SaveTo writes cfg to an explicit path.
func SaveTo(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Reset clears loaded state. Mainly for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	configPath = ""
	viper.Reset()
}

// SetTestConfig installs a configuration directly. Tests only.
func SetTestConfig(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = cfg
}
