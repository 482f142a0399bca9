package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"strider/internal/agent"
	"strider/internal/browser"
	"strider/internal/compaction"
	"strider/internal/config"
	"strider/internal/history"
	"strider/internal/profile"
	"strider/internal/provider"
	"strider/internal/provider/anthropic"
	"strider/internal/provider/openai"
	"strider/internal/storage"
)

// Launcher builds a fresh agent for every browsing run. Each run gets
// its own driver, history, and summarizer; the provider, database, and
// profile store are shared across runs.
type Launcher struct {
	cfg      *config.Config
	prov     provider.Provider
	db       *storage.DB
	profiles *profile.Store
	logger   zerolog.Logger
}

// NewLauncher creates a launcher with the configured model provider.
func NewLauncher(cfg *config.Config, log zerolog.Logger) (*Launcher, error) {
	prov, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Launcher{cfg: cfg, prov: prov, logger: log}, nil
}

// Provider returns the model backend the launcher runs against.
func (l *Launcher) Provider() provider.Provider {
	return l.prov
}

// SetStore enables run recording in the database.
func (l *Launcher) SetStore(db *storage.DB) {
	l.db = db
}

// SetProfile enables profile recall at the start of each run.
func (l *Launcher) SetProfile(store *profile.Store) {
	l.profiles = store
}

// Launch starts one browsing run and returns its ID and event stream.
func (l *Launcher) Launch(ctx context.Context, task string) (string, <-chan agent.Event, error) {
	a, err := l.buildAgent()
	if err != nil {
		return "", nil, err
	}
	return a.Run(ctx, task)
}

// LaunchSync runs one browsing task to completion.
func (l *Launcher) LaunchSync(ctx context.Context, task string) (*agent.RunResult, error) {
	a, err := l.buildAgent()
	if err != nil {
		return nil, err
	}
	return a.RunSync(ctx, task)
}

func (l *Launcher) buildAgent() (*agent.Agent, error) {
	driver, err := l.buildDriver()
	if err != nil {
		return nil, err
	}

	hist := history.NewManager(history.DefaultConfig(), l.logger)

	settings := compaction.Settings{
		EnableSummarization:  l.cfg.Memory.EnableSummarization,
		SummarizeEveryNSteps: l.cfg.Memory.SummarizeEveryNSteps,
	}
	if settings.SummarizeEveryNSteps <= 0 {
		settings.SummarizeEveryNSteps = compaction.DefaultSettings().SummarizeEveryNSteps
	}

	summarizer, err := compaction.NewSummarizer(settings, hist, l.prov, l.cfg.Agent.Model, l.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build summarizer: %w", err)
	}

	agentCfg := agent.Config{
		Model:        l.cfg.Agent.Model,
		MaxSteps:     l.cfg.Agent.MaxSteps,
		MaxTokens:    l.cfg.Agent.MaxTokens,
		Temperature:  l.cfg.Agent.Temperature,
		SystemPrompt: l.cfg.Agent.SystemPrompt,
	}

	a := agent.New(agentCfg, l.prov, driver, hist, summarizer, l.logger)
	if l.db != nil {
		a.SetStore(l.db)
	}
	if l.profiles != nil {
		a.SetProfile(l.profiles)
	}
	return a, nil
}

// buildDriver loads the site map fresh for each run so edits to the
// file apply without a restart.
func (l *Launcher) buildDriver() (browser.Driver, error) {
	if l.cfg.Browser.SiteFile == "" {
		return browser.NewScriptedDriver(nil), nil
	}

	sitePath, err := config.ExpandPath(l.cfg.Browser.SiteFile)
	if err != nil {
		return nil, err
	}
	pages, err := browser.LoadSite(sitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load site map: %w", err)
	}
	return browser.NewScriptedDriver(pages), nil
}

// buildProvider constructs the configured model backend.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider.Default
	if name == "" {
		name = "anthropic"
	}

	switch name {
	case "anthropic":
		return anthropic.NewAnthropicProvider(anthropic.Config{
			APIKey:    cfg.Anthropic.APIKey,
			BaseURL:   cfg.Anthropic.BaseURL,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
			Timeout:   cfg.Anthropic.GetTimeout(),
		})

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: api key is required")
		}
		return openai.NewOpenAIProvider(openai.Config{
			APIKey:    cfg.OpenAI.APIKey,
			Endpoint:  cfg.OpenAI.Endpoint,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
			Timeout:   cfg.OpenAI.GetTimeout(),
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
