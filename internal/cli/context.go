package cli

import (
	"sync"

	"github.com/rs/zerolog"

	"strider/internal/config"
	"strider/internal/storage"
	"strider/pkg/logger"
)

// CLIContext carries the loaded configuration and lazily opened
// resources through a command invocation.
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	StoragePath string
	Verbose     bool
	Quiet       bool

	storageOnce sync.Once
	storage     *storage.DB
	storageErr  error
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, storagePath string, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:      cfg,
		ConfigPath:  configPath,
		Logger:      log,
		StoragePath: storagePath,
		Verbose:     verbose,
		Quiet:       quiet,
	}
}

// GetStorage opens the database on first use.
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	c.storageOnce.Do(func() {
		c.storage, c.storageErr = storage.Open(c.StoragePath)
	})
	return c.storage, c.storageErr
}

// Close releases opened resources.
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log returns the logger, falling back to the global one.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
