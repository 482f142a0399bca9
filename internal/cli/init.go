package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"strider/internal/cli/defaults"
	"strider/internal/config"
	"strider/internal/storage"
)

// InitOptions holds init command options.
type InitOptions struct {
	Force bool
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize strider configuration",
		Long:  "Create the strider configuration directory, default config, demo site map, and database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunInit(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// RunInit performs the initialization.
func RunInit(opts *InitOptions) error {
	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return fmt.Errorf("get config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !opts.Force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	for _, dir := range []string{configDir, filepath.Join(configDir, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	defaultConfig := map[string]any{
		"gateway": map[string]any{
			"port": 8080,
			"host": "127.0.0.1",
		},
		"provider": map[string]any{
			"default": "anthropic",
		},
		"log": map[string]any{
			"level":  "info",
			"format": "console",
		},
		"memory": map[string]any{
			"enable_summarization":    true,
			"summarize_every_n_steps": 10,
		},
		"profile": map[string]any{
			"enabled": true,
		},
		"schedule": map[string]any{
			"enabled":    false,
			"tasks_file": filepath.Join(configDir, "tasks.yaml"),
		},
		"browser": map[string]any{
			"site_file": filepath.Join(configDir, "site.yaml"),
		},
	}

	data, err := yaml.Marshal(defaultConfig)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// 0600 because auth tokens end up in this file.
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	dataPath, err := config.DefaultDataPath()
	if err != nil {
		return fmt.Errorf("get data path: %w", err)
	}

	db, err := storage.Open(dataPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	db.Close()

	for _, name := range []string{"site.yaml", "tasks.yaml"} {
		if err := copyStarterFile(configDir, name, opts.Force); err != nil {
			fmt.Printf("Warning: failed to write %s: %v\n", name, err)
		}
	}

	fmt.Printf("Initialized strider at %s\n", configDir)
	fmt.Printf("  Config:   %s\n", configPath)
	fmt.Printf("  Database: %s\n", dataPath)
	fmt.Printf("  Site map: %s\n", filepath.Join(configDir, "site.yaml"))
	fmt.Println("")
	fmt.Println("Next: configure a model provider with 'strider auth login'")

	return nil
}

// copyStarterFile writes one embedded starter file unless it exists.
func copyStarterFile(configDir, name string, force bool) error {
	destPath := filepath.Join(configDir, name)

	if _, err := os.Stat(destPath); err == nil && !force {
		return nil
	}

	data, err := defaults.FS().ReadFile(name)
	if err != nil {
		return err
	}

	return os.WriteFile(destPath, data, 0644)
}
