package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"strider/internal/config"
)

// NewAuthCmd creates the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage model provider API keys for strider.`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Configure a provider API key",
		Long: `Configure the API key for a model provider.

Strider supports the Anthropic API and any endpoint speaking the OpenAI
chat completions protocol. The key is stored in your strider
configuration file and the chosen provider becomes the default.`,
		Example: `  # Interactive login (recommended)
  strider auth login

  # Configure the OpenAI-compatible backend
  strider auth login --provider openai

  # Provide the key directly
  strider auth login --key sk-ant-xxxxx`,
		RunE: runAuthLogin,
	}

	cmd.Flags().StringP("provider", "p", "", "provider to configure: anthropic or openai (defaults to provider.default)")
	cmd.Flags().StringP("key", "k", "", "API key (if not provided, will prompt)")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove a provider API key",
		Long:  `Remove a stored API key from strider configuration.`,
		RunE:  runAuthLogout,
	}

	cmd.Flags().StringP("provider", "p", "", "provider to clear: anthropic or openai (defaults to provider.default)")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		Long:  `Display the configured providers and their key status.`,
		RunE:  runAuthStatus,
	}
}

// resolveProvider picks the provider a command acts on.
func resolveProvider(cmd *cobra.Command, cfg *config.Config) (string, error) {
	name, _ := cmd.Flags().GetString("provider")
	if name == "" {
		name = cfg.Provider.Default
	}
	if name == "" {
		name = "anthropic"
	}

	switch name {
	case "anthropic", "openai":
		return name, nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected anthropic or openai)", name)
	}
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Logger

	providerName, err := resolveProvider(cmd, cfg)
	if err != nil {
		return err
	}

	key, _ := cmd.Flags().GetString("key")

	if key == "" {
		fmt.Printf("Strider Authentication (%s)\n", providerName)
		fmt.Println("------------------------------")
		fmt.Println("")
		if providerName == "anthropic" {
			fmt.Println("You need an Anthropic API key (https://console.anthropic.com/).")
		} else {
			fmt.Println("You need an API key for your OpenAI-compatible endpoint.")
		}
		fmt.Println("")
		fmt.Print("Enter your API key: ")

		// Read key securely (hidden input)
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
		key = strings.TrimSpace(string(keyBytes))
		fmt.Println() // New line after hidden input
	}

	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	// Basic key shape check
	expectedPrefix := "sk-"
	if providerName == "anthropic" {
		expectedPrefix = "sk-ant-"
	}
	if !strings.HasPrefix(key, expectedPrefix) {
		fmt.Println("")
		fmt.Printf("⚠️  Warning: Key doesn't look like a %s API key\n", providerName)
		fmt.Print("Continue anyway? (y/N): ")

		reader := bufio.NewReader(os.Stdin)
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))

		if response != "y" && response != "yes" {
			return fmt.Errorf("authentication cancelled")
		}
	}

	switch providerName {
	case "anthropic":
		cfg.Anthropic.APIKey = key
	case "openai":
		cfg.OpenAI.APIKey = key
	}
	cfg.Provider.Default = providerName

	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := config.SaveTo(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println("")
	fmt.Println("✓ API key saved successfully!")
	fmt.Println("")
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println("")
	fmt.Println("You can now run a task with: strider run \"your task\"")

	log.Info().Str("provider", providerName).Msg("Provider API key configured")

	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Logger

	providerName, err := resolveProvider(cmd, cfg)
	if err != nil {
		return err
	}

	var hadKey bool
	switch providerName {
	case "anthropic":
		hadKey = cfg.Anthropic.APIKey != ""
		cfg.Anthropic.APIKey = ""
	case "openai":
		hadKey = cfg.OpenAI.APIKey != ""
		cfg.OpenAI.APIKey = ""
	}

	if !hadKey {
		fmt.Printf("No API key configured for %s.\n", providerName)
		return nil
	}

	configPath := cliCtx.ConfigPath
	if configPath == "" {
		var err error
		configPath, err = config.DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := config.SaveTo(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("✓ API key for %s removed successfully!\n", providerName)
	log.Info().Str("provider", providerName).Msg("Provider API key cleared")

	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config

	fmt.Println("Authentication Status")
	fmt.Println("--------------------")
	fmt.Println("")

	defaultProvider := cfg.Provider.Default
	if defaultProvider == "" {
		defaultProvider = "anthropic"
	}
	fmt.Printf("Default provider: %s\n", defaultProvider)
	fmt.Println("")

	configured := 0
	for _, p := range []struct {
		name string
		key  string
	}{
		{"anthropic", cfg.Anthropic.APIKey},
		{"openai", cfg.OpenAI.APIKey},
	} {
		if p.key == "" {
			fmt.Printf("%-10s ❌ no key configured\n", p.name)
			continue
		}
		fmt.Printf("%-10s ✓ key configured (%s)\n", p.name, maskToken(p.key))
		configured++
	}

	fmt.Println("")
	if configured == 0 {
		fmt.Println("Run 'strider auth login' to configure a provider.")
		return nil
	}

	fmt.Println("You can run a task with: strider run \"your task\"")
	return nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
