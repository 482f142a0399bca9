package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Port != 8080 {
		t.Errorf("gateway.port = %d, want 8080", cfg.Gateway.Port)
	}
	if cfg.Gateway.Host != "127.0.0.1" {
		t.Errorf("gateway.host = %q, want 127.0.0.1", cfg.Gateway.Host)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("log.format = %q, want console", cfg.Log.Format)
	}
	if cfg.Provider.Default != "anthropic" {
		t.Errorf("provider.default = %q, want anthropic", cfg.Provider.Default)
	}
	if !cfg.Memory.EnableSummarization {
		t.Error("memory.enable_summarization = false, want true")
	}
	if cfg.Memory.SummarizeEveryNSteps != 10 {
		t.Errorf("memory.summarize_every_n_steps = %d, want 10", cfg.Memory.SummarizeEveryNSteps)
	}
	if cfg.Agent.MaxSteps != 40 {
		t.Errorf("agent.max_steps = %d, want 40", cfg.Agent.MaxSteps)
	}
	if !cfg.Profile.Enabled {
		t.Error("profile.enabled = false, want true")
	}
}

func TestLoad_FromFile(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `
gateway:
  port: 9000
  host: "0.0.0.0"
log:
  level: debug
  format: json
memory:
  summarize_every_n_steps: 5
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Port != 9000 {
		t.Errorf("gateway.port = %d, want 9000", cfg.Gateway.Port)
	}
	if cfg.Gateway.Host != "0.0.0.0" {
		t.Errorf("gateway.host = %q, want 0.0.0.0", cfg.Gateway.Host)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Memory.SummarizeEveryNSteps != 5 {
		t.Errorf("memory.summarize_every_n_steps = %d, want 5", cfg.Memory.SummarizeEveryNSteps)
	}

	// Values absent from the file keep their defaults.
	if !cfg.Memory.EnableSummarization {
		t.Error("memory.enable_summarization should default to true")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("STRIDER_GATEWAY_PORT", "7777")
	t.Setenv("STRIDER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Port != 7777 {
		t.Errorf("gateway.port = %d, want 7777", cfg.Gateway.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log.level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_Priority(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `
gateway:
  port: 9000
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("STRIDER_GATEWAY_PORT", "7777")

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Port != 7777 {
		t.Errorf("ENV should override file: gateway.port = %d, want 7777", cfg.Gateway.Port)
	}
}

func TestSetAndSave(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	_, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := Set("gateway.port", 6666); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if GetInt("gateway.port") != 6666 {
		t.Errorf("gateway.port = %d, want 6666", GetInt("gateway.port"))
	}

	Reset()
	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if cfg.Gateway.Port != 6666 {
		t.Errorf("Persisted gateway.port = %d, want 6666", cfg.Gateway.Port)
	}
}

func TestGet_Functions(t *testing.T) {
	Reset()
	defer Reset()

	_, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if GetString("gateway.host") != "127.0.0.1" {
		t.Errorf("GetString failed")
	}
	if GetInt("gateway.port") != 8080 {
		t.Errorf("GetInt failed")
	}
	if !GetBool("memory.enable_summarization") {
		t.Errorf("GetBool failed")
	}

	val := Get("gateway.port")
	if val == nil {
		t.Errorf("Get returned nil")
	}
}

func TestGetConfig(t *testing.T) {
	Reset()
	defer Reset()

	if GetConfig() != nil {
		t.Error("GetConfig should return nil before Load")
	}

	_, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("GetConfig returned nil after Load")
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("gateway.port = %d, want 8080", cfg.Gateway.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := `
gateway:
  port: [invalid
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configFile)
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	Reset()
	defer Reset()

	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for nonexistent file: %v", err)
	}

	if cfg.Gateway.Port != 8080 {
		t.Errorf("gateway.port = %d, want default 8080", cfg.Gateway.Port)
	}
}

func TestSave_WithoutPath(t *testing.T) {
	Reset()
	defer Reset()

	_, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err = Save()
	if err == nil {
		t.Error("Save should fail without config path")
	}
}

func TestGetTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeout  string
		expected time.Duration
	}{
		{"empty uses default", "", 2 * time.Minute},
		{"valid duration", "30s", 30 * time.Second},
		{"invalid falls back", "soon", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oc := OpenAIConfig{Timeout: tt.timeout}
			if got := oc.GetTimeout(); got != tt.expected {
				t.Errorf("OpenAIConfig.GetTimeout() = %v, want %v", got, tt.expected)
			}
			ac := AnthropicConfig{Timeout: tt.timeout}
			if got := ac.GetTimeout(); got != tt.expected {
				t.Errorf("AnthropicConfig.GetTimeout() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSecretStore(t *testing.T) {
	Reset()
	defer Reset()

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if _, err := Load(configFile); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	store := NewSecretStore()
	if !store.Available() {
		t.Fatal("plaintext store should always be available")
	}

	if err := store.Set("anthropic.api_key", "sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get("anthropic.api_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "sk-test" {
		t.Errorf("Get = %q, want sk-test", got)
	}

	if err := store.Delete("anthropic.api_key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = store.Get("anthropic.api_key")
	if got != "" {
		t.Errorf("Get after Delete = %q, want empty", got)
	}
}
