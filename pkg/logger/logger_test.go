package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitConsoleFormat(t *testing.T) {
	defer func() { _ = Close() }()

	if err := Init(Config{Level: "debug", Format: "console"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if Get() == nil {
		t.Fatal("Get() returned nil")
	}
}

func TestInitWithFile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "strider.log")

	defer func() { _ = Close() }()

	if err := Init(Config{Level: "debug", Format: "json", File: logPath}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Info().Str("run_id", "abc").Msg("run started")

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Read log file failed: %v", err)
	}
	if !strings.Contains(string(content), "run started") {
		t.Errorf("log file missing expected message, got: %s", string(content))
	}
}

func TestInitWithInvalidFile(t *testing.T) {
	defer func() { _ = Close() }()

	err := Init(Config{Level: "info", Format: "json", File: "/nonexistent/directory/strider.log"})
	if err == nil {
		t.Error("expected error for invalid file path")
	}
}

func TestWithComponent(t *testing.T) {
	defer func() { _ = Close() }()

	if err := Init(Config{Level: "debug", Format: "json"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	l := With("compaction")
	if l == nil {
		t.Fatal("With() returned nil")
	}
}

func TestComponentFieldPresent(t *testing.T) {
	var buf bytes.Buffer

	base := zerolog.New(&buf)
	l := base.With().Str("component", "agent").Logger()
	l.Info().Msg("step complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	if entry["component"] != "agent" {
		t.Errorf("expected component 'agent', got %v", entry["component"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	l := zerolog.New(&buf).Level(zerolog.WarnLevel)

	l.Debug().Msg("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered")
	}

	l.Warn().Msg("warn message")
	if buf.Len() == 0 {
		t.Error("warn message should be logged")
	}
}

func TestGetWithoutInit(t *testing.T) {
	mu.Lock()
	initialized = false
	mu.Unlock()

	if Get() == nil {
		t.Fatal("Get() should return a default logger when not initialized")
	}
}
