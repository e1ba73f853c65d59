package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbit-chat/orbit/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want info", cfg.Logger.Level)
	}
	if cfg.Database.Path != "orbit.db" {
		t.Errorf("Database.Path = %q, want orbit.db", cfg.Database.Path)
	}
	if cfg.Gemini.ModelName != config.DefaultGeminiModel {
		t.Errorf("Gemini.ModelName = %q, want default", cfg.Gemini.ModelName)
	}
	if cfg.Gemini.MaxRetries != 3 {
		t.Errorf("Gemini.MaxRetries = %d, want 3", cfg.Gemini.MaxRetries)
	}
	if cfg.Analysis.SampleSize != 500 {
		t.Errorf("Analysis.SampleSize = %d, want 500", cfg.Analysis.SampleSize)
	}
	if cfg.Retention.UploadTTL != 24*time.Hour {
		t.Errorf("Retention.UploadTTL = %v, want 24h", cfg.Retention.UploadTTL)
	}
	if task, ok := cfg.Scheduler.Tasks["retention"]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("Scheduler.Tasks[retention] = %+v, want enabled with schedule", task)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
logger:
  level: debug
  json: false
database:
  path: /tmp/orbit-test.db
gemini:
  api_key: test-key
  model_name: gemini-2.0-pro
analysis:
  sample_size: 250
retention:
  upload_ttl: 48h
`)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "debug" || cfg.Logger.JSON {
		t.Errorf("Logger = %+v", cfg.Logger)
	}
	if cfg.Database.Path != "/tmp/orbit-test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Gemini.APIKey != "test-key" || cfg.Gemini.ModelName != "gemini-2.0-pro" {
		t.Errorf("Gemini = %+v", cfg.Gemini)
	}
	if cfg.Analysis.SampleSize != 250 {
		t.Errorf("Analysis.SampleSize = %d, want 250", cfg.Analysis.SampleSize)
	}
	if cfg.Retention.UploadTTL != 48*time.Hour {
		t.Errorf("Retention.UploadTTL = %v, want 48h", cfg.Retention.UploadTTL)
	}
	// Unset sections keep their defaults.
	if cfg.Analysis.MaxContextChars != 15000 {
		t.Errorf("Analysis.MaxContextChars = %d, want default", cfg.Analysis.MaxContextChars)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ORBIT_LOGGER_LEVEL", "warn")
	t.Setenv("ORBIT_GEMINI_API_KEY", "env-key")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Logger.Level = %q, want env override warn", cfg.Logger.Level)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want env override", cfg.Gemini.APIKey)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad log level",
			content: "logger:\n  level: verbose\n",
		},
		{
			name:    "sample size below minimum",
			content: "analysis:\n  sample_size: 1\n",
		},
		{
			name:    "retention below one hour",
			content: "retention:\n  upload_ttl: 5m\n",
		},
		{
			name:    "retries above maximum",
			content: "gemini:\n  max_retries: 50\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := config.LoadConfig(path); err == nil {
				t.Error("LoadConfig() error = nil, want validation error")
			}
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := writeConfig(t, "logger: [not a map\n")
	if _, err := config.LoadConfig(path); err == nil {
		t.Error("LoadConfig() error = nil, want parse error")
	}
}
