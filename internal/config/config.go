// Package config provides configuration loading, validation, and
// management for the application. It reads YAML files with ORBIT_
// environment variable overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GeminiConfig holds the text generation backend settings. An empty
// APIKey disables generation; every narrative then comes from the
// deterministic fallbacks.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=300"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
}

// AnalysisConfig bounds the context fed to card and narrative
// generation.
type AnalysisConfig struct {
	SampleSize      int `mapstructure:"sample_size"       validate:"min=10,max=5000"`
	MaxContextChars int `mapstructure:"max_context_chars" validate:"min=1000,max=200000"`
}

// TaskConfig enables one scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// RetentionConfig controls how long uploads and their derived data are
// kept before the retention task removes them.
type RetentionConfig struct {
	UploadTTL time.Duration `mapstructure:"upload_ttl" validate:"min=1h"`
}

// Config defines the application configuration parameters.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// LoadConfig reads configuration from the given YAML file, applies
// ORBIT_ environment overrides and defaults, and validates the result.
// A missing config file is not an error; defaults and environment
// variables are used instead.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ORBIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			slog.Info("Config file not found, using defaults and environment", "path", path)
		} else {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("database.path", DefaultDBPath)

	// Registered even though empty so the ORBIT_GEMINI_API_KEY override
	// is visible to Unmarshal.
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelaySeconds)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)

	v.SetDefault("analysis.sample_size", DefaultAnalysisSampleSize)
	v.SetDefault("analysis.max_context_chars", DefaultAnalysisMaxContextChars)

	v.SetDefault("retention.upload_ttl", DefaultUploadTTL)

	v.SetDefault("scheduler.tasks", map[string]any{
		"retention":       map[string]any{"enabled": true, "schedule": DefaultRetentionSchedule},
		"sql_maintenance": map[string]any{"enabled": true, "schedule": DefaultMaintenanceSchedule},
	})
}
