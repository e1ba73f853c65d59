package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = true

	// Database defaults
	DefaultDBPath = "orbit.db"

	// Gemini defaults
	DefaultGeminiModel             = "gemini-2.0-flash"
	DefaultGeminiMaxRetries        = 3
	DefaultGeminiRetryDelaySeconds = 5
	DefaultGeminiTemperature       = 0.7

	// Analysis defaults
	DefaultAnalysisSampleSize      = 500
	DefaultAnalysisMaxContextChars = 15000

	// Retention defaults
	DefaultUploadTTL = 24 * time.Hour

	// Scheduler defaults (cron, minute resolution)
	DefaultRetentionSchedule   = "*/30 * * * *"
	DefaultMaintenanceSchedule = "0 4 * * *"
)
