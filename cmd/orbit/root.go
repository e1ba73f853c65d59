package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/orbit-chat/orbit/internal/config"
	"github.com/orbit-chat/orbit/internal/database"
	"github.com/orbit-chat/orbit/internal/gemini"
	"github.com/orbit-chat/orbit/internal/jobs"
	"github.com/orbit-chat/orbit/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "orbit",
	Short:         "Chat export analysis engine",
	Long:          "orbit ingests WhatsApp and Instagram chat exports and produces statistics, insight cards, and hierarchical week/month/year summaries.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to configuration file")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(workerCmd)
}

// Execute runs the CLI with the given base context.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		return err
	}
	return nil
}

// runtime bundles the shared dependencies the commands need. close
// must be called when the command finishes.
type runtime struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *sqlx.DB
	store    database.Store
	gen      gemini.Generator
	registry *jobs.Registry
}

func (r *runtime) close() {
	database.CloseDB(r.db)
}

// newRuntime loads configuration and opens every shared resource. The
// generation backend is optional: without an API key the analysis
// falls back to deterministic narratives.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := database.NewStore(db, log)

	var gen gemini.Generator
	if cfg.Gemini.APIKey != "" {
		gen, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			database.CloseDB(db)
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
	} else {
		log.Warn("No Gemini API key configured, narratives will use deterministic fallbacks")
	}

	return &runtime{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		gen:      gen,
		registry: jobs.NewRegistry(log),
	}, nil
}

// resolveUpload accepts a session key and returns the matching ready
// upload.
func resolveUpload(ctx context.Context, store database.Store, sessionKey string) (*database.Upload, error) {
	upload, err := store.GetUploadBySessionKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if upload == nil {
		return nil, fmt.Errorf("no upload found for session %s", sessionKey)
	}
	if upload.Status != database.UploadStatusReady {
		return nil, fmt.Errorf("upload %s is %s, not ready", sessionKey, upload.Status)
	}
	return upload, nil
}
