package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/orbit-chat/orbit/internal/config"
	"github.com/orbit-chat/orbit/internal/database"
)

// App represents the long-running worker process: the scheduler plus
// the shared resources it maintains.
type App struct {
	logger    *slog.Logger
	cfg       *config.Config
	db        *sqlx.DB
	store     database.Store
	scheduler *Scheduler
}

// NewApp creates the worker application with all required dependencies.
func NewApp(
	logger *slog.Logger,
	cfg *config.Config,
	db *sqlx.DB,
	store database.Store,
	scheduler *Scheduler,
) *App {
	return &App{
		logger:    logger.With("component", "app_orchestrator"),
		cfg:       cfg,
		db:        db,
		store:     store,
		scheduler: scheduler,
	}
}

// Run starts the worker components and blocks until the context is
// cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting worker orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(); err != nil {
			a.logger.Error("Failed to start scheduler", "error", err)
			return err
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	a.logger.Info("Worker orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Worker orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Worker orchestrator stopped gracefully.")
	return nil
}
