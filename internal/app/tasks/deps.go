// Package tasks implements the scheduled background tasks: upload
// retention and database maintenance.
package tasks

import (
	"log/slog"

	"github.com/orbit-chat/orbit/internal/config"
	"github.com/orbit-chat/orbit/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
