package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateUpload inserts a new upload record with a fresh session key
	// and fills in its generated fields.
	CreateUpload(ctx context.Context, upload *Upload) error

	// GetUpload retrieves an upload by ID. Returns nil, nil if not found.
	GetUpload(ctx context.Context, id int64) (*Upload, error)

	// GetUploadBySessionKey retrieves an upload by its session key.
	// Returns nil, nil if not found.
	GetUploadBySessionKey(ctx context.Context, key string) (*Upload, error)

	// UpdateUploadStatus transitions an upload's lifecycle status and
	// records its final message count.
	UpdateUploadStatus(ctx context.Context, id int64, status string, messageCount int) error

	// SaveMessages inserts a batch of messages in a single transaction.
	SaveMessages(ctx context.Context, messages []*Message) error

	// GetMessages retrieves all messages of an upload in parse order.
	GetMessages(ctx context.Context, uploadID int64) ([]*Message, error)

	// SaveReport upserts an analysis artifact for an upload.
	SaveReport(ctx context.Context, report *Report) error

	// GetReport retrieves an analysis artifact by upload and kind.
	// Returns nil, nil if not found.
	GetReport(ctx context.Context, uploadID int64, kind string) (*Report, error)

	// DeleteExpiredUploads removes uploads whose retention has lapsed,
	// cascading to their messages and reports. Returns the number of
	// uploads removed.
	DeleteExpiredUploads(ctx context.Context, now time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) CreateUpload(ctx context.Context, upload *Upload) error {
	if upload == nil {
		return fmt.Errorf("cannot create nil upload")
	}
	if upload.Filename == "" {
		return fmt.Errorf("upload must have a filename")
	}
	if upload.Platform == "" {
		return fmt.Errorf("upload must have a platform")
	}

	now := time.Now().UTC()
	upload.CreatedAt = now
	upload.UpdatedAt = now
	upload.SessionKey = uuid.NewString()
	if upload.Status == "" {
		upload.Status = UploadStatusProcessing
	}
	if upload.ExpiresAt.IsZero() {
		upload.ExpiresAt = now.Add(24 * time.Hour)
	}

	query := `INSERT INTO uploads
		(created_at, updated_at, session_key, filename, platform, message_count, status, expires_at)
		VALUES (:created_at, :updated_at, :session_key, :filename, :platform, :message_count, :status, :expires_at)`

	res, err := s.db.NamedExecContext(ctx, query, upload)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert upload", "filename", upload.Filename, "error", err)
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read upload id: %w", err)
	}
	upload.ID = id

	s.logger.DebugContext(ctx, "Upload created", "upload_id", id, "session_key", upload.SessionKey)
	return nil
}

func (s *sqlxStore) GetUpload(ctx context.Context, id int64) (*Upload, error) {
	var upload Upload
	err := s.db.GetContext(ctx, &upload, `SELECT * FROM uploads WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get upload %d: %w", id, err)
	}
	return &upload, nil
}

func (s *sqlxStore) GetUploadBySessionKey(ctx context.Context, key string) (*Upload, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is empty")
	}
	var upload Upload
	err := s.db.GetContext(ctx, &upload, `SELECT * FROM uploads WHERE session_key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get upload by session key: %w", err)
	}
	return &upload, nil
}

func (s *sqlxStore) UpdateUploadStatus(ctx context.Context, id int64, status string, messageCount int) error {
	switch status {
	case UploadStatusProcessing, UploadStatusReady, UploadStatusFailed:
	default:
		return fmt.Errorf("invalid upload status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE uploads SET status = ?, message_count = ?, updated_at = ? WHERE id = ?`,
		status, messageCount, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update upload status", "upload_id", id, "status", status, "error", err)
		return fmt.Errorf("failed to update upload status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("upload %d not found", id)
	}
	return nil
}

func (s *sqlxStore) SaveMessages(ctx context.Context, messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if m.UploadID == 0 {
			return fmt.Errorf("message must have a non-zero upload_id")
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving messages", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Failed to rollback message batch transaction", "error", rollbackErr)
			}
		}
	}()

	query := `INSERT INTO messages
		(upload_id, seq, source_id, sender, content, timestamp, sentiment, classification, week_id, month_id, year, word_count)
		VALUES (:upload_id, :seq, :source_id, :sender, :content, :timestamp, :sentiment, :classification, :week_id, :month_id, :year, :word_count)`

	for _, m := range messages {
		if _, err := tx.NamedExecContext(ctx, query, m); err != nil {
			return fmt.Errorf("failed to insert message seq %d: %w", m.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message batch: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message batch saved", "count", len(messages), "upload_id", messages[0].UploadID)
	return nil
}

func (s *sqlxStore) GetMessages(ctx context.Context, uploadID int64) ([]*Message, error) {
	var messages []*Message
	err := s.db.SelectContext(ctx, &messages,
		`SELECT * FROM messages WHERE upload_id = ? ORDER BY seq ASC`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages for upload %d: %w", uploadID, err)
	}
	return messages, nil
}

func (s *sqlxStore) SaveReport(ctx context.Context, report *Report) error {
	if report == nil {
		return fmt.Errorf("cannot save nil report")
	}
	if report.UploadID == 0 {
		return fmt.Errorf("report must have a non-zero upload_id")
	}
	switch report.Kind {
	case ReportKindStats, ReportKindCards, ReportKindInsights:
	default:
		return fmt.Errorf("invalid report kind %q", report.Kind)
	}

	report.CreatedAt = time.Now().UTC()

	query := `INSERT INTO reports (created_at, upload_id, kind, payload)
		VALUES (:created_at, :upload_id, :kind, :payload)
		ON CONFLICT (upload_id, kind) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`

	if _, err := s.db.NamedExecContext(ctx, query, report); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save report", "upload_id", report.UploadID, "kind", report.Kind, "error", err)
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetReport(ctx context.Context, uploadID int64, kind string) (*Report, error) {
	var report Report
	err := s.db.GetContext(ctx, &report,
		`SELECT * FROM reports WHERE upload_id = ? AND kind = ?`, uploadID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s report for upload %d: %w", kind, uploadID, err)
	}
	return &report, nil
}

func (s *sqlxStore) DeleteExpiredUploads(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE expires_at < ?`, now.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete expired uploads", "error", err)
		return 0, fmt.Errorf("failed to delete expired uploads: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		s.logger.InfoContext(ctx, "Expired uploads removed", "count", affected)
	}
	return affected, nil
}

// RunSQLMaintenance reclaims free pages and refreshes planner stats.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "Database maintenance statement failed", "statement", stmt, "error", err)
			return fmt.Errorf("maintenance %s failed: %w", stmt, err)
		}
	}
	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}
