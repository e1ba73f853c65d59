package database

import (
	"time"
)

// Upload lifecycle states. An upload moves processing -> ready, or
// processing -> failed; expired rows are removed by the retention task.
const (
	UploadStatusProcessing = "processing"
	UploadStatusReady      = "ready"
	UploadStatusFailed     = "failed"
)

// Report kinds stored per upload.
const (
	ReportKindStats    = "stats"
	ReportKindCards    = "cards"
	ReportKindInsights = "insights"
)

// Upload represents one imported chat export file. SessionKey is an
// opaque identifier handed to the caller; the numeric ID stays
// internal.
type Upload struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	SessionKey   string    `db:"session_key"`
	Filename     string    `db:"filename"`
	Platform     string    `db:"platform"`
	MessageCount int       `db:"message_count"`
	Status       string    `db:"status"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Message represents one parsed and enriched chat message belonging to
// an upload. Seq preserves the original parse order.
type Message struct {
	ID       int64 `db:"id"`
	UploadID int64 `db:"upload_id"`
	Seq      int   `db:"seq"`

	SourceID       string    `db:"source_id"`
	Sender         string    `db:"sender"`
	Content        string    `db:"content"`
	Timestamp      time.Time `db:"timestamp"`
	Sentiment      float64   `db:"sentiment"`
	Classification string    `db:"classification"`
	WeekID         string    `db:"week_id"`
	MonthID        string    `db:"month_id"`
	Year           int       `db:"year"`
	WordCount      int       `db:"word_count"`
}

// Report stores one computed analysis artifact for an upload as a JSON
// payload. Kind distinguishes statistics, insight cards and the deep
// hierarchical summary.
type Report struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	UploadID int64  `db:"upload_id"`
	Kind     string `db:"kind"`
	Payload  string `db:"payload"`
}
