// Package chat defines the normalized message model shared by the
// ingestion, enrichment, and aggregation stages, together with the
// calendar-period helpers those stages rely on.
package chat

import (
	"fmt"
	"time"
)

// Classification values attached by the enrichment stage.
const (
	ClassMedia     = "media"
	ClassLink      = "link"
	ClassReaction  = "reaction"
	ClassQuestion  = "question"
	ClassStatement = "statement"
)

// UnknownPeriod marks a message whose timestamp could not be resolved to a
// calendar period. Such messages are excluded from bucketing but still
// counted in totals.
const UnknownPeriod = "unknown"

// Message is a normalized chat message. The parser creates it; the
// enricher attaches Sentiment, Classification, WordCount, MonthID, and
// Year in place. After enrichment a message is read-only.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	WeekID    string    `json:"week_id"`

	// Enrichment fields. Sentiment 0.0 is the "no signal" sentinel and
	// is excluded from mean-sentiment denominators downstream.
	Sentiment      float64 `json:"sentiment"`
	Classification string  `json:"classification"`
	WordCount      int     `json:"word_count"`
	MonthID        string  `json:"month_id"`
	Year           int     `json:"year"`
}

// WeekID returns the ISO-8601 week identifier (YYYY-Www) for t. The ISO
// year may differ from the calendar year at year boundaries; that is
// intentional and preserved.
func WeekID(t time.Time) string {
	if t.IsZero() {
		return UnknownPeriod
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// MonthID returns the calendar month identifier (YYYY-MM) for t.
func MonthID(t time.Time) string {
	if t.IsZero() {
		return UnknownPeriod
	}
	return fmt.Sprintf("%d-%02d", t.Year(), int(t.Month()))
}
