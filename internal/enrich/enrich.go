// Package enrich attaches sentiment scores, categorical classifications,
// and calendar derivations to parsed messages ahead of aggregation. Every
// operation here is total: enrichment never fails, it only degrades to
// sentinel values.
package enrich

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/jonreiter/govader"

	"github.com/orbit-chat/orbit/internal/chat"
)

// mediaMarkers are placeholder strings platforms substitute for media
// attachments in text exports. Matched case-insensitively as substrings.
var mediaMarkers = []string{
	"<media omitted>",
	"[media]",
	"[image]",
	"[video]",
	"[audio]",
	"[sticker]",
	"[gif]",
	"image omitted",
	"video omitted",
}

// reactionTokens are short acknowledgements that classify as reactions
// when the whole message is at most five characters.
var reactionTokens = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "lol": {}, "haha": {}, "yes": {},
	"no": {}, "ya": {}, "yep": {}, "nope": {}, "hmm": {}, "oh": {},
	"ah": {}, "wow": {}, "nice": {}, "cool": {}, "great": {},
}

// questionPrefixes mark a message as a question when it starts with one
// of them, in addition to the presence of a question mark anywhere.
var questionPrefixes = []string{
	"what", "when", "where", "why", "how", "who", "which",
	"would", "could", "should", "can", "do you", "are you",
	"is it", "have you", "did you",
}

// Enricher scores and classifies messages. The sentiment analyzer is
// built once and reused; if construction is impossible the enricher
// degrades to the 0.0 "no signal" sentinel rather than failing.
type Enricher struct {
	log      *slog.Logger
	analyzer *govader.SentimentIntensityAnalyzer
}

// New creates an Enricher with a fresh VADER analyzer.
func New(log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{
		log:      log.With("component", "enricher"),
		analyzer: govader.NewSentimentIntensityAnalyzer(),
	}
}

// Sentiment returns the VADER compound score in [-1, 1] for text.
// Empty content or an unavailable analyzer yields exactly 0.0, the
// sentinel downstream averaging excludes.
func (e *Enricher) Sentiment(text string) float64 {
	if text == "" || e.analyzer == nil {
		return 0
	}
	return e.analyzer.PolarityScores(text).Compound
}

// Classify assigns one of the chat.Class* categories. Priority order,
// first match wins: media, link, reaction, question, statement.
func Classify(text string) string {
	if text == "" {
		return chat.ClassStatement
	}
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, marker := range mediaMarkers {
		if strings.Contains(lower, marker) {
			return chat.ClassMedia
		}
	}

	if strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.Contains(lower, "www.") {
		return chat.ClassLink
	}

	if len([]rune(lower)) <= 5 {
		if _, ok := reactionTokens[lower]; ok {
			return chat.ClassReaction
		}
		if !strings.ContainsFunc(text, unicode.IsLetter) {
			return chat.ClassReaction
		}
	}

	if strings.Contains(text, "?") {
		return chat.ClassQuestion
	}
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return chat.ClassQuestion
		}
	}

	return chat.ClassStatement
}

// Enrich attaches sentiment, classification, word count, and calendar
// derivations to m in place. Messages with an unresolvable timestamp
// keep the unknown-period markers and are later excluded from bucketing
// without being dropped from totals.
func (e *Enricher) Enrich(m *chat.Message) {
	m.Sentiment = e.Sentiment(m.Content)
	m.Classification = Classify(m.Content)
	m.WordCount = len(strings.Fields(m.Content))

	if m.Timestamp.IsZero() {
		m.WeekID = chat.UnknownPeriod
		m.MonthID = chat.UnknownPeriod
		m.Year = 0
		return
	}
	if m.WeekID == "" {
		m.WeekID = chat.WeekID(m.Timestamp)
	}
	m.MonthID = chat.MonthID(m.Timestamp)
	m.Year = m.Timestamp.Year()
}

// EnrichAll enriches every message in order and logs a distribution
// summary at debug level.
func (e *Enricher) EnrichAll(messages []*chat.Message) {
	classes := make(map[string]int)
	var sentimentSum float64
	var scored int

	for _, m := range messages {
		e.Enrich(m)
		classes[m.Classification]++
		if m.Sentiment != 0 {
			sentimentSum += m.Sentiment
			scored++
		}
	}

	avg := 0.0
	if scored > 0 {
		avg = sentimentSum / float64(scored)
	}
	e.log.Debug("enriched messages",
		"count", len(messages),
		"avg_sentiment", avg,
		"classifications", classes)
}
