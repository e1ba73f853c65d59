package insights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/orbit-chat/orbit/internal/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator returns a fixed reply, or an error when failing is set,
// and records every prompt it saw.
type fakeGenerator struct {
	reply   string
	failing bool
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, _ int32, _ float32) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.failing {
		return "", errors.New("backend unavailable")
	}
	return f.reply, nil
}

// countCanceller reports cancelled from the nth check onward.
type countCanceller struct {
	after int
	calls int
}

func (c *countCanceller) Cancelled() bool {
	c.calls++
	return c.calls > c.after
}

func weekMessages(weekStart time.Time, count int, sentiment float64) []*chat.Message {
	msgs := make([]*chat.Message, count)
	for i := range msgs {
		sender := "Alice"
		if i%2 == 1 {
			sender = "Bob"
		}
		ts := weekStart.Add(time.Duration(i) * time.Hour)
		msgs[i] = &chat.Message{
			Sender:         sender,
			Content:        "a reasonably substantial message body",
			Timestamp:      ts,
			WeekID:         chat.WeekID(ts),
			Sentiment:      sentiment,
			Classification: chat.ClassStatement,
		}
	}
	return msgs
}

func TestRunEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(discardLogger(), nil)
	if _, err := s.Run(context.Background(), nil, nil, nil); err == nil {
		t.Error("Run(empty) error = nil, want error")
	}
}

func TestRunFallbackOnly(t *testing.T) {
	t.Parallel()

	// Two ISO weeks of messages, nil generator.
	msgs := weekMessages(time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC), 60, 0.3)
	msgs = append(msgs, weekMessages(time.Date(2023, 6, 26, 0, 0, 0, 0, time.UTC), 30, 0.3)...)

	s := NewSummarizer(discardLogger(), nil)
	result, err := s.Run(context.Background(), msgs, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.TotalMessages != 90 {
		t.Errorf("TotalMessages = %d, want 90", result.TotalMessages)
	}
	if got := result.Participants; len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Errorf("Participants = %v, want [Alice Bob]", got)
	}
	if len(result.Weekly) != 2 {
		t.Fatalf("Weekly buckets = %d, want 2", len(result.Weekly))
	}
	if result.Weekly[0].WeekID != "2023-W25" || result.Weekly[1].WeekID != "2023-W26" {
		t.Errorf("week ids = %q, %q", result.Weekly[0].WeekID, result.Weekly[1].WeekID)
	}
	if got := result.Weekly[0].Narrative; got != "Moderate week with casual check-ins." {
		t.Errorf("60-message week narrative = %q", got)
	}
	if got := result.Weekly[1].Narrative; got != "Quiet week with occasional messages." {
		t.Errorf("30-message week narrative = %q", got)
	}
	if len(result.Monthly) != 1 {
		t.Fatalf("Monthly summaries = %d, want 1", len(result.Monthly))
	}
	if result.Monthly[0].Month != "2023-07" {
		// Weeks 25 and 26 both map to derived month (25-1)/4+1 = 7.
		t.Errorf("derived month = %q, want 2023-07", result.Monthly[0].Month)
	}
	if len(result.Yearly) != 1 || result.Yearly[0].Year != 2023 {
		t.Fatalf("Yearly = %+v, want one 2023 entry", result.Yearly)
	}
	if result.Yearly[0].Evolution == "" || result.Yearly[0].Patterns == "" {
		t.Error("year summary missing fallback narrative fields")
	}
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	msgs := weekMessages(time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC), 30, 0.1)
	msgs = append(msgs, weekMessages(time.Date(2023, 6, 26, 0, 0, 0, 0, time.UTC), 30, 0.1)...)
	msgs = append(msgs, weekMessages(time.Date(2023, 7, 3, 0, 0, 0, 0, time.UTC), 30, 0.1)...)

	s := NewSummarizer(discardLogger(), nil)

	// Cancel mid-way through the weekly pass: no partial result.
	result, err := s.Run(context.Background(), msgs, &countCanceller{after: 1}, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if result != nil {
		t.Errorf("cancelled run returned partial result: %+v", result)
	}
}

func TestRunGeneratorNarratives(t *testing.T) {
	t.Parallel()

	t.Run("generator text used when long enough", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{reply: "They spent the week planning a trip together."}
		s := NewSummarizer(discardLogger(), gen)
		msgs := weekMessages(time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC), 20, 0.2)
		result, err := s.Run(context.Background(), msgs, nil, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := result.Weekly[0].Narrative; got != gen.reply {
			t.Errorf("Narrative = %q, want generator output", got)
		}
		if len(gen.prompts) == 0 || !strings.Contains(gen.prompts[0], "Alice") {
			t.Errorf("prompt missing participant names: %q", gen.prompts)
		}
	})

	t.Run("degenerate output falls back", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{reply: "ok."}
		s := NewSummarizer(discardLogger(), gen)
		msgs := weekMessages(time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC), 20, 0.2)
		result, err := s.Run(context.Background(), msgs, nil, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := result.Weekly[0].Narrative; got != "Quiet week with occasional messages." {
			t.Errorf("Narrative = %q, want fallback", got)
		}
	})

	t.Run("generator error falls back", func(t *testing.T) {
		t.Parallel()
		gen := &fakeGenerator{failing: true}
		s := NewSummarizer(discardLogger(), gen)
		msgs := weekMessages(time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC), 20, 0.2)
		result, err := s.Run(context.Background(), msgs, nil, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if got := result.Weekly[0].Narrative; got != "Quiet week with occasional messages." {
			t.Errorf("Narrative = %q, want fallback", got)
		}
	})
}

func TestRunPartitionsMessages(t *testing.T) {
	t.Parallel()

	mk := func(sender, content, class string, sentiment float64, ts time.Time) *chat.Message {
		return &chat.Message{
			Sender: sender, Content: content, Timestamp: ts,
			WeekID: chat.WeekID(ts), Sentiment: sentiment, Classification: class,
		}
	}
	w1 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	w5 := time.Date(2024, 1, 30, 10, 0, 0, 0, time.UTC)
	msgs := []*chat.Message{
		mk("Alice", "are we meeting this week?", chat.ClassQuestion, 0.4, w1),
		mk("Bob", "yes, Wednesday works for me", chat.ClassStatement, 0.5, w1.Add(time.Hour)),
		mk("Alice", "booked the usual place", chat.ClassStatement, 0.3, w5),
		{Sender: "Alice", Content: "undated stray", WeekID: chat.UnknownPeriod},
	}

	s := NewSummarizer(discardLogger(), nil)
	result, err := s.Run(context.Background(), msgs, nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Weekly) != 2 {
		t.Fatalf("Weekly buckets = %d, want 2", len(result.Weekly))
	}
	// Every dated message lands in exactly one bucket; the undated one
	// stays out of bucketing but still counts toward the total.
	bucketed := 0
	for _, b := range result.Weekly {
		bucketed += b.MessageCount
	}
	if bucketed != 3 || result.TotalMessages != 4 {
		t.Errorf("bucketed = %d of total %d, want 3 of 4", bucketed, result.TotalMessages)
	}
	if got := result.Weekly[0].ParticipantBalance; got != 0.5 {
		t.Errorf("W01 balance = %v, want exactly 0.5 for equal counts", got)
	}
	if len(result.Monthly) != 2 {
		t.Fatalf("Monthly summaries = %d, want 2 (weeks 1 and 5 map to derived months 1 and 2)", len(result.Monthly))
	}
	if result.Monthly[0].Month != "2024-01" || result.Monthly[1].Month != "2024-02" {
		t.Errorf("months = %q, %q", result.Monthly[0].Month, result.Monthly[1].Month)
	}
}

func TestWeeklyPassMetrics(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC)
	mk := func(sender, content, class string, sentiment float64, offset int) *chat.Message {
		ts := base.Add(time.Duration(offset) * time.Minute)
		return &chat.Message{
			Sender: sender, Content: content, Timestamp: ts,
			WeekID: chat.WeekID(ts), Sentiment: sentiment, Classification: class,
		}
	}
	msgs := []*chat.Message{
		mk("Alice", "how are you doing today", chat.ClassQuestion, 0.5, 0),
		mk("Bob", "doing well thanks for asking", chat.ClassStatement, 0.7, 1),
		mk("Alice", "<media omitted>", chat.ClassMedia, 0, 2),
		mk("Bob", "that photo was great", chat.ClassStatement, 0, 3),
	}

	s := NewSummarizer(discardLogger(), nil)
	weekly, err := s.weeklyPass(context.Background(), msgs, []string{"Alice", "Bob"}, nil)
	if err != nil {
		t.Fatalf("weeklyPass() error = %v", err)
	}
	if len(weekly) != 1 {
		t.Fatalf("buckets = %d, want 1", len(weekly))
	}
	b := weekly[0]

	// Zero sentiment is the no-signal sentinel and stays out of the mean.
	if want := 0.6; math.Abs(b.AvgSentiment-want) > 1e-9 {
		t.Errorf("AvgSentiment = %v, want %v", b.AvgSentiment, want)
	}
	if want := 0.25; b.QuestionRatio != want {
		t.Errorf("QuestionRatio = %v, want %v", b.QuestionRatio, want)
	}
	if want := 0.5; b.ParticipantBalance != want {
		t.Errorf("ParticipantBalance = %v, want %v", b.ParticipantBalance, want)
	}
	if b.Participants["Alice"] != 2 || b.Participants["Bob"] != 2 {
		t.Errorf("Participants = %v", b.Participants)
	}
}

func TestWeeklyPassAllSentinelSentiments(t *testing.T) {
	t.Parallel()

	base := time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC)
	msgs := []*chat.Message{
		{Sender: "Alice", Content: "<media omitted>", Timestamp: base, WeekID: chat.WeekID(base), Classification: chat.ClassMedia},
		{Sender: "Bob", Content: "[sticker]", Timestamp: base.Add(time.Minute), WeekID: chat.WeekID(base), Classification: chat.ClassMedia},
	}

	s := NewSummarizer(discardLogger(), nil)
	weekly, err := s.weeklyPass(context.Background(), msgs, []string{"Alice", "Bob"}, nil)
	if err != nil {
		t.Fatalf("weeklyPass() error = %v", err)
	}
	if got := weekly[0].AvgSentiment; got != 0.0 {
		t.Errorf("AvgSentiment = %v, want 0.0 when every score is the sentinel", got)
	}
}

func TestWeeklyPassSkipsUnknownPeriod(t *testing.T) {
	t.Parallel()

	msgs := []*chat.Message{
		{Sender: "Alice", Content: "undated", WeekID: chat.UnknownPeriod},
	}
	s := NewSummarizer(discardLogger(), nil)
	weekly, err := s.weeklyPass(context.Background(), msgs, []string{"Alice"}, nil)
	if err != nil {
		t.Fatalf("weeklyPass() error = %v", err)
	}
	if len(weekly) != 0 {
		t.Errorf("buckets = %d, want 0", len(weekly))
	}
}

func TestMonthKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		weekID string
		want   string
		ok     bool
	}{
		{"2023-W01", "2023-01", true},
		{"2023-W04", "2023-01", true},
		{"2023-W05", "2023-02", true},
		{"2023-W25", "2023-07", true},
		{"2023-W53", "2023-12", true}, // clamped to december
		{"unknown", "", false},
		{"2023-Wxx", "", false},
	}

	for _, tc := range tests {
		got, ok := monthKey(tc.weekID)
		if got != tc.want || ok != tc.ok {
			t.Errorf("monthKey(%q) = (%q, %v), want (%q, %v)", tc.weekID, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSentimentTrend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sentiments []float64
		want       string
	}{
		{"improving", []float64{0.0, 0.1, 0.4, 0.5}, "improving"},
		{"declining", []float64{0.5, 0.4, 0.1, 0.0}, "declining"},
		{"within dead band", []float64{0.2, 0.25, 0.22, 0.21}, "stable"},
		{"single point", []float64{0.9}, "stable"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sentimentTrend(tc.sentiments); got != tc.want {
				t.Errorf("sentimentTrend(%v) = %q, want %q", tc.sentiments, got, tc.want)
			}
		})
	}
}

func TestSentimentArc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sentiments []float64
		want       string
	}{
		{"too few points", []float64{0.1, 0.2}, "A period of steady connection"},
		{"warming", []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5}, "The relationship grew warmer over the year"},
		{"cooling", []float64{0.5, 0.4, 0.3, 0.2, 0.1, 0.0}, "Things cooled down compared to start of year"},
		{"flat", []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, "The connection stayed consistent throughout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := sentimentArc(tc.sentiments); got != tc.want {
				t.Errorf("sentimentArc(%v) = %q, want %q", tc.sentiments, got, tc.want)
			}
		})
	}
}

func TestActivityLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total int
		weeks int
		want  string
	}{
		{800, 4, "high"},
		{400, 4, "medium"},
		{100, 4, "low"},
		{0, 0, "low"},
	}

	for _, tc := range tests {
		if got := activityLevel(tc.total, tc.weeks); got != tc.want {
			t.Errorf("activityLevel(%d, %d) = %q, want %q", tc.total, tc.weeks, got, tc.want)
		}
	}
}

func TestStrideSample(t *testing.T) {
	t.Parallel()

	msgs := make([]*chat.Message, 250)
	for i := range msgs {
		msgs[i] = &chat.Message{ID: string(rune('a' + i%26))}
	}

	got := strideSample(msgs, 100)
	if len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
	if got[0] != msgs[0] {
		t.Error("stride sample should start at the first element")
	}

	small := msgs[:10]
	if s := strideSample(small, 100); len(s) != 10 {
		t.Errorf("small input len = %d, want 10", len(s))
	}
}

func TestFallbackMonthNarrative(t *testing.T) {
	t.Parallel()

	got := fallbackMonthNarrative("Alice", "Bob", 0.3, "improving", "high")
	want := "A high activity month between Alice and Bob with a positive vibe, and things got better as the month went on."
	if got != want {
		t.Errorf("fallbackMonthNarrative = %q, want %q", got, want)
	}
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	result := &Result{
		Participants:  []string{"Alice", "Bob"},
		TotalMessages: 120,
		Monthly: []MonthSummary{
			{Month: "2023-01", Narrative: "A quiet start."},
			{Month: "2023-02", Narrative: "Things picked up."},
		},
		Yearly: []YearSummary{
			{Year: 2023, Evolution: "A friendly year.", Patterns: "Steady contact.", Highlights: []string{"Most active period was around 2023-02"}},
		},
	}
	recent := []*chat.Message{{Sender: "Alice", Content: "see you soon"}}

	got := BuildContext(result, recent)
	for _, want := range []string{
		"CONVERSATION ANALYSIS: Alice and Bob",
		"Total messages analyzed: 120",
		"2023-01: A quiet start.",
		"A friendly year.",
		"Key moments: Most active period was around 2023-02",
		"Alice: see you soon",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("BuildContext missing %q", want)
		}
	}
}
