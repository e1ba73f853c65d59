// Package insights implements the hierarchical summarization pipeline.
// Enriched messages are reduced bottom-up into week, month and year
// summaries; each level may ask the text generation backend for a
// narrative and always has a deterministic fallback.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/orbit-chat/orbit/internal/chat"
	"github.com/orbit-chat/orbit/internal/gemini"
)

// ErrCancelled is returned by Run when the caller's canceller fires.
// The result is discarded in full; a run never returns a partial
// hierarchy.
var ErrCancelled = errors.New("insights: run cancelled")

// Canceller reports whether a running job should stop. Checked once per
// aggregation unit, never preemptively.
type Canceller interface {
	Cancelled() bool
}

// ProgressFunc receives human-readable pipeline progress lines.
type ProgressFunc func(string)

const (
	narrativeMaxTokens   = 80
	narrativeTemperature = 0.7

	// Generator output shorter than this is treated as degenerate and
	// replaced by the fallback sentence.
	minNarrativeChars = 15

	weekSampleLimit  = 100
	sampleContentCap = 150
	meaningfulMinLen = 10
)

// WeekBucket aggregates one ISO week of enriched messages.
type WeekBucket struct {
	WeekID             string         `json:"week_id"`
	MessageCount       int            `json:"message_count"`
	AvgSentiment       float64        `json:"avg_sentiment"`
	TopWords           []string       `json:"top_words"`
	QuestionRatio      float64        `json:"question_ratio"`
	ParticipantBalance float64        `json:"participant_balance"`
	Participants       map[string]int `json:"participants"`
	Narrative          string         `json:"narrative"`
}

// MonthSummary aggregates the WeekBuckets of one derived month. The
// month is approximated from the ISO week number, (week-1)/4+1 clamped
// to [1,12], and is documented as an approximation rather than a
// calendar month.
type MonthSummary struct {
	Month              string   `json:"month"`
	WeekCount          int      `json:"week_count"`
	TotalMessages      int      `json:"total_messages"`
	AvgSentiment       float64  `json:"avg_sentiment"`
	SentimentTrend     string   `json:"sentiment_trend"`
	ActivityLevel      string   `json:"activity_level"`
	KeyTopics          []string `json:"key_topics"`
	ParticipantBalance float64  `json:"participant_balance"`
	Narrative          string   `json:"narrative"`
}

// YearSummary aggregates the MonthSummaries of one calendar year.
type YearSummary struct {
	Year          int      `json:"year"`
	MonthCount    int      `json:"month_count"`
	TotalMessages int      `json:"total_messages"`
	AvgSentiment  float64  `json:"avg_sentiment"`
	SentimentArc  string   `json:"sentiment_arc"`
	Evolution     string   `json:"evolution"`
	Highlights    []string `json:"highlights"`
	Patterns      string   `json:"patterns"`
}

// Result is the complete output of one pipeline run.
type Result struct {
	Participants  []string       `json:"participants"`
	TotalMessages int            `json:"total_messages"`
	Weekly        []WeekBucket   `json:"weekly"`
	Monthly       []MonthSummary `json:"monthly"`
	Yearly        []YearSummary  `json:"yearly"`
}

// Summarizer runs the week to month to year reduction. A nil generator
// is valid and produces fallback narratives only.
type Summarizer struct {
	log *slog.Logger
	gen gemini.Generator
}

// NewSummarizer builds a Summarizer using gen for narrative text.
func NewSummarizer(log *slog.Logger, gen gemini.Generator) *Summarizer {
	return &Summarizer{
		log: log.With("component", "summarizer"),
		gen: gen,
	}
}

// Run executes the full pipeline over enriched messages. Cancellation
// is cooperative: checked between aggregation units, and a cancelled
// run returns ErrCancelled with no partial result.
func (s *Summarizer) Run(ctx context.Context, messages []*chat.Message, cancel Canceller, progress ProgressFunc) (*Result, error) {
	if len(messages) == 0 {
		return nil, errors.New("insights: no messages to summarize")
	}
	report := func(line string) {
		if progress != nil {
			progress(line)
		}
	}

	participants := participantNames(messages)

	report(fmt.Sprintf("Summarizing %d messages between %s", len(messages), strings.Join(participants, ", ")))

	weekly, err := s.weeklyPass(ctx, messages, participants, cancel)
	if err != nil {
		return nil, err
	}
	report(fmt.Sprintf("Weekly aggregation complete: %d buckets", len(weekly)))

	monthly, err := s.monthlyPass(ctx, weekly, participants, cancel)
	if err != nil {
		return nil, err
	}
	report(fmt.Sprintf("Monthly aggregation complete: %d summaries", len(monthly)))

	yearly, err := s.yearlyPass(ctx, monthly, participants, cancel)
	if err != nil {
		return nil, err
	}
	report(fmt.Sprintf("Yearly aggregation complete: %d summaries", len(yearly)))

	return &Result{
		Participants:  participants,
		TotalMessages: len(messages),
		Weekly:        weekly,
		Monthly:       monthly,
		Yearly:        yearly,
	}, nil
}

func participantNames(messages []*chat.Message) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range messages {
		if _, ok := seen[m.Sender]; !ok {
			seen[m.Sender] = struct{}{}
			names = append(names, m.Sender)
		}
	}
	sort.Strings(names)
	return names
}

func personPair(participants []string) (string, string) {
	p1, p2 := "Person 1", "Person 2"
	if len(participants) > 0 {
		p1 = participants[0]
	}
	if len(participants) > 1 {
		p2 = participants[1]
	}
	return p1, p2
}

func cancelled(c Canceller) bool {
	return c != nil && c.Cancelled()
}

// weeklyPass partitions dated messages by ISO week. Messages with an
// unresolvable week are left out of bucketing but still count toward
// the run total.
func (s *Summarizer) weeklyPass(ctx context.Context, messages []*chat.Message, participants []string, cancel Canceller) ([]WeekBucket, error) {
	weeks := make(map[string][]*chat.Message)
	for _, m := range messages {
		if m.WeekID == chat.UnknownPeriod {
			continue
		}
		weeks[m.WeekID] = append(weeks[m.WeekID], m)
	}

	weekIDs := make([]string, 0, len(weeks))
	for id := range weeks {
		weekIDs = append(weekIDs, id)
	}
	sort.Strings(weekIDs)

	buckets := make([]WeekBucket, 0, len(weekIDs))
	for _, weekID := range weekIDs {
		if cancelled(cancel) {
			return nil, ErrCancelled
		}
		msgs := weeks[weekID]

		var sentimentSum float64
		var sentimentCount int
		var questions int
		counts := make(map[string]int)
		texts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			if m.Sentiment != 0 {
				sentimentSum += m.Sentiment
				sentimentCount++
			}
			if m.Classification == chat.ClassQuestion {
				questions++
			}
			counts[m.Sender]++
			texts = append(texts, m.Content)
		}

		avgSentiment := 0.0
		if sentimentCount > 0 {
			avgSentiment = sentimentSum / float64(sentimentCount)
		}

		balance := 0.5
		if len(participants) >= 2 {
			if p1Count, ok := counts[participants[0]]; ok {
				balance = float64(p1Count) / float64(len(msgs))
			}
		}

		bucket := WeekBucket{
			WeekID:             weekID,
			MessageCount:       len(msgs),
			AvgSentiment:       avgSentiment,
			TopWords:           TopWords(texts, 10),
			QuestionRatio:      float64(questions) / float64(len(msgs)),
			ParticipantBalance: balance,
			Participants:       counts,
		}
		bucket.Narrative = s.weekNarrative(ctx, msgs, participants, bucket.MessageCount)
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// weekNarrative samples meaningful messages and asks the generator for
// a short summary, falling back to an activity-tier sentence.
func (s *Summarizer) weekNarrative(ctx context.Context, msgs []*chat.Message, participants []string, messageCount int) string {
	if s.gen == nil {
		return fallbackWeekNarrative(messageCount)
	}

	var meaningful []*chat.Message
	for _, m := range msgs {
		if (m.Classification == chat.ClassStatement || m.Classification == chat.ClassQuestion) && len(m.Content) > meaningfulMinLen {
			meaningful = append(meaningful, m)
		}
	}
	if len(meaningful) == 0 {
		return fallbackWeekNarrative(messageCount)
	}

	sampled := strideSample(meaningful, weekSampleLimit)
	var lines []string
	for _, m := range sampled {
		lines = append(lines, m.Sender+": "+capRunes(m.Content, sampleContentCap))
	}

	p1, p2 := personPair(participants)
	prompt := fmt.Sprintf(weekNarrativePrompt, p1, p2, strings.Join(lines, "\n"))

	text, err := s.gen.Generate(ctx, prompt, narrativeMaxTokens, narrativeTemperature)
	if err != nil {
		s.log.WarnContext(ctx, "Week narrative generation failed, using fallback", "error", err)
		return fallbackWeekNarrative(messageCount)
	}
	text = strings.TrimSpace(text)
	if len(text) < minNarrativeChars {
		return fallbackWeekNarrative(messageCount)
	}
	return text
}

func fallbackWeekNarrative(messageCount int) string {
	switch {
	case messageCount > 200:
		return "Very active week with lots of chatting."
	case messageCount > 100:
		return "Busy week with regular conversations."
	case messageCount > 50:
		return "Moderate week with casual check-ins."
	default:
		return "Quiet week with occasional messages."
	}
}

// strideSample picks up to limit elements evenly spaced over msgs.
func strideSample(msgs []*chat.Message, limit int) []*chat.Message {
	if len(msgs) <= limit {
		return msgs
	}
	step := len(msgs) / limit
	if step < 1 {
		step = 1
	}
	out := make([]*chat.Message, 0, limit)
	for i := 0; i < len(msgs) && len(out) < limit; i += step {
		out = append(out, msgs[i])
	}
	return out
}

func capRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// monthKey derives the approximate month of an ISO week id. The week
// number maps to a month by integer division, which drifts near month
// boundaries but keeps the reduction independent of raw messages.
func monthKey(weekID string) (string, bool) {
	parts := strings.SplitN(weekID, "-W", 2)
	if len(parts) != 2 {
		return "", false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	weekNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", false
	}
	month := (weekNum-1)/4 + 1
	if month < 1 {
		month = 1
	}
	if month > 12 {
		month = 12
	}
	return fmt.Sprintf("%d-%02d", year, month), true
}

// monthlyPass reduces week buckets into month summaries. Strictly
// hierarchical: the monthly narrative is composed from the week
// narratives, never from raw messages.
func (s *Summarizer) monthlyPass(ctx context.Context, weekly []WeekBucket, participants []string, cancel Canceller) ([]MonthSummary, error) {
	months := make(map[string][]WeekBucket)
	var monthIDs []string
	for _, bucket := range weekly {
		key, ok := monthKey(bucket.WeekID)
		if !ok {
			continue
		}
		if _, seen := months[key]; !seen {
			monthIDs = append(monthIDs, key)
		}
		months[key] = append(months[key], bucket)
	}
	sort.Strings(monthIDs)

	summaries := make([]MonthSummary, 0, len(monthIDs))
	for _, monthID := range monthIDs {
		if cancelled(cancel) {
			return nil, ErrCancelled
		}
		buckets := months[monthID]

		totalMsgs := 0
		sentiments := make([]float64, 0, len(buckets))
		var weightedBalance float64
		var allTopWords []string
		var narratives []string
		for _, b := range buckets {
			totalMsgs += b.MessageCount
			sentiments = append(sentiments, b.AvgSentiment)
			weightedBalance += b.ParticipantBalance * float64(b.MessageCount)
			top := b.TopWords
			if len(top) > 5 {
				top = top[:5]
			}
			allTopWords = append(allTopWords, top...)
			if b.Narrative != "" {
				narratives = append(narratives, b.WeekID+": "+b.Narrative)
			}
		}

		avgSentiment := mean(sentiments)
		trend := sentimentTrend(sentiments)
		activity := activityLevel(totalMsgs, len(buckets))

		var keyTopics []string
		if len(allTopWords) > 0 {
			keyTopics = TopWords([]string{strings.Join(allTopWords, " ")}, 5)
		}

		balance := 0.5
		if totalMsgs > 0 {
			balance = weightedBalance / float64(totalMsgs)
		}

		summaries = append(summaries, MonthSummary{
			Month:              monthID,
			WeekCount:          len(buckets),
			TotalMessages:      totalMsgs,
			AvgSentiment:       avgSentiment,
			SentimentTrend:     trend,
			ActivityLevel:      activity,
			KeyTopics:          keyTopics,
			ParticipantBalance: balance,
			Narrative:          s.monthNarrative(ctx, narratives, participants, avgSentiment, trend, activity),
		})
	}
	return summaries, nil
}

func (s *Summarizer) monthNarrative(ctx context.Context, weekNarratives []string, participants []string, sentiment float64, trend, activity string) string {
	p1, p2 := personPair(participants)
	if s.gen == nil || len(weekNarratives) == 0 {
		return fallbackMonthNarrative(p1, p2, sentiment, trend, activity)
	}

	prompt := fmt.Sprintf(monthNarrativePrompt, p1, p2, strings.Join(weekNarratives, "\n"))
	text, err := s.gen.Generate(ctx, prompt, narrativeMaxTokens, narrativeTemperature)
	if err != nil {
		s.log.WarnContext(ctx, "Month narrative generation failed, using fallback", "error", err)
		return fallbackMonthNarrative(p1, p2, sentiment, trend, activity)
	}
	text = strings.TrimSpace(text)
	if len(text) < minNarrativeChars {
		return fallbackMonthNarrative(p1, p2, sentiment, trend, activity)
	}
	return text
}

func fallbackMonthNarrative(p1, p2 string, sentiment float64, trend, activity string) string {
	mood := "challenging"
	if sentiment > 0.2 {
		mood = "positive"
	} else if sentiment > -0.2 {
		mood = "neutral"
	}

	var trendText string
	switch trend {
	case "improving":
		trendText = "and things got better as the month went on"
	case "declining":
		trendText = "though things cooled down towards the end"
	default:
		trendText = "with consistent energy throughout"
	}

	return fmt.Sprintf("A %s activity month between %s and %s with a %s vibe, %s.", activity, p1, p2, mood, trendText)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sentimentTrend compares the first and second halves of the weekly
// mean sentiments, with a 0.1 dead band.
func sentimentTrend(sentiments []float64) string {
	if len(sentiments) < 2 {
		return "stable"
	}
	half := len(sentiments) / 2
	first := mean(sentiments[:half])
	second := mean(sentiments[half:])
	switch {
	case second > first+0.1:
		return "improving"
	case second < first-0.1:
		return "declining"
	default:
		return "stable"
	}
}

func activityLevel(totalMsgs, weekCount int) string {
	if weekCount == 0 {
		return "low"
	}
	avgWeekly := float64(totalMsgs) / float64(weekCount)
	switch {
	case avgWeekly > 150:
		return "high"
	case avgWeekly > 70:
		return "medium"
	default:
		return "low"
	}
}

// yearlyPass reduces month summaries into year summaries, again only
// consuming the previous level's output.
func (s *Summarizer) yearlyPass(ctx context.Context, monthly []MonthSummary, participants []string, cancel Canceller) ([]YearSummary, error) {
	years := make(map[int][]MonthSummary)
	var yearKeys []int
	for _, m := range monthly {
		yearStr, _, ok := strings.Cut(m.Month, "-")
		if !ok {
			continue
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			continue
		}
		if _, seen := years[year]; !seen {
			yearKeys = append(yearKeys, year)
		}
		years[year] = append(years[year], m)
	}
	sort.Ints(yearKeys)

	summaries := make([]YearSummary, 0, len(yearKeys))
	for _, year := range yearKeys {
		if cancelled(cancel) {
			return nil, ErrCancelled
		}
		months := years[year]

		totalMsgs := 0
		sentiments := make([]float64, 0, len(months))
		var narratives []string
		for _, m := range months {
			totalMsgs += m.TotalMessages
			sentiments = append(sentiments, m.AvgSentiment)
			if m.Narrative != "" {
				narratives = append(narratives, m.Month+": "+m.Narrative)
			}
		}
		avgSentiment := mean(sentiments)

		arc := sentimentArc(sentiments)
		evolution := s.yearNarrative(ctx, narratives, participants, year, avgSentiment, arc)

		var highlights []string
		for _, m := range months {
			if m.ActivityLevel == "high" {
				highlights = append(highlights, "Most active period was around "+m.Month)
				break
			}
		}
		for _, m := range months {
			if m.SentimentTrend == "improving" {
				highlights = append(highlights, "Things were looking up in "+m.Month)
				break
			}
		}

		highActivity := 0
		for _, m := range months {
			if m.ActivityLevel == "high" {
				highActivity++
			}
		}
		var patterns string
		switch {
		case highActivity > len(months)/2:
			patterns = "They stayed in regular touch throughout."
		case highActivity > 0:
			patterns = "Communication varied in intensity."
		default:
			patterns = "A quieter year with occasional conversations."
		}

		summaries = append(summaries, YearSummary{
			Year:          year,
			MonthCount:    len(months),
			TotalMessages: totalMsgs,
			AvgSentiment:  avgSentiment,
			SentimentArc:  arc,
			Evolution:     evolution,
			Highlights:    highlights,
			Patterns:      patterns,
		})
	}
	return summaries, nil
}

// sentimentArc compares the early and late thirds of the monthly mean
// sentiments, with a 0.15 dead band. Fewer than three data points read
// as steady.
func sentimentArc(sentiments []float64) string {
	if len(sentiments) < 3 {
		return "A period of steady connection"
	}
	third := len(sentiments) / 3
	early := mean(sentiments[:third])
	late := mean(sentiments[len(sentiments)-third:])
	switch {
	case late > early+0.15:
		return "The relationship grew warmer over the year"
	case late < early-0.15:
		return "Things cooled down compared to start of year"
	default:
		return "The connection stayed consistent throughout"
	}
}

func (s *Summarizer) yearNarrative(ctx context.Context, monthNarratives []string, participants []string, year int, sentiment float64, arc string) string {
	p1, p2 := personPair(participants)
	if s.gen == nil || len(monthNarratives) == 0 {
		return fallbackYearNarrative(p1, p2, year, sentiment, arc)
	}

	prompt := fmt.Sprintf(yearNarrativePrompt, p1, p2, year, strings.Join(monthNarratives, "\n"))
	text, err := s.gen.Generate(ctx, prompt, narrativeMaxTokens, narrativeTemperature)
	if err != nil {
		s.log.WarnContext(ctx, "Year narrative generation failed, using fallback", "error", err)
		return fallbackYearNarrative(p1, p2, year, sentiment, arc)
	}
	text = strings.TrimSpace(text)
	if len(text) < minNarrativeChars {
		return fallbackYearNarrative(p1, p2, year, sentiment, arc)
	}
	return text
}

func fallbackYearNarrative(p1, p2 string, year int, sentiment float64, arc string) string {
	var tone string
	switch {
	case sentiment > 0.25:
		tone = "warm and supportive"
	case sentiment > 0.1:
		tone = "friendly and comfortable"
	case sentiment > -0.1:
		tone = "casual and routine"
	default:
		tone = "going through some challenges"
	}
	return fmt.Sprintf("In %d, %s and %s had a %s dynamic. %s.", year, p1, p2, tone, arc)
}

// BuildContext renders a run result into a prompt context block used
// by downstream insight generation.
func BuildContext(result *Result, recent []*chat.Message) string {
	p1, p2 := personPair(result.Participants)

	var lines []string
	lines = append(lines,
		fmt.Sprintf("CONVERSATION ANALYSIS: %s and %s", p1, p2),
		fmt.Sprintf("Total messages analyzed: %d", result.TotalMessages),
		"")

	lines = append(lines, "=== RELATIONSHIP OVER TIME ===")
	for _, y := range result.Yearly {
		lines = append(lines, fmt.Sprintf("\n%d:", y.Year), y.Evolution, y.Patterns)
		if len(y.Highlights) > 0 {
			lines = append(lines, "Key moments: "+strings.Join(y.Highlights, "; "))
		}
	}
	lines = append(lines, "")

	lines = append(lines, "=== MONTHLY CONVERSATION SUMMARIES ===")
	currentYear := ""
	for _, m := range result.Monthly {
		year, _, _ := strings.Cut(m.Month, "-")
		if year != currentYear {
			lines = append(lines, "\n--- "+year+" ---")
			currentYear = year
		}
		lines = append(lines, m.Month+": "+m.Narrative)
	}
	lines = append(lines, "")

	if len(recent) > 0 {
		lines = append(lines, "=== RECENT CONVERSATION SAMPLE ===")
		for _, m := range recent {
			lines = append(lines, m.Sender+": "+capRunes(m.Content, 100))
		}
	}

	return strings.Join(lines, "\n")
}
