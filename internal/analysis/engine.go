// Package analysis produces the four insight cards shown alongside a
// statistics report: conversation dynamics, emotional health,
// engagement and sharing balance. Every card has a named-participant
// default, so analysis never fails outright when the generation
// backend misbehaves.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/orbit-chat/orbit/internal/chat"
	"github.com/orbit-chat/orbit/internal/compact"
	"github.com/orbit-chat/orbit/internal/gemini"
	"github.com/orbit-chat/orbit/internal/stats"
)

const (
	cardMaxTokens   = 500
	cardTemperature = 0.7
)

// ConversationDynamics describes who starts and steers conversations.
type ConversationDynamics struct {
	InitiatorSummary string `json:"initiator_summary"`
	FlowPattern      string `json:"flow_pattern"`
	TopicShifts      string `json:"topic_shifts"`
}

// EmotionalHealth describes tone and notable behavioral patterns.
type EmotionalHealth struct {
	OverallSentiment string   `json:"overall_sentiment"`
	HealthAssessment string   `json:"health_assessment"`
	RedFlags         []string `json:"red_flags"`
	GreenFlags       []string `json:"green_flags"`
}

// Engagement scores the relative effort of the two sides.
type Engagement struct {
	BalanceSummary   string `json:"balance_summary"`
	EffortAssessment string `json:"effort_assessment"`
	EngagementScore  int    `json:"engagement_score"`
}

// SharingBalance scores reciprocity of personal disclosure.
type SharingBalance struct {
	SharingSummary   string `json:"sharing_summary"`
	QuestionBalance  string `json:"question_balance"`
	ReciprocityScore int    `json:"reciprocity_score"`
}

// Metadata records what the cards were computed from.
type Metadata struct {
	Participants     []string `json:"participants"`
	MessagesAnalyzed int      `json:"messages_analyzed"`
	TotalMessages    int      `json:"total_messages"`
	ContextChars     int      `json:"context_chars"`
}

// Cards bundles all four insight categories.
type Cards struct {
	ConversationDynamics ConversationDynamics `json:"conversation_dynamics"`
	EmotionalHealth      EmotionalHealth      `json:"emotional_health"`
	Engagement           Engagement           `json:"engagement"`
	SharingBalance       SharingBalance       `json:"sharing_balance"`
	Metadata             Metadata             `json:"metadata"`
}

// Engine runs the card generation. A nil generator yields defaults.
type Engine struct {
	log             *slog.Logger
	gen             gemini.Generator
	sampleSize      int
	maxContextChars int
}

// NewEngine builds an Engine around gen. sampleSize and maxContextChars
// bound the compacted conversation context; values <= 0 select the
// compactor defaults.
func NewEngine(log *slog.Logger, gen gemini.Generator, sampleSize, maxContextChars int) *Engine {
	if sampleSize <= 0 {
		sampleSize = compact.DefaultSampleSize
	}
	return &Engine{
		log:             log.With("component", "analysis_engine"),
		gen:             gen,
		sampleSize:      sampleSize,
		maxContextChars: maxContextChars,
	}
}

// AnalyzeFull computes all four cards from the compacted conversation
// context plus a compact stats block. Generation failure for any
// category resolves to that category's default, never an error.
func (e *Engine) AnalyzeFull(ctx context.Context, messages []*chat.Message, report *stats.Report, progress func(string)) *Cards {
	opt := compact.NewOptimizer(messages, e.maxContextChars)
	transcript, footer := opt.BuildContext(e.sampleSize)
	contextBlock := transcript + "\n" + footer

	sampled := len(messages)
	if sampled > e.sampleSize {
		sampled = e.sampleSize
	}

	participants := participantNames(messages)
	participantsStr := "the participants"
	if len(participants) > 0 {
		participantsStr = strings.Join(participants, " and ")
	}

	statsSummary := compact.StatsSummary(report)
	if statsSummary == "" {
		statsSummary = fmt.Sprintf("Total messages: %d", len(messages))
	}

	e.log.InfoContext(ctx, "Analyzing conversation",
		"total_messages", len(messages), "sampled", sampled, "context_chars", len(contextBlock))

	type category struct {
		prompt string
		stage  string
		into   any
	}

	cards := &Cards{
		ConversationDynamics: defaultDynamics(participants),
		EmotionalHealth:      defaultEmotional(participants),
		Engagement:           defaultEngagement(participants),
		SharingBalance:       defaultSharing(participants),
		Metadata: Metadata{
			Participants:     participants,
			MessagesAnalyzed: sampled,
			TotalMessages:    len(messages),
			ContextChars:     len(contextBlock),
		},
	}

	categories := []category{
		{conversationDynamicsPrompt, "Analyzing conversation dynamics...", &cards.ConversationDynamics},
		{emotionalHealthPrompt, "Analyzing emotional sentiment...", &cards.EmotionalHealth},
		{engagementPrompt, "Analyzing engagement patterns...", &cards.Engagement},
		{sharingBalancePrompt, "Analyzing sharing balance...", &cards.SharingBalance},
	}

	for i, cat := range categories {
		if progress != nil {
			progress(fmt.Sprintf("[%d/%d] %s", i+1, len(categories), cat.stage))
		}
		prompt := fmt.Sprintf(cat.prompt, participantsStr, contextBlock, statsSummary)
		e.generateInto(ctx, prompt, cat.into)
	}

	replaceParticipantCodes(cards, participants)
	return cards
}

// generateInto asks the generator and parses the first JSON object of
// the reply into dst. dst keeps its default value on any failure.
func (e *Engine) generateInto(ctx context.Context, prompt string, dst any) {
	if e.gen == nil {
		return
	}
	raw, err := e.gen.Generate(ctx, prompt, cardMaxTokens, cardTemperature)
	if err != nil {
		e.log.WarnContext(ctx, "Card generation failed, keeping defaults", "error", err)
		return
	}
	jsonStr, ok := extractJSON(raw)
	if !ok {
		e.log.WarnContext(ctx, "No JSON object in card response, keeping defaults")
		return
	}
	if err := json.Unmarshal([]byte(jsonStr), dst); err != nil {
		e.log.WarnContext(ctx, "Invalid card JSON, keeping defaults", "error", err)
	}
}

// extractJSON returns the span from the first '{' to the last '}' of
// text, tolerating prose around the object.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// replaceParticipantCodes rewrites leftover P1/P2 style codes in the
// card text with the actual names, in case the model echoes codes.
func replaceParticipantCodes(cards *Cards, participants []string) {
	if len(participants) == 0 {
		return
	}
	type sub struct {
		re   *regexp.Regexp
		name string
	}
	subs := make([]sub, 0, len(participants))
	for i, name := range participants {
		subs = append(subs, sub{regexp.MustCompile(fmt.Sprintf(`\bP%d\b`, i+1)), name})
	}
	fix := func(s string) string {
		for _, r := range subs {
			s = r.re.ReplaceAllString(s, r.name)
		}
		return s
	}
	fixAll := func(list []string) {
		for i := range list {
			list[i] = fix(list[i])
		}
	}

	cards.ConversationDynamics.InitiatorSummary = fix(cards.ConversationDynamics.InitiatorSummary)
	cards.ConversationDynamics.FlowPattern = fix(cards.ConversationDynamics.FlowPattern)
	cards.ConversationDynamics.TopicShifts = fix(cards.ConversationDynamics.TopicShifts)
	cards.EmotionalHealth.OverallSentiment = fix(cards.EmotionalHealth.OverallSentiment)
	cards.EmotionalHealth.HealthAssessment = fix(cards.EmotionalHealth.HealthAssessment)
	fixAll(cards.EmotionalHealth.RedFlags)
	fixAll(cards.EmotionalHealth.GreenFlags)
	cards.Engagement.BalanceSummary = fix(cards.Engagement.BalanceSummary)
	cards.Engagement.EffortAssessment = fix(cards.Engagement.EffortAssessment)
	cards.SharingBalance.SharingSummary = fix(cards.SharingBalance.SharingSummary)
	cards.SharingBalance.QuestionBalance = fix(cards.SharingBalance.QuestionBalance)
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

func pairNames(participants []string) (string, string) {
	p1, p2 := "Person 1", "Person 2"
	if len(participants) > 0 {
		p1 = participants[0]
	}
	if len(participants) > 1 {
		p2 = participants[1]
	}
	return p1, p2
}

func defaultDynamics(participants []string) ConversationDynamics {
	p1, p2 := pairNames(participants)
	return ConversationDynamics{
		InitiatorSummary: fmt.Sprintf("Both %s and %s initiate conversations regularly with casual greetings and questions.", p1, p2),
		FlowPattern:      "Their conversations typically start with greetings, progress through casual updates, and end with acknowledgments.",
		TopicShifts:      "Topics flow naturally between daily life, shared interests, and emotional discussions.",
	}
}

func defaultEmotional(participants []string) EmotionalHealth {
	p1, p2 := pairNames(participants)
	return EmotionalHealth{
		OverallSentiment: fmt.Sprintf("The conversation between %s and %s has a generally positive and supportive tone.", p1, p2),
		HealthAssessment: "Communication patterns appear healthy with regular back-and-forth engagement.",
		RedFlags:         []string{},
		GreenFlags:       []string{"Consistent communication", "Mutual engagement"},
	}
}

func defaultEngagement(participants []string) Engagement {
	p1, p2 := pairNames(participants)
	return Engagement{
		BalanceSummary:   fmt.Sprintf("Both %s and %s contribute meaningfully to conversations with similar message lengths.", p1, p2),
		EffortAssessment: "Both participants show investment in maintaining the conversation.",
		EngagementScore:  65,
	}
}

func defaultSharing(participants []string) SharingBalance {
	p1, p2 := pairNames(participants)
	return SharingBalance{
		SharingSummary:   fmt.Sprintf("%s and %s share personal information at similar levels.", p1, p2),
		QuestionBalance:  "Both participants ask questions and share about themselves reciprocally.",
		ReciprocityScore: 60,
	}
}
