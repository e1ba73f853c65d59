// Package compact prepares large conversations for LLM context windows
// using stratified sampling and lossy but meaning-preserving text
// compression.
package compact

import (
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/orbit-chat/orbit/internal/chat"
	"github.com/orbit-chat/orbit/internal/stats"
)

const (
	// DefaultMaxContextChars is roughly 4k tokens of context.
	DefaultMaxContextChars = 15000

	// DefaultSampleSize is the message count targeted by BuildContext.
	DefaultSampleSize = 500

	truncationMarker = "\n[...truncated]"

	sampleSeed = 42
)

var urlPattern = regexp.MustCompile(`https?://(?:www\.)?([a-zA-Z0-9.-]+)(?:/[^\s]*)?`)

// Consecutive emoji runs across the broad pictograph blocks, flags and
// dingbats included.
var emojiRunPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2702}-\x{27B0}\x{24C2}-\x{1F251}]+`)

// Optimizer compresses a conversation into a bounded prompt context.
// Sampling is seeded, so repeated runs over the same input produce the
// same context.
type Optimizer struct {
	messages        []*chat.Message
	maxContextChars int
	nameToCode      map[string]string
	codeToName      map[string]string
}

// NewOptimizer builds an Optimizer over messages. maxContextChars <= 0
// selects DefaultMaxContextChars.
func NewOptimizer(messages []*chat.Message, maxContextChars int) *Optimizer {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Optimizer{
		messages:        messages,
		maxContextChars: maxContextChars,
		nameToCode:      make(map[string]string),
		codeToName:      make(map[string]string),
	}
}

// CodeToName exposes the participant code legend (P1, P2, ...) built by
// BuildContext, keyed by code.
func (o *Optimizer) CodeToName() map[string]string {
	return o.codeToName
}

func (o *Optimizer) assignParticipantCodes() {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range o.messages {
		if _, ok := seen[m.Sender]; !ok {
			seen[m.Sender] = struct{}{}
			names = append(names, m.Sender)
		}
	}
	sort.Strings(names)
	for i, name := range names {
		code := fmt.Sprintf("P%d", i+1)
		o.nameToCode[name] = code
		o.codeToName[code] = name
	}
}

// shortenURLs replaces each URL with a [link:domain] marker keeping
// only the registrable part of the host.
func shortenURLs(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := urlPattern.FindStringSubmatch(match)
		domain := sub[1]
		parts := strings.Split(domain, ".")
		main := domain
		if len(parts) >= 2 {
			main = parts[len(parts)-2]
		}
		return "[link:" + main + "]"
	})
}

// collapseCharRuns shortens runs of four or more identical runes to
// two, so "loooool" becomes "lool".
func collapseCharRuns(text string) string {
	runes := []rune(text)
	if len(runes) < 4 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(runes) {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		run := j - i
		if run >= 4 {
			run = 2
		}
		for k := 0; k < run; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

// collapseWordRuns rewrites three or more consecutive identical words
// (case-insensitive) as word[xN].
func collapseWordRuns(text string) string {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}
	var out []string
	i := 0
	for i < len(words) {
		count := 1
		for i+count < len(words) && strings.EqualFold(words[i+count], words[i]) {
			count++
		}
		if count >= 3 {
			out = append(out, fmt.Sprintf("%s[x%d]", words[i], count))
		} else {
			out = append(out, words[i:i+count]...)
		}
		i += count
	}
	return strings.Join(out, " ")
}

// consolidateEmojis rewrites emoji bursts so each distinct emoji
// appearing more than twice in a run becomes emoji[xN]. First
// appearance order within the run is preserved.
func consolidateEmojis(text string) string {
	return emojiRunPattern.ReplaceAllStringFunc(text, func(run string) string {
		runes := []rune(run)
		if len(runes) <= 2 {
			return run
		}
		counts := make(map[rune]int)
		var order []rune
		for _, r := range runes {
			if counts[r] == 0 {
				order = append(order, r)
			}
			counts[r]++
		}
		var b strings.Builder
		for _, r := range order {
			if n := counts[r]; n > 2 {
				fmt.Fprintf(&b, "%c[x%d]", r, n)
			} else {
				b.WriteString(strings.Repeat(string(r), n))
			}
		}
		return b.String()
	})
}

// OptimizeMessage applies every compression step to one message body.
func (o *Optimizer) OptimizeMessage(content string) string {
	if content == "" {
		return ""
	}
	text := shortenURLs(content)
	text = consolidateEmojis(text)
	text = collapseCharRuns(text)
	text = collapseWordRuns(text)
	return strings.TrimSpace(text)
}

// stratifiedSample picks sampleSize messages keeping chronological
// order: the first fifth of the chat contributes 15%, the span up to
// the midpoint 25%, and the recent half the remainder.
func (o *Optimizer) stratifiedSample(sampleSize int) []*chat.Message {
	total := len(o.messages)
	if total <= sampleSize {
		return o.messages
	}

	earlyEnd := total / 5
	middleEnd := total / 2

	earlyCount := sampleSize * 15 / 100
	middleCount := sampleSize * 25 / 100
	recentCount := sampleSize - earlyCount - middleCount

	r := rand.New(rand.NewSource(sampleSeed))

	var picked []int
	picked = append(picked, sampleIndexes(r, 0, earlyEnd, earlyCount)...)
	picked = append(picked, sampleIndexes(r, earlyEnd, middleEnd, middleCount)...)
	picked = append(picked, sampleIndexes(r, middleEnd, total, recentCount)...)
	sort.Ints(picked)

	out := make([]*chat.Message, 0, len(picked))
	for _, idx := range picked {
		out = append(out, o.messages[idx])
	}
	return out
}

func sampleIndexes(r *rand.Rand, lo, hi, n int) []int {
	size := hi - lo
	if size <= n {
		out := make([]int, 0, size)
		for i := lo; i < hi; i++ {
			out = append(out, i)
		}
		return out
	}
	perm := r.Perm(size)
	out := make([]int, 0, n)
	for _, p := range perm[:n] {
		out = append(out, lo+p)
	}
	return out
}

// BuildContext assembles the compressed "Sender: content" transcript
// plus a notes footer. Lines carry the display names; the P-code map
// is still populated so callers can strip codes the model invents.
// The transcript never exceeds the configured character budget,
// truncation marker included.
func (o *Optimizer) BuildContext(sampleSize int) (string, string) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	o.assignParticipantCodes()

	sampled := o.stratifiedSample(sampleSize)

	var lines []string
	for _, m := range sampled {
		content := o.OptimizeMessage(m.Content)
		if content == "" {
			continue
		}
		lines = append(lines, m.Sender+": "+content)
	}
	context := strings.Join(lines, "\n")

	if len(context) > o.maxContextChars {
		cut := o.maxContextChars - len(truncationMarker)
		if cut < 0 {
			cut = 0
		}
		// Back up to a rune boundary so the cut never leaves a
		// partial UTF-8 sequence in front of the marker.
		for cut > 0 && !utf8.RuneStart(context[cut]) {
			cut--
		}
		context = context[:cut] + truncationMarker
	}

	footer := strings.Join([]string{
		"---",
		"NOTES:",
		fmt.Sprintf("Total messages in chat: %d", len(o.messages)),
		fmt.Sprintf("Messages sampled: %d", len(sampled)),
		"[xN] = repeated N times",
		"[link:X] = URL from X domain",
	}, "\n")

	return context, footer
}

// StatsSummary renders a compact prose block from a statistics report,
// suitable for prepending to a generation prompt.
func StatsSummary(report *stats.Report) string {
	if report == nil {
		return ""
	}

	lines := []string{
		"STATISTICS:",
		fmt.Sprintf("Total messages: %s", humanize.Comma(int64(report.TotalMessages))),
	}

	names := make([]string, 0, len(report.Participants))
	for name := range report.Participants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := report.Participants[name]
		lines = append(lines, fmt.Sprintf("%s: %s messages, avg %d chars/msg",
			name, humanize.Comma(int64(p.Count)), p.AvgLength))
	}

	if len(report.Initiators) > 0 {
		top := report.Initiators
		if len(top) > 2 {
			top = top[:2]
		}
		var parts []string
		for _, init := range top {
			parts = append(parts, fmt.Sprintf("%s: %d times", init.Name, init.Count))
		}
		lines = append(lines, "Conversation starters: "+strings.Join(parts, ", "))
	}

	peak, peakCount := 0, report.HourlyActivity[0]
	for h, c := range report.HourlyActivity {
		if c > peakCount {
			peak, peakCount = h, c
		}
	}
	lines = append(lines, fmt.Sprintf("Peak activity hour: %d:00", peak))

	if !report.StartDate.IsZero() && !report.EndDate.IsZero() {
		lines = append(lines, fmt.Sprintf("Date range: %s to %s",
			report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02")))
	}

	return strings.Join(lines, "\n")
}
