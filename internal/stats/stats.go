// Package stats computes global conversation metrics from a parsed
// message sequence in a single forward pass.
package stats

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/orbit-chat/orbit/internal/chat"
)

// ErrNoMessages is returned when Compute is called with an empty slice.
var ErrNoMessages = errors.New("stats: no messages to analyze")

// Emoji detection restricted to emotion/face/heart blocks. Object and
// symbol emoji are deliberately excluded to keep the signal meaningful;
// this taxonomy is fixed, not an oversight to broaden.
var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F910}-\x{1F92F}\x{1F970}-\x{1F97F}\x{1F48B}-\x{1F49F}\x{2764}]`)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

var wordSplitPattern = regexp.MustCompile(`[\s,.!?":;()]+`)

var stopwords = map[string]struct{}{
	"the": {}, "be": {}, "to": {}, "of": {}, "and": {}, "a": {}, "in": {}, "that": {},
	"have": {}, "i": {}, "it": {}, "for": {}, "not": {}, "on": {}, "with": {}, "he": {},
	"as": {}, "you": {}, "do": {}, "at": {}, "this": {}, "but": {}, "his": {}, "by": {},
	"from": {}, "they": {}, "we": {}, "say": {}, "her": {}, "she": {}, "or": {}, "an": {},
	"will": {}, "my": {}, "one": {}, "all": {}, "would": {}, "there": {}, "their": {},
	"what": {}, "so": {}, "up": {}, "out": {}, "if": {}, "about": {}, "who": {}, "get": {},
	"which": {}, "go": {}, "me": {}, "when": {}, "make": {}, "can": {}, "like": {},
	"time": {}, "no": {}, "just": {}, "him": {}, "know": {}, "take": {}, "people": {},
	"into": {}, "year": {}, "your": {}, "good": {}, "some": {}, "could": {}, "them": {},
	"see": {}, "other": {}, "than": {}, "then": {}, "now": {}, "look": {}, "only": {},
	"come": {}, "its": {}, "over": {}, "think": {}, "also": {}, "back": {}, "after": {},
	"use": {}, "two": {}, "how": {}, "our": {}, "work": {}, "first": {}, "well": {},
	"way": {}, "even": {}, "new": {}, "want": {}, "because": {}, "any": {}, "these": {},
	"give": {}, "day": {}, "most": {}, "us": {}, "omitted": {}, "image": {}, "audio": {},
	"message": {}, "media": {},
}

// Gap thresholds for the engagement metrics.
const (
	initiationGap = 6 * time.Hour
	replyGapMax   = 12 * time.Hour
	doubleTextGap = time.Hour
)

// EmojiCount pairs an emoji with its occurrence count.
type EmojiCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

// MonthEmojis is the per-month emoji tally for the timeline view.
type MonthEmojis struct {
	Date   string       `json:"date"`
	Emojis []EmojiCount `json:"emojis"`
}

// WordCount is a word-cloud entry.
type WordCount struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// LinkCount pairs a shared URL with its occurrence count.
type LinkCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// TimelinePoint is a per-day message count.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Streak describes consecutive-day activity. Current is zero unless the
// most recent active day is within two days of now.
type Streak struct {
	Current    int            `json:"current"`
	Max        int            `json:"max"`
	ActiveDays map[string]int `json:"activeDays"`
}

// ParticipantStats holds the per-sender running totals.
type ParticipantStats struct {
	Count           int `json:"count"`
	AvgLength       int `json:"avgLength"`
	ReplyTime       int `json:"replyTime"` // mean reply latency, minutes
	DoubleTextCount int `json:"doubleTextCount"`
}

// Initiator ranks a sender by conversation-start count.
type Initiator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Report is the full statistics output for one conversation.
type Report struct {
	TotalMessages  int                         `json:"totalMessages"`
	StartDate      time.Time                   `json:"startDate"`
	EndDate        time.Time                   `json:"endDate"`
	TopEmojis      []EmojiCount                `json:"topEmojis"`
	MonthlyEmojis  []MonthEmojis               `json:"monthlyEmojis"`
	HourlyActivity [24]int                     `json:"hourlyActivity"`
	WordCloud      []WordCount                 `json:"wordCloud"`
	Streak         Streak                      `json:"streak"`
	Timeline       []TimelinePoint             `json:"timeline"`
	Links          []LinkCount                 `json:"links"`
	Participants   map[string]ParticipantStats `json:"participants"`
	Heatmap        [7][24]int                  `json:"heatmap"` // Monday-first rows
	Initiators     []Initiator                 `json:"initiators"`
}

type participantAccum struct {
	count           int
	totalLength     int
	replyMinutes    []int
	doubleTextCount int
}

// Compute runs the single-pass aggregation over messages, which must be
// non-empty and in chronological order. Ranking ties are broken
// deterministically by sorting (count descending, then key ascending).
func Compute(messages []*chat.Message) (*Report, error) {
	return compute(messages, time.Now())
}

func compute(messages []*chat.Message, now time.Time) (*Report, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	emojiCounts := make(map[string]int)
	monthlyEmoji := make(map[string]map[string]int)
	wordCounts := make(map[string]int)
	linkCounts := make(map[string]int)
	activeDays := make(map[string]int)
	participants := make(map[string]*participantAccum)
	initiators := make(map[string]int)

	report := &Report{
		StartDate:    messages[0].Timestamp,
		EndDate:      messages[len(messages)-1].Timestamp,
		Participants: make(map[string]ParticipantStats),
	}

	var lastTime time.Time
	var lastSender string

	for _, msg := range messages {
		ts := msg.Timestamp
		hour := ts.Hour()
		day := mondayIndex(ts.Weekday())
		dayKey := ts.Format("2006-01-02")
		monthKey := ts.Format("2006-01")

		report.HourlyActivity[hour]++
		activeDays[dayKey]++
		report.Heatmap[day][hour]++

		acc := participants[msg.Sender]
		if acc == nil {
			acc = &participantAccum{}
			participants[msg.Sender] = acc
		}
		acc.count++
		acc.totalLength += len(msg.Content)

		for _, e := range emojiPattern.FindAllString(msg.Content, -1) {
			emojiCounts[e]++
			month := monthlyEmoji[monthKey]
			if month == nil {
				month = make(map[string]int)
				monthlyEmoji[monthKey] = month
			}
			month[e]++
		}

		for _, link := range urlPattern.FindAllString(msg.Content, -1) {
			linkCounts[link]++
		}

		if !strings.Contains(strings.ToLower(msg.Content), "omitted") {
			for _, w := range wordSplitPattern.Split(strings.ToLower(msg.Content), -1) {
				if len(w) > 3 && !strings.HasPrefix(w, "http") {
					if _, stop := stopwords[w]; !stop {
						wordCounts[w]++
					}
				}
			}
		}

		// Engagement metrics use only the previous message's sender and
		// timestamp as running state: a strict linear scan.
		if lastTime.IsZero() {
			initiators[msg.Sender]++
		} else {
			gap := ts.Sub(lastTime)
			switch {
			case gap > initiationGap:
				initiators[msg.Sender]++
			case msg.Sender != lastSender:
				if gap < replyGapMax {
					acc.replyMinutes = append(acc.replyMinutes, int(gap.Round(time.Minute)/time.Minute))
				}
			default:
				if gap < doubleTextGap {
					acc.doubleTextCount++
				}
			}
		}
		lastTime = ts
		lastSender = msg.Sender
	}

	report.TotalMessages = len(messages)
	report.TopEmojis = topEmojis(emojiCounts, 5)
	report.WordCloud = topWords(wordCounts, 60)
	report.Links = topLinks(linkCounts, 10)
	report.MonthlyEmojis = monthlyTimeline(monthlyEmoji)
	report.Timeline = dayTimeline(activeDays)
	report.Streak = calcStreak(activeDays, now)

	for name, acc := range participants {
		avgLen := 0
		if acc.count > 0 {
			avgLen = acc.totalLength / acc.count
		}
		avgReply := 0
		if len(acc.replyMinutes) > 0 {
			sum := 0
			for _, m := range acc.replyMinutes {
				sum += m
			}
			avgReply = sum / len(acc.replyMinutes)
		}
		report.Participants[name] = ParticipantStats{
			Count:           acc.count,
			AvgLength:       avgLen,
			ReplyTime:       avgReply,
			DoubleTextCount: acc.doubleTextCount,
		}
	}

	for name, count := range initiators {
		report.Initiators = append(report.Initiators, Initiator{Name: name, Count: count})
	}
	sort.Slice(report.Initiators, func(i, j int) bool {
		if report.Initiators[i].Count != report.Initiators[j].Count {
			return report.Initiators[i].Count > report.Initiators[j].Count
		}
		return report.Initiators[i].Name < report.Initiators[j].Name
	})

	return report, nil
}

// mondayIndex maps time.Weekday (Sunday=0) to a Monday-first row index.
func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func sortedCounts(m map[string]int) []struct {
	key   string
	count int
} {
	out := make([]struct {
		key   string
		count int
	}, 0, len(m))
	for k, v := range m {
		out = append(out, struct {
			key   string
			count int
		}{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func topEmojis(m map[string]int, n int) []EmojiCount {
	var out []EmojiCount
	for _, e := range sortedCounts(m) {
		if len(out) >= n {
			break
		}
		out = append(out, EmojiCount{Emoji: e.key, Count: e.count})
	}
	return out
}

func topWords(m map[string]int, n int) []WordCount {
	var out []WordCount
	for _, e := range sortedCounts(m) {
		if len(out) >= n {
			break
		}
		out = append(out, WordCount{Text: e.key, Value: e.count})
	}
	return out
}

func topLinks(m map[string]int, n int) []LinkCount {
	var out []LinkCount
	for _, e := range sortedCounts(m) {
		if len(out) >= n {
			break
		}
		out = append(out, LinkCount{URL: e.key, Count: e.count})
	}
	return out
}

func monthlyTimeline(monthly map[string]map[string]int) []MonthEmojis {
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthEmojis, 0, len(months))
	for _, m := range months {
		entry := MonthEmojis{Date: m}
		for i, e := range sortedCounts(monthly[m]) {
			if i >= 20 {
				break
			}
			entry.Emojis = append(entry.Emojis, EmojiCount{Emoji: e.key, Count: e.count})
		}
		out = append(out, entry)
	}
	return out
}

func dayTimeline(activeDays map[string]int) []TimelinePoint {
	days := make([]string, 0, len(activeDays))
	for d := range activeDays {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]TimelinePoint, 0, len(days))
	for _, d := range days {
		out = append(out, TimelinePoint{Date: d, Count: activeDays[d]})
	}
	return out
}

// calcStreak finds the longest run of consecutive active days. The
// trailing run counts as current only if its last day is within two
// days of now.
func calcStreak(activeDays map[string]int, now time.Time) Streak {
	streak := Streak{ActiveDays: activeDays}
	if len(activeDays) == 0 {
		return streak
	}

	days := make([]string, 0, len(activeDays))
	for d := range activeDays {
		days = append(days, d)
	}
	sort.Strings(days)

	prev, _ := time.Parse("2006-01-02", days[0])
	maxStreak := 1
	tempStreak := 1
	for _, d := range days[1:] {
		curr, _ := time.Parse("2006-01-02", d)
		if int(curr.Sub(prev).Hours()/24) == 1 {
			tempStreak++
		} else {
			if tempStreak > maxStreak {
				maxStreak = tempStreak
			}
			tempStreak = 1
		}
		prev = curr
	}
	if tempStreak > maxStreak {
		maxStreak = tempStreak
	}

	streak.Max = maxStreak
	// The trailing run stays live only within two days of now.
	last, _ := time.Parse("2006-01-02", days[len(days)-1])
	if int(now.Sub(last).Hours()/24) <= 2 {
		streak.Current = tempStreak
	}
	return streak
}
