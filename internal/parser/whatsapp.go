package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/orbit-chat/orbit/internal/chat"
)

// whatsappPatterns are tried in order; the first match wins. They cover
// the bracketed iOS layout, the Android dash layout, and the US 12-hour
// layout, with slash/dot/dash date separators.
var whatsappPatterns = []*regexp.Regexp{
	// iOS / standard: [25/06/23, 11:23:45] Name: Msg
	regexp.MustCompile(`^\[?(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}),?\s+(\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp][Mm])?)\]?\s(?:-\s)?([^:]+):\s(.+)`),
	// Android: 25/06/2023, 11:23 - Name: Msg
	regexp.MustCompile(`^(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}),?\s+(\d{1,2}:\d{2}(?:\s?[AaPp][Mm])?)\s-\s([^:]+):\s(.+)`),
	// US format: 6/25/23, 11:23 PM - Name: Msg
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),?\s+(\d{1,2}:\d{2}\s?[AaPp][Mm])\s-\s([^:]+):\s(.+)`),
}

// whatsappLayouts are tried in order against the normalized "date time"
// string. Day-first layouts come before month-first ones.
var whatsappLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
	"2/1/2006 3:04 PM",
	"2/1/06 3:04 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 3:04 PM",
	"2/1/2006 3:04PM",
	"2/1/06 3:04PM",
	"1/2/2006 3:04PM",
	"1/2/06 3:04PM",
}

// parseWhatsAppTime parses the date and time captures of a matched line.
// Separators are normalized to slashes and the AM/PM marker upper-cased
// before trying the layout list. Returns the zero time on total failure.
func parseWhatsAppTime(datePart, timePart string) time.Time {
	normalized := strings.NewReplacer(".", "/", "-", "/").Replace(datePart)
	candidate := strings.ToUpper(normalized + " " + timePart)
	for _, layout := range whatsappLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseWhatsApp parses a WhatsApp text export with a streaming state
// machine over lines. A line matching one of the message patterns flushes
// the in-progress message and starts a new one; any other line is a
// continuation of the current message, newline-joined. Lines matching no
// pattern with no open message (file headers, system notices) are
// skipped silently.
func (p *Parser) ParseWhatsApp(text string) ([]*chat.Message, error) {
	var messages []*chat.Message
	var current *chat.Message
	var lastValid time.Time
	recovered := 0

	for i, line := range strings.Split(text, "\n") {
		var match []string
		for _, pattern := range whatsappPatterns {
			if match = pattern.FindStringSubmatch(line); match != nil {
				break
			}
		}

		if match == nil {
			if current != nil && current.Content != "" {
				current.Content += "\n" + strings.TrimSpace(line)
			}
			continue
		}

		if current != nil {
			messages = append(messages, current)
		}

		ts := parseWhatsAppTime(match[1], match[2])
		if ts.IsZero() {
			// Deliberate recovery policy: reuse the last good timestamp
			// rather than dropping the message. The very first message
			// of a file falls back to the Unix epoch.
			if lastValid.IsZero() {
				ts = time.Unix(0, 0).UTC()
			} else {
				ts = lastValid
			}
			recovered++
		} else {
			lastValid = ts
		}

		current = &chat.Message{
			ID:        fmt.Sprintf("wa-%d", i),
			Sender:    strings.TrimSpace(match[3]),
			Content:   strings.TrimSpace(match[4]),
			Timestamp: ts,
			WeekID:    chat.WeekID(ts),
		}
	}

	if current != nil {
		messages = append(messages, current)
	}

	if recovered > 0 {
		p.log.Warn("recovered messages with unparseable timestamps", "count", recovered)
	}
	return messages, nil
}
