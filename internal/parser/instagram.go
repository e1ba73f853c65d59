package parser

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/orbit-chat/orbit/internal/chat"
)

type instagramMessage struct {
	SenderName  string `json:"sender_name"`
	TimestampMs int64  `json:"timestamp_ms"`
	Content     string `json:"content"`
}

type instagramExport struct {
	Messages []instagramMessage `json:"messages"`
}

// fixInstagramEncoding reverses Instagram's export quirk: UTF-8 text
// mis-decoded as Latin-1, so e.g. Devanagari shows up as runs of
// accented Latin characters. The text is re-encoded to Latin-1 bytes and
// decoded as UTF-8; if either step fails the input is returned unchanged.
func fixInstagramEncoding(s string) string {
	if s == "" {
		return s
	}
	raw, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil {
		return s
	}
	if !utf8.ValidString(raw) {
		return s
	}
	return raw
}

// ParseInstagram parses an Instagram JSON export. The payload may be a
// bare message array or an object with a "messages" key. Entries without
// content or sender are skipped. Exports are commonly newest-first; the
// result is returned in chronological order.
func (p *Parser) ParseInstagram(data []byte) ([]*chat.Message, error) {
	var raw []instagramMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var export instagramExport
		if err := json.Unmarshal(data, &export); err != nil {
			return nil, fmt.Errorf("invalid instagram export: %w", err)
		}
		raw = export.Messages
	}

	messages := make([]*chat.Message, 0, len(raw))
	for i, m := range raw {
		if m.Content == "" || m.SenderName == "" {
			continue
		}
		ts := time.UnixMilli(m.TimestampMs).UTC()
		messages = append(messages, &chat.Message{
			ID:        fmt.Sprintf("ig-%d", i),
			Sender:    fixInstagramEncoding(m.SenderName),
			Content:   fixInstagramEncoding(m.Content),
			Timestamp: ts,
			WeekID:    chat.WeekID(ts),
		})
	}

	if len(messages) > 1 && messages[0].Timestamp.After(messages[len(messages)-1].Timestamp) {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}
