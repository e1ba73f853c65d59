// Package parser turns raw chat exports into ordered sequences of
// normalized messages. Two export formats are supported: the WhatsApp
// line-oriented text export and the Instagram structured JSON export.
package parser

import (
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/orbit-chat/orbit/internal/chat"
)

// Platform identifiers as stored on upload records.
const (
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
)

// ErrNoMessages is returned when zero messages could be recovered from
// the input. It is the only hard failure the parser produces; line-level
// gaps and unresolvable timestamps degrade instead.
var ErrNoMessages = errors.New("no messages recovered from input")

var leadingDateToken = regexp.MustCompile(`^\[?\d{1,2}[./-]`)

// DetectPlatform guesses the export format from the filename extension,
// falling back to content sniffing.
func DetectPlatform(filename, content string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".json") {
		return PlatformInstagram
	}
	head := content
	if len(head) > 500 {
		head = head[:500]
	}
	if strings.Contains(head, "WhatsApp") {
		return PlatformWhatsApp
	}
	probe := content
	if len(probe) > 100 {
		probe = probe[:100]
	}
	if leadingDateToken.MatchString(probe) {
		return PlatformWhatsApp
	}
	return PlatformWhatsApp
}

// Parser converts raw exports into normalized messages.
type Parser struct {
	log *slog.Logger
}

// New creates a Parser. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{log: log.With("component", "parser")}
}

// Parse detects the platform for the given filename and content and
// dispatches to the matching format parser. It returns messages in
// chronological order, or ErrNoMessages if nothing could be recovered.
func (p *Parser) Parse(filename string, data []byte) ([]*chat.Message, string, error) {
	content := string(data)
	platform := DetectPlatform(filename, content)

	var msgs []*chat.Message
	var err error
	switch platform {
	case PlatformInstagram:
		msgs, err = p.ParseInstagram(data)
	default:
		msgs, err = p.ParseWhatsApp(content)
	}
	if err != nil {
		return nil, platform, err
	}
	if len(msgs) == 0 {
		return nil, platform, ErrNoMessages
	}

	p.log.Info("parsed chat export",
		"platform", platform,
		"filename", filename,
		"messages", len(msgs))
	return msgs, platform, nil
}
