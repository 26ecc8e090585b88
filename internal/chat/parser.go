package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// cancelStride bounds how many lines are scanned between cancellation
// checks.
const cancelStride = 64

// Message is a single entry in a chat export, ordered by transcript
// position. Timestamps are not assumed monotonic: exports can contain
// edited or backfilled entries.
type Message struct {
	Sender    string
	Timestamp time.Time
	Text      string
	IsSystem  bool
}

// ErrTranscriptUnparseable is returned only when zero messages are
// recovered from the transcript.
var ErrTranscriptUnparseable = errors.New("transcript unparseable: no messages recovered")

// Boundary patterns for the two common export flavours:
//
//	10/1/24, 14:00 - Dana: text        (android)
//	[10/1/24, 14:00:05] Dana: text     (ios)
//
// Lines not matching either pattern continue the previous message.
var (
	androidBoundary = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),? (\d{1,2}:\d{2}) - (.+)$`)
	iosBoundary     = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),? (\d{1,2}:\d{2}(?::\d{2})?)\] (.+)$`)
)

// directional and zero-width marks that WhatsApp sprinkles through RTL
// exports; stripped so boundary matching and downstream comparison stay
// deterministic.
var markReplacer = strings.NewReplacer(
	"\u200e", "", "\u200f", "", "\ufeff", "",
	"\u202a", "", "\u202b", "", "\u202c", "", "\u202d", "", "\u202e", "",
)

// Parse splits transcript bytes into an ordered message sequence. System
// and metadata lines are tagged IsSystem and kept for positional context.
func Parse(ctx context.Context, r io.Reader) ([]Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var msgs []Message
	var current *Message

	flush := func() {
		if current != nil {
			current.Text = strings.TrimRight(current.Text, "\n")
			msgs = append(msgs, *current)
			current = nil
		}
	}

	lines := 0
	for scanner.Scan() {
		if lines%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lines++
		line := markReplacer.Replace(scanner.Text())

		var m []string
		if m = androidBoundary.FindStringSubmatch(line); m == nil {
			m = iosBoundary.FindStringSubmatch(line)
		}
		if m == nil {
			// Continuation of a multi-line body. Preamble junk before the
			// first boundary is dropped.
			if current != nil {
				current.Text += "\n" + line
			}
			continue
		}

		flush()
		msg := Message{Timestamp: parseStamp(m[1], m[2])}

		rest := m[3]
		// The sender separator is ": " after the boundary; colons inside
		// the body never start a new message because the body is only
		// reached through a timestamp match.
		if idx := strings.Index(rest, ": "); idx >= 0 {
			msg.Sender = strings.TrimSpace(rest[:idx])
			msg.Text = rest[idx+2:]
			msg.IsSystem = systemBody(msg.Text)
		} else {
			// No sender: group notices, encryption banners, join/leave.
			msg.Text = rest
			msg.IsSystem = true
		}
		current = &msg
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	flush()

	if len(msgs) == 0 {
		return nil, ErrTranscriptUnparseable
	}
	return msgs, nil
}

// parseStamp tries day-first layouts before month-first, matching the
// export locales seen in practice. A zero time is acceptable; ordering
// comes from transcript position, never from timestamps.
var stampLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/06 15:04:05",
	"2/1/06 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/06 15:04:05",
	"1/2/06 15:04",
}

func parseStamp(date, clock string) time.Time {
	raw := date + " " + clock
	for _, layout := range stampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// systemBody recognises placeholder bodies that carry no user text.
func systemBody(text string) bool {
	t := strings.TrimSpace(text)
	if t == "null" {
		return true
	}
	if t == "<Media omitted>" || strings.HasSuffix(t, "omitted") {
		return true
	}
	return strings.Contains(t, "security code changed") ||
		strings.Contains(t, "Messages and calls are end-to-end encrypted")
}
