package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse_Basic(t *testing.T) {
	transcript := strings.Join([]string{
		"10/1/24, 14:00 - Dana: מישהו מכיר אינסטלטור טוב? 050-1112222",
		"10/1/24, 14:05 - Yossi: כן, תתקשר לדוד",
	}, "\n")

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Sender != "Dana" {
		t.Errorf("expected sender Dana, got %q", msgs[0].Sender)
	}
	if msgs[0].Text != "מישהו מכיר אינסטלטור טוב? 050-1112222" {
		t.Errorf("unexpected text %q", msgs[0].Text)
	}
	want := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, msgs[0].Timestamp)
	}
	if msgs[0].IsSystem || msgs[1].IsSystem {
		t.Error("user messages must not be tagged as system")
	}
}

func TestParse_MultiLineContinuation(t *testing.T) {
	transcript := strings.Join([]string{
		"10/1/24, 14:00 - Dana: first line",
		"second line",
		"third line",
		"10/1/24, 14:01 - Yossi: next",
	}, "\n")

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "first line\nsecond line\nthird line" {
		t.Errorf("unexpected joined body %q", msgs[0].Text)
	}
}

func TestParse_EmbeddedColonNotABoundary(t *testing.T) {
	transcript := "10/1/24, 14:00 - Dana: note: call after 17:00 - or tomorrow"

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Text != "note: call after 17:00 - or tomorrow" {
		t.Errorf("body mangled: %q", msgs[0].Text)
	}
}

func TestParse_SystemMessages(t *testing.T) {
	transcript := strings.Join([]string{
		"10/1/24, 13:59 - Messages and calls are end-to-end encrypted. No one outside of this chat can read them.",
		"10/1/24, 14:00 - Dana created group \"שכונה\"",
		"10/1/24, 14:01 - Dana: <Media omitted>",
		"10/1/24, 14:02 - Dana: actual text",
	}, "\n")

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i := 0; i < 3; i++ {
		if !msgs[i].IsSystem {
			t.Errorf("message %d should be system: %+v", i, msgs[i])
		}
	}
	if msgs[3].IsSystem {
		t.Error("user message wrongly tagged as system")
	}
	// System messages keep their position for context lookups.
	if msgs[2].Sender != "Dana" {
		t.Errorf("media placeholder should keep sender, got %q", msgs[2].Sender)
	}
}

func TestParse_IOSFormat(t *testing.T) {
	transcript := "[10/1/24, 14:00:30] Dana: hello"

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Sender != "Dana" || msgs[0].Text != "hello" {
		t.Errorf("unexpected message %+v", msgs[0])
	}
	if msgs[0].Timestamp.Second() != 30 {
		t.Errorf("expected seconds parsed, got %v", msgs[0].Timestamp)
	}
}

func TestParse_MixedDateFormats(t *testing.T) {
	// Day 25 forces day-first; the second line is ambiguous and resolves
	// day-first by layout order, deterministically.
	transcript := strings.Join([]string{
		"25/1/2024, 09:00 - Dana: one",
		"1/2/2024, 09:00 - Dana: two",
	}, "\n")

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Timestamp.Day() != 25 || msgs[0].Timestamp.Month() != time.January {
		t.Errorf("day-first parse failed: %v", msgs[0].Timestamp)
	}
	if msgs[1].Timestamp.Day() != 1 || msgs[1].Timestamp.Month() != time.February {
		t.Errorf("ambiguous date must resolve day-first: %v", msgs[1].Timestamp)
	}
}

func TestParse_DirectionalMarksStripped(t *testing.T) {
	transcript := "‎10/1/24, 14:00 - ‏Dana‎: שלום 050-1112222"

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgs[0].Sender != "Dana" {
		t.Errorf("marks not stripped from sender: %q", msgs[0].Sender)
	}
}

func TestParse_BOMStripped(t *testing.T) {
	transcript := "\ufeff10/1/24, 14:00 - Dana: שלום"

	msgs, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sender != "Dana" {
		t.Errorf("leading byte order mark must not break the boundary: %+v", msgs)
	}
}

func TestParse_Cancellation(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("10/1/24, 14:00 - Dana: line\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Parse(ctx, strings.NewReader(b.String()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestParse_ZeroMessages(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader("no boundaries here\njust noise"))
	if !errors.Is(err, ErrTranscriptUnparseable) {
		t.Fatalf("expected ErrTranscriptUnparseable, got %v", err)
	}
}

func TestParse_Deterministic(t *testing.T) {
	transcript := strings.Join([]string{
		"10/1/24, 14:00 - Dana: אינסטלטור 050-1112222",
		"continuation",
		"10/1/24, 14:01 - Yossi: ok",
	}, "\n")

	a, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Parse(context.Background(), strings.NewReader(transcript))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic length: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("message %d differs between runs", i)
		}
	}
}
