package extract

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/maven/internal/chat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(sender, text string) chat.Message {
	return chat.Message{Sender: sender, Text: text}
}

func TestExtract_PhoneMention(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "מישהו מכיר אינסטלטור טוב? 050-1112222"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.Rule != RulePhoneMention {
		t.Errorf("expected phone-mention rule, got %q", c.Rule)
	}
	if len(c.Phones) != 1 || c.Phones[0] != "050-1112222" {
		t.Errorf("unexpected phones %v", c.Phones)
	}
	if c.Context != msgs[0].Text {
		t.Errorf("context must be the verbatim message text, got %q", c.Context)
	}
	if c.MessageIndex != 0 {
		t.Errorf("expected message index 0, got %d", c.MessageIndex)
	}
	if c.Service != "אינסטלטור טוב" {
		t.Errorf("expected service cue from question, got %q", c.Service)
	}
	if c.Origin != OriginChat {
		t.Errorf("expected chat origin, got %q", c.Origin)
	}
}

func TestExtract_AskAnswerProximity(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "מישהו מכיר חשמלאי?"),
		msg("Yossi", "תתקשר לדוד 052-3334444"),
	}

	ext := New(Config{DefaultRegion: "IL", ProximityWindow: 2}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Service != "חשמלאי" {
		t.Errorf("expected service from preceding question, got %q", cands[0].Service)
	}
	if cands[0].ProviderName != "דוד" {
		t.Errorf("expected name from call cue, got %q", cands[0].ProviderName)
	}
}

func TestExtract_EarliestAskWins(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "מישהו מכיר גנן?"),
		msg("Rina", "מישהו מכיר חשמלאי?"),
		msg("Yossi", "תתקשר לדוד 052-3334444"),
	}

	ext := New(Config{DefaultRegion: "IL", ProximityWindow: 2}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Service != "גנן" {
		t.Errorf("oldest ask in the window should win, got %q", cands[0].Service)
	}
}

func TestExtract_MultiplePhonesOneCandidateEach(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "שני מספרים: 050-1112222 או 052-3334444"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected one candidate per phone, got %d", len(cands))
	}
	if cands[0].Context != cands[1].Context {
		t.Error("candidates from one message must share the context")
	}
}

func TestExtract_ContactShare(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "Dana Levi.vcf (file attached)"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Rule != RuleContactShare {
		t.Errorf("expected contact-share rule, got %q", cands[0].Rule)
	}
	if cands[0].ShareFile != "dana levi.vcf" {
		t.Errorf("unexpected share file %q", cands[0].ShareFile)
	}
}

func TestExtract_SystemMessagesSkipped(t *testing.T) {
	msgs := []chat.Message{
		{Sender: "", Text: "Dana changed the group description 050-1112222", IsSystem: true},
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("system messages must not yield candidates, got %d", len(cands))
	}
}

func TestExtract_URLNumbersExcluded(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "https://example.com/posts/0541234567 check this"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 0 {
		t.Fatalf("URL-embedded digits must not be phones, got %+v", cands)
	}
}

func TestExtract_PunctuationBeforePhone(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"question mark then space", "מישהו מכיר חשמלאי? 050-1112222", 1},
		{"period then space", "כדאי מאוד. 050-1112222", 1},
		{"glued tracking parameter", "ref=0501112222", 0},
		{"glued path segment", "details/0501112222", 0},
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	for _, tt := range tests {
		cands, err := ext.Extract(context.Background(), []chat.Message{msg("Dana", tt.text)})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if len(cands) != tt.want {
			t.Errorf("%s: expected %d candidates, got %d", tt.name, tt.want, len(cands))
		}
	}
}

func TestExtract_RecommenderFromPhoneSender(t *testing.T) {
	msgs := []chat.Message{
		msg("+972 52-577-4739", "תתקשר לדוד 050-1112222"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	cands, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].Recommender != "+972525774739" {
		t.Errorf("expected normalized recommender, got %q", cands[0].Recommender)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	msgs := []chat.Message{
		msg("Dana", "מישהו מכיר גנן?"),
		msg("Yossi", "יש את משה 050-1112222, מומלץ"),
		msg("Rina", "Moshe - גנן.vcf (file attached)"),
	}

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	a, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ext.Extract(context.Background(), msgs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("extraction must be deterministic for identical input")
	}
}

func TestExtract_Cancellation(t *testing.T) {
	msgs := make([]chat.Message, 1000)
	for i := range msgs {
		msgs[i] = msg("Dana", "תתקשר לדוד 050-1112222")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := New(Config{DefaultRegion: "IL"}, testLogger())
	start := time.Now()
	_, err := ext.Extract(ctx, msgs)
	if err == nil {
		t.Fatal("expected context error after cancellation")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation must be observed promptly")
	}
}
