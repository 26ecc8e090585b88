package match

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/MikeSquared-Agency/maven/internal/extract"
	"github.com/MikeSquared-Agency/maven/internal/vcard"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMatch_ByPhone(t *testing.T) {
	cands := []extract.Candidate{
		{Phones: []string{"050-1112222"}, Context: "text", MessageIndex: 0, Origin: extract.OriginChat},
	}
	contacts := []vcard.ContactRecord{
		{DisplayName: "Dana", Phones: []string{"+972501112222"}, SourceFile: "Dana.vcf"},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), cands, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].ContactKey != "dana.vcf#0" {
		t.Errorf("expected contact key set, got %q", out[0].ContactKey)
	}
	if out[0].ProviderName != "Dana" {
		t.Errorf("expected contact name adopted, got %q", out[0].ProviderName)
	}
}

func TestMatch_ByShareFile(t *testing.T) {
	cands := []extract.Candidate{
		{ShareFile: "dana.vcf", Context: "Dana.vcf (file attached)", MessageIndex: 3, Origin: extract.OriginChat},
	}
	contacts := []vcard.ContactRecord{
		{DisplayName: "Dana", Phones: []string{"050-1112222"}, SourceFile: "Dana.vcf"},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), cands, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].ContactKey == "" {
		t.Error("share candidate should link to the contact")
	}
	if len(out[0].Phones) != 1 {
		t.Errorf("share candidate should adopt the contact's numbers, got %v", out[0].Phones)
	}
}

func TestMatch_UnmentionedContactsSurfaced(t *testing.T) {
	contacts := []vcard.ContactRecord{
		{DisplayName: "Mentioned", Phones: []string{"050-1112222"}, SourceFile: "a.vcf"},
		{DisplayName: "Forgotten", Phones: []string{"052-3334444"}, SourceFile: "b.vcf"},
	}
	cands := []extract.Candidate{
		{Phones: []string{"0501112222"}, Context: "ctx", MessageIndex: 0, Origin: extract.OriginChat},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), cands, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected matched + contact-only, got %d", len(out))
	}
	co := out[1]
	if co.Origin != extract.OriginContactOnly {
		t.Errorf("expected contact-only origin, got %q", co.Origin)
	}
	if co.ProviderName != "Forgotten" {
		t.Errorf("unexpected contact-only name %q", co.ProviderName)
	}
	if co.Context != "" {
		t.Errorf("contact-only entries carry no context, got %q", co.Context)
	}
	if co.MessageIndex != -1 {
		t.Errorf("expected message index -1, got %d", co.MessageIndex)
	}
}

func TestMatch_NoLoss(t *testing.T) {
	// Every contact with a phone number must appear: matched or contact-only.
	contacts := []vcard.ContactRecord{
		{DisplayName: "A", Phones: []string{"050-1112222"}, SourceFile: "a.vcf"},
		{DisplayName: "B", Phones: []string{"052-3334444"}, SourceFile: "b.vcf"},
		{DisplayName: "C", Phones: []string{"053-5556666"}, SourceFile: "c.vcf"},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), nil, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected all contacts surfaced, got %d", len(out))
	}
	seen := map[string]bool{}
	for _, c := range out {
		seen[c.ProviderName] = true
	}
	for _, name := range []string{"A", "B", "C"} {
		if !seen[name] {
			t.Errorf("contact %s dropped", name)
		}
	}
}

func TestMatch_ZeroPhoneContactStillSurfaced(t *testing.T) {
	contacts := []vcard.ContactRecord{
		{DisplayName: "NoPhone", SourceFile: "n.vcf"},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), nil, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].ProviderName != "NoPhone" {
		t.Fatalf("zero-phone contact should surface as contact-only, got %+v", out)
	}
}

func TestMatch_ShareOfMissingCardDropped(t *testing.T) {
	cands := []extract.Candidate{
		{ShareFile: "ghost.vcf", Context: "ghost.vcf (file attached)", MessageIndex: 0, Origin: extract.OriginChat},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), cands, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("share of missing card has nothing to key on, got %+v", out)
	}
}

func TestMatch_ManyCandidatesOneContact(t *testing.T) {
	cands := []extract.Candidate{
		{Phones: []string{"050-1112222"}, Context: "first mention", MessageIndex: 0, Origin: extract.OriginChat},
		{Phones: []string{"+972501112222"}, Context: "second mention", MessageIndex: 5, Origin: extract.OriginChat},
	}
	contacts := []vcard.ContactRecord{
		{DisplayName: "Dana", Phones: []string{"0501112222"}, SourceFile: "dana.vcf"},
	}

	m := New("IL", testLogger())
	out, err := m.Match(context.Background(), cands, contacts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both candidates kept, got %d", len(out))
	}
	for i, c := range out {
		if c.ContactKey != "dana.vcf#0" {
			t.Errorf("candidate %d missing contact key: %q", i, c.ContactKey)
		}
	}
}
