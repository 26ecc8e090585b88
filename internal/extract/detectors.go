package extract

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/maven/internal/chat"
	"github.com/MikeSquared-Agency/maven/internal/phone"
	"github.com/MikeSquared-Agency/maven/internal/vcard"
)

// A Detector scans one message (with the full sequence available for
// proximity lookups) and emits zero-or-more candidates. Detectors run in
// a fixed order and their outputs are concatenated.
type Detector func(idx int, msgs []chat.Message, cfg Config) []Candidate

// Detectors returns the ordered detection policy.
func Detectors() []Detector {
	return []Detector{detectPhoneMentions, detectContactShares}
}

// Phone-shaped tokens, Israeli-leaning but tolerant of generic forms.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\+972[\s-]?\d{1,2}[\s-]?\d{3}[\s-]?\d{4}`),
	regexp.MustCompile(`0\d{1,2}[\s-]?\d{3}[\s-]?\d{4}`),
	regexp.MustCompile(`\d{3}[\s-]?\d{3}[\s-]?\d{4}`),
}

var urlRe = regexp.MustCompile(`(?i)https?://\S+|www\.\S+|[a-zA-Z0-9-]+\.(?:com|net|org|co\.il|gov|io|app)\S*`)

// Name cues scanned in the text immediately before a phone token.
var nameCuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`תתקשר ל([^.\n]{2,30}?)(?:\s*[.:,]|\s*$|\s+\d|\s*\+972)`),
	regexp.MustCompile(`יש את ([^.\n]{2,30}?)(?:\s*[.:,]|\s*$|\s+\d|\s*\+972)`),
	regexp.MustCompile(`([א-תA-Z][א-תa-zA-Z\s]{1,20}?)(?:\s*[.:,]|\s*$|\s+\d|\s*\+972)`),
}

// Words that match the loose name patterns but are never provider names.
var excludedNameWords = []string{"תתקשר", "יש", "מישהו", "חברים", "המלצה", "פנו"}

// Service-seeking question cues ("anyone know a good plumber?").
var askPatterns = []*regexp.Regexp{
	regexp.MustCompile(`מישהו מכיר ([^?]+)\?`),
	regexp.MustCompile(`מי מכיר ([^?]+)\?`),
	regexp.MustCompile(`יש ([^?]+)\?`),
	regexp.MustCompile(`מחפש ([^?\n]+)`),
	regexp.MustCompile(`צריך ([^?\n]+)`),
	regexp.MustCompile(`המלצה ל([^?\n]+)`),
}

// Declarative service cues in the recommending message itself.
var explicitServicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`מומלץ ל([^.\n]{3,30})`),
	regexp.MustCompile(`המלצה ל([^.\n]{3,30})`),
	regexp.MustCompile(`איש ([^.\n]{3,30})`),
}

var serviceCleanRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

var contactShareRe = regexp.MustCompile(`(?i)(\S[^\r\n]*?\.vcf)\s*\(file attached\)`)

// Punctuation glued to the front of a digit run marks a URL path segment
// or tracking parameter, not a phone. A space between the punctuation
// and the token clears it: "מכיר אינסטלטור? 050-1112222" is a phone.
var gluedPunctRe = regexp.MustCompile(`[./=?&#]\S*$`)

// detectPhoneMentions emits one candidate per phone-shaped token in a
// non-system message, with provider-name and service guesses from the
// surrounding text.
func detectPhoneMentions(idx int, msgs []chat.Message, cfg Config) []Candidate {
	msg := msgs[idx]
	phones := findPhones(msg.Text)
	if len(phones) == 0 {
		return nil
	}

	service := serviceFromContext(idx, msgs, cfg.ProximityWindow)
	recommender := senderPhone(msg.Sender, cfg.DefaultRegion)

	var out []Candidate
	for _, p := range phones {
		name := nameNearPhone(msg.Text, p)
		if n, svc, ok := vcard.SplitNameService(name); ok {
			name = n
			if service == "" {
				service = svc
			}
		}
		out = append(out, Candidate{
			ProviderName: name,
			Service:      service,
			Phones:       []string{p},
			Context:      msg.Text,
			MessageIndex: idx,
			Recommender:  recommender,
			Rule:         RulePhoneMention,
			Origin:       OriginChat,
		})
	}
	return out
}

// detectContactShares emits a candidate for every vCard attachment
// marker. Shares always yield a candidate, keyword cues or not.
func detectContactShares(idx int, msgs []chat.Message, cfg Config) []Candidate {
	msg := msgs[idx]
	matches := contactShareRe.FindAllStringSubmatch(msg.Text, -1)
	if len(matches) == 0 {
		return nil
	}

	service := serviceFromContext(idx, msgs, cfg.ProximityWindow)
	recommender := senderPhone(msg.Sender, cfg.DefaultRegion)

	var out []Candidate
	for _, m := range matches {
		out = append(out, Candidate{
			Service:      service,
			Context:      msg.Text,
			MessageIndex: idx,
			Recommender:  recommender,
			Rule:         RuleContactShare,
			Origin:       OriginChat,
			ShareFile:    strings.ToLower(strings.TrimSpace(m[1])),
		})
	}
	return out
}

// findPhones returns phone-shaped substrings in first-seen order,
// excluding tokens inside URLs or tracking parameters. Order is stable so
// extraction stays deterministic.
func findPhones(text string) []string {
	urlSpans := urlRe.FindAllStringIndex(text, -1)

	var out []string
	seen := make(map[string]bool)
	for _, re := range phonePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if inSpans(loc[0], loc[1], urlSpans) {
				continue
			}
			// Tokens glued to URL-ish punctuation are IDs, not phones.
			before := text[max(0, loc[0]-10):loc[0]]
			if gluedPunctRe.MatchString(before) {
				continue
			}
			after := text[loc[1]:min(len(text), loc[1]+3)]
			if len(after) > 0 && strings.ContainsAny(after[:1], "/?&") {
				continue
			}

			raw := text[loc[0]:loc[1]]
			digits := digitsOnly(raw)
			if len(digits) < 9 || len(digits) > 12 {
				continue
			}
			if seen[digits] {
				continue
			}
			seen[digits] = true
			out = append(out, raw)
		}
	}
	return out
}

// nameNearPhone guesses a provider name from the ~50 chars preceding the
// phone token.
func nameNearPhone(text, phoneTok string) string {
	pos := strings.Index(text, phoneTok)
	if pos < 0 {
		return ""
	}
	before := strings.TrimSpace(text[max(0, pos-50):pos])

	for _, re := range nameCuePatterns {
		m := re.FindStringSubmatch(before)
		if m == nil {
			continue
		}
		candidate := strings.Join(strings.Fields(m[1]), " ")
		if validName(candidate) {
			return candidate
		}
	}
	return ""
}

// validName rejects URL fragments, tracking parameters and cue words that
// leak through the loose name patterns.
func validName(name string) bool {
	if len([]rune(name)) < 2 {
		return false
	}
	lower := strings.ToLower(name)
	for _, w := range excludedNameWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	if strings.Contains(lower, "http") || strings.Contains(lower, "www.") {
		return false
	}
	if strings.ContainsAny(name, "=&?%#/") {
		return false
	}
	for _, prefix := range []string{"gad_", "utm_", "gclid", "fbid", "campaignid", "gbraid"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// serviceFromContext looks for a service cue in the current message and
// up to window preceding non-system messages, then for declarative cues
// in the current message only. The window is scanned oldest-first so the
// question that opened the exchange wins over later restatements.
func serviceFromContext(idx int, msgs []chat.Message, window int) string {
	var scan []int
	for i := idx; i >= 0 && len(scan) <= window; i-- {
		if msgs[i].IsSystem {
			continue
		}
		scan = append(scan, i)
	}
	for j := len(scan) - 1; j >= 0; j-- {
		for _, re := range askPatterns {
			if m := re.FindStringSubmatch(msgs[scan[j]].Text); m != nil {
				if svc := cleanServiceToken(m[1]); svc != "" {
					return svc
				}
			}
		}
	}

	for _, re := range explicitServicePatterns {
		if m := re.FindStringSubmatch(msgs[idx].Text); m != nil {
			if svc := cleanServiceToken(m[1]); svc != "" {
				return svc
			}
		}
	}
	return ""
}

func cleanServiceToken(s string) string {
	s = serviceCleanRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) < 3 {
		return ""
	}
	return s
}

// senderPhone normalizes a sender field that is itself a phone number;
// otherwise the sender (a display name) is returned as-is.
func senderPhone(sender, region string) string {
	if phones := findPhones(sender); len(phones) > 0 {
		if norm, err := phone.Normalize(phones[0], region); err == nil {
			return norm
		}
	}
	s := strings.TrimSpace(sender)
	if s != "" && (s[0] == '+' || (s[0] >= '0' && s[0] <= '9')) && len(digitsOnly(s)) >= 9 {
		if norm, err := phone.Normalize(s, region); err == nil {
			return norm
		}
	}
	return sender
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func inSpans(start, end int, spans [][]int) bool {
	for _, sp := range spans {
		if start < sp[1] && end > sp[0] {
			return true
		}
	}
	return false
}
