// Package phone canonicalizes raw phone strings into E.164 form so that
// differently-formatted mentions of the same number share one dedup key.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ErrDiscarded marks a number that failed the sanity checks. Discards are
// soft: the caller logs and moves on, they never fail extraction.
var ErrDiscarded = errors.New("discarded number")

const minDigits = 7

// Normalize parses raw into canonical E.164 ("+972501112222") resolving
// bare local-format numbers against the default region (ISO 3166-1
// alpha-2, e.g. "IL").
func Normalize(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if countDigits(raw) < minDigits {
		return "", fmt.Errorf("%w: %q has fewer than %d digits", ErrDiscarded, raw, minDigits)
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrDiscarded, raw, err)
	}
	// Possible-number check is length based and deterministic; the
	// stricter validity check rejects too many real-world numbers.
	if !phonenumbers.IsPossibleNumber(num) {
		return "", fmt.Errorf("%w: %q is not a possible number", ErrDiscarded, raw)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
