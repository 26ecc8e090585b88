// Package match reconciles extracted candidates against the parsed
// contact directory.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/maven/internal/extract"
	"github.com/MikeSquared-Agency/maven/internal/phone"
	"github.com/MikeSquared-Agency/maven/internal/vcard"
)

const cancelStride = 64

// Matcher links candidates to contact records by canonical phone number
// or share-file reference, and surfaces contacts nothing referenced as
// standalone contact-only candidates so uploaded contacts are never
// silently dropped.
type Matcher struct {
	region string
	logger *slog.Logger
}

func New(region string, logger *slog.Logger) *Matcher {
	return &Matcher{region: region, logger: logger}
}

// Key identifies a contact record for lookup-only back-references.
func Key(rec vcard.ContactRecord, ordinal int) string {
	return fmt.Sprintf("%s#%d", strings.ToLower(rec.SourceFile), ordinal)
}

// Match annotates candidates with contact keys and appends contact-only
// candidates for every contact no candidate referenced. Matching is
// many-candidates-to-one-contact; merging happens downstream.
func (m *Matcher) Match(ctx context.Context, cands []extract.Candidate, contacts []vcard.ContactRecord) ([]extract.Candidate, error) {
	byPhone := make(map[string]int) // canonical phone to contact ordinal
	byFile := make(map[string]int)  // lowercased source file to first contact ordinal
	keys := make([]string, len(contacts))

	for i, rec := range contacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		keys[i] = Key(rec, i)
		for _, raw := range rec.Phones {
			canon, err := phone.Normalize(raw, m.region)
			if err != nil {
				m.logger.Warn("contact number discarded", "contact", rec.DisplayName, "raw", raw, "error", err)
				continue
			}
			if _, taken := byPhone[canon]; !taken {
				byPhone[canon] = i
			}
		}
		file := strings.ToLower(rec.SourceFile)
		if _, taken := byFile[file]; !taken {
			byFile[file] = i
		}
	}

	referenced := make(map[int]bool)
	out := make([]extract.Candidate, 0, len(cands))
	matched := 0

	for ci, c := range cands {
		if ci%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		idx := -1
		if c.ShareFile != "" {
			if i, ok := byFile[c.ShareFile]; ok {
				idx = i
			}
		}
		if idx < 0 {
			for _, raw := range c.Phones {
				canon, err := phone.Normalize(raw, m.region)
				if err != nil {
					continue
				}
				if i, ok := byPhone[canon]; ok {
					idx = i
					break
				}
			}
		}

		if idx >= 0 {
			rec := contacts[idx]
			c.ContactKey = keys[idx]
			referenced[idx] = true
			matched++
			if c.ProviderName == "" {
				c.ProviderName = rec.DisplayName
			}
			if c.Service == "" {
				c.Service = rec.Service
			}
			// Share candidates carry no number of their own; adopt the
			// contact's so dedup can key on it.
			if len(c.Phones) == 0 {
				c.Phones = append(c.Phones, rec.Phones...)
			}
		} else if c.ShareFile != "" && len(c.Phones) == 0 && c.ProviderName == "" {
			// A share referencing a card that is not in the archive has
			// nothing to dedup on; drop it.
			m.logger.Warn("contact share references missing card", "file", c.ShareFile)
			continue
		}
		out = append(out, c)
	}

	contactOnly := 0
	for i, rec := range contacts {
		if referenced[i] {
			continue
		}
		out = append(out, extract.Candidate{
			ProviderName: rec.DisplayName,
			Service:      rec.Service,
			Phones:       append([]string(nil), rec.Phones...),
			MessageIndex: -1,
			Origin:       extract.OriginContactOnly,
			ContactKey:   keys[i],
		})
		contactOnly++
	}

	m.logger.Info("matching complete",
		"candidates", len(cands),
		"contacts", len(contacts),
		"matched", matched,
		"contact_only", contactOnly,
	)
	return out, nil
}
