// Package dedup merges extraction candidates into the final
// recommendation list.
package dedup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/maven/internal/extract"
	"github.com/MikeSquared-Agency/maven/internal/phone"
)

const cancelStride = 64

// Recommendation is one deduplicated service provider as returned to
// the client. Enriched fields stay empty unless AI enrichment ran.
type Recommendation struct {
	ProviderName     string   `json:"provider_name"`
	PhoneNumber      string   `json:"phone_number,omitempty"`
	Service          string   `json:"service,omitempty"`
	Contexts         []string `json:"contexts"`
	Recommender      string   `json:"recommender,omitempty"`
	Origin           string   `json:"origin"`
	MatchedContact   string   `json:"matched_contact,omitempty"`
	EnrichedCategory string   `json:"enriched_category,omitempty"`
	EnrichedNote     string   `json:"enriched_note,omitempty"`
}

// Deduplicator folds candidates that refer to the same provider into a
// single recommendation. The merge key is the canonical phone number
// when one exists, else the case-folded provider name.
type Deduplicator struct {
	region string
	logger *slog.Logger
}

func New(region string, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{region: region, logger: logger}
}

// Dedupe merges candidates in first-seen order. Candidates with neither
// a normalizable phone nor a provider name are dropped.
func (d *Deduplicator) Dedupe(ctx context.Context, cands []extract.Candidate) ([]Recommendation, error) {
	byKey := make(map[string]*Recommendation)
	var order []string
	dropped := 0

	for ci, c := range cands {
		if ci%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		canon := d.canonicalPhone(c)
		key := mergeKey(canon, c.ProviderName)
		if key == "" {
			d.logger.Warn("candidate has no dedup key", "context", c.Context)
			dropped++
			continue
		}

		rec, ok := byKey[key]
		if !ok {
			rec = &Recommendation{
				ProviderName:   c.ProviderName,
				PhoneNumber:    canon,
				Service:        c.Service,
				Recommender:    c.Recommender,
				Origin:         string(c.Origin),
				MatchedContact: c.ContactKey,
			}
			byKey[key] = rec
			order = append(order, key)
		}
		merge(rec, c, canon)
	}

	out := make([]Recommendation, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}

	d.logger.Info("dedup complete", "candidates", len(cands), "recommendations", len(out), "dropped", dropped)
	return out, nil
}

// canonicalPhone returns the first candidate number that normalizes;
// numbers that do not are discarded without failing the candidate.
func (d *Deduplicator) canonicalPhone(c extract.Candidate) string {
	for _, raw := range c.Phones {
		canon, err := phone.Normalize(raw, d.region)
		if err != nil {
			d.logger.Warn("number discarded", "raw", raw, "error", err)
			continue
		}
		return canon
	}
	return ""
}

func mergeKey(canon, name string) string {
	if canon != "" {
		return "p:" + canon
	}
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return "n:" + strings.ToLower(name)
}

// merge folds one candidate into an existing recommendation. Longest
// name and service win, first non-empty recommender and contact key
// stick, chat origin beats contact-only, contexts accumulate without
// exact duplicates.
func merge(rec *Recommendation, c extract.Candidate, canon string) {
	if len([]rune(c.ProviderName)) > len([]rune(rec.ProviderName)) {
		rec.ProviderName = c.ProviderName
	}
	if len([]rune(c.Service)) > len([]rune(rec.Service)) {
		rec.Service = c.Service
	}
	if rec.PhoneNumber == "" {
		rec.PhoneNumber = canon
	}
	if rec.Recommender == "" {
		rec.Recommender = c.Recommender
	}
	if rec.MatchedContact == "" {
		rec.MatchedContact = c.ContactKey
	}
	if c.Origin == extract.OriginChat {
		rec.Origin = string(extract.OriginChat)
	}
	if c.Context != "" {
		for _, existing := range rec.Contexts {
			if existing == c.Context {
				return
			}
		}
		rec.Contexts = append(rec.Contexts, c.Context)
	}
}
