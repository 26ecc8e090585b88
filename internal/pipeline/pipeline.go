// Package pipeline runs the full extraction flow for one uploaded
// archive: load, parse, extract, match, dedup, enrich.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/maven/internal/archive"
	"github.com/MikeSquared-Agency/maven/internal/chat"
	"github.com/MikeSquared-Agency/maven/internal/dedup"
	"github.com/MikeSquared-Agency/maven/internal/enrich"
	"github.com/MikeSquared-Agency/maven/internal/extract"
	"github.com/MikeSquared-Agency/maven/internal/match"
	"github.com/MikeSquared-Agency/maven/internal/vcard"
)

type Config struct {
	DefaultRegion     string
	ProximityWindow   int
	MaxArchiveBytes   int64
	MaxInflationRatio int64
}

// Output is what a successful run produces. Enriched reports whether
// the AI pass applied; recommendations are complete either way.
type Output struct {
	Recommendations []dedup.Recommendation
	Enriched        bool
}

type Pipeline struct {
	cfg      Config
	enricher *enrich.Enricher
	logger   *slog.Logger
}

// New builds a pipeline. enricher may be nil when no API key is
// configured; runs then skip the enrichment stage.
func New(cfg Config, enricher *enrich.Enricher, logger *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, enricher: enricher, logger: logger}
}

// Run processes raw archive bytes into deduplicated recommendations.
// Identical input bytes always produce identical recommendations.
func (p *Pipeline) Run(ctx context.Context, data []byte) (*Output, error) {
	arc, err := archive.Load(data, archive.Options{
		MaxBytes:          p.cfg.MaxArchiveBytes,
		MaxInflationRatio: p.cfg.MaxInflationRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}

	msgs, err := chat.Parse(ctx, bytes.NewReader(arc.Transcript))
	if err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", arc.TranscriptName, err)
	}

	var contacts []vcard.ContactRecord
	for _, blob := range arc.Contacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, skipped := vcard.Parse(blob.Name, blob.Data)
		if skipped > 0 {
			p.logger.Warn("skipped malformed contact cards", "file", blob.Name, "skipped", skipped)
		}
		contacts = append(contacts, recs...)
	}

	extractor := extract.New(extract.Config{
		DefaultRegion:   p.cfg.DefaultRegion,
		ProximityWindow: p.cfg.ProximityWindow,
	}, p.logger)
	cands, err := extractor.Extract(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("extract candidates: %w", err)
	}

	cands, err = match.New(p.cfg.DefaultRegion, p.logger).Match(ctx, cands, contacts)
	if err != nil {
		return nil, fmt.Errorf("match contacts: %w", err)
	}

	recs, err := dedup.New(p.cfg.DefaultRegion, p.logger).Dedupe(ctx, cands)
	if err != nil {
		return nil, fmt.Errorf("dedup candidates: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Output{Recommendations: recs}
	if p.enricher != nil {
		out.Recommendations, out.Enriched = p.enricher.Enrich(ctx, recs)
	}

	p.logger.Info("pipeline complete",
		"messages", len(msgs),
		"contacts", len(contacts),
		"recommendations", len(out.Recommendations),
		"enriched", out.Enriched,
	)
	return out, nil
}
