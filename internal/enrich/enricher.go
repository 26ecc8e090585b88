// Package enrich adds AI-generated categories and notes to
// recommendations. Enrichment is strictly additive and best-effort; a
// failed call leaves the input untouched.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/maven/internal/anthropic"
	"github.com/MikeSquared-Agency/maven/internal/dedup"
)

const (
	defaultBatchSize = 20
	maxTokens        = 4096
)

type Enricher struct {
	llm       *anthropic.Client
	batchSize int
	logger    *slog.Logger
}

func New(llm *anthropic.Client, logger *slog.Logger) *Enricher {
	return &Enricher{llm: llm, batchSize: defaultBatchSize, logger: logger}
}

type enrichedItem struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Note     string `json:"note"`
}

type llmResponse struct {
	Items []enrichedItem `json:"items"`
}

// Enrich fills EnrichedCategory and EnrichedNote on a copy of recs. The
// bool reports whether enrichment was applied; on any failure the
// original recommendations come back unchanged with false.
func (e *Enricher) Enrich(ctx context.Context, recs []dedup.Recommendation) ([]dedup.Recommendation, bool) {
	if len(recs) == 0 {
		return recs, false
	}

	out := make([]dedup.Recommendation, len(recs))
	copy(out, recs)

	for start := 0; start < len(out); start += e.batchSize {
		end := min(start+e.batchSize, len(out))
		if err := e.enrichBatch(ctx, out, start, end); err != nil {
			e.logger.Warn("enrichment skipped", "error", err, "batch_start", start)
			return recs, false
		}
	}

	e.logger.Info("enrichment complete", "recommendations", len(out))
	return out, true
}

func (e *Enricher) enrichBatch(ctx context.Context, recs []dedup.Recommendation, start, end int) error {
	prompt := fmt.Sprintf(enrichmentUserPrompt, describeBatch(recs[start:end]))

	raw, err := e.llm.Complete(ctx, systemPrompt, []anthropic.Message{
		{Role: "user", Content: prompt},
	}, maxTokens)
	if err != nil {
		return fmt.Errorf("llm enrichment: %w", err)
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return fmt.Errorf("parse enrichment: %w", err)
	}

	for _, item := range resp.Items {
		i := start + item.Index
		if i < start || i >= end {
			continue
		}
		recs[i].EnrichedCategory = strings.TrimSpace(item.Category)
		recs[i].EnrichedNote = strings.TrimSpace(item.Note)
	}
	return nil
}

func describeBatch(recs []dedup.Recommendation) string {
	var b strings.Builder
	for i, r := range recs {
		fmt.Fprintf(&b, "%d. name: %s", i, r.ProviderName)
		if r.Service != "" {
			fmt.Fprintf(&b, " | service: %s", r.Service)
		}
		for _, c := range r.Contexts {
			fmt.Fprintf(&b, "\n   context: %s", c)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// extractJSON tolerates models that wrap the JSON in prose or a code
// fence.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
