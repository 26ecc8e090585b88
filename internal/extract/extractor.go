package extract

import (
	"context"
	"log/slog"

	"github.com/MikeSquared-Agency/maven/internal/chat"
)

// cancelStride bounds how many messages are scanned between cancellation
// checks.
const cancelStride = 64

// Extractor applies the detection policy over a message sequence. Given
// identical input it always emits identical candidates; recall is policy,
// determinism is a contract.
type Extractor struct {
	cfg       Config
	detectors []Detector
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.ProximityWindow <= 0 {
		cfg.ProximityWindow = 2
	}
	return &Extractor{cfg: cfg, detectors: Detectors(), logger: logger}
}

// Extract scans every non-system message through each detector in order.
func (e *Extractor) Extract(ctx context.Context, msgs []chat.Message) ([]Candidate, error) {
	var out []Candidate
	for i := range msgs {
		if i%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if msgs[i].IsSystem {
			continue
		}
		for _, detect := range e.detectors {
			out = append(out, detect(i, msgs, e.cfg)...)
		}
	}

	e.logger.Info("extraction complete", "messages", len(msgs), "candidates", len(out))
	return out, nil
}
