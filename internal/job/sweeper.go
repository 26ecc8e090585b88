package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/maven/internal/store"
)

// Sweeper deletes expired sessions on an interval.
type Sweeper struct {
	store    store.SessionStore
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(st store.SessionStore, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: st, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. One sweep runs immediately.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention sweep", "deleted", deleted)
	}
}
