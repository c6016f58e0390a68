package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bxdofficial/Nawi/internal/services/leaderboard"
)

// RecomputeRunner rebuilds every leaderboard on a fixed interval so
// standings stay fresh without recomputing on each read.
type RecomputeRunner struct {
	boards   *leaderboard.Service
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
}

func NewRecomputeRunner(boards *leaderboard.Service, interval time.Duration, logger *slog.Logger) *RecomputeRunner {
	return &RecomputeRunner{
		boards:   boards,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (r *RecomputeRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.run(ctx)
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			}
		}
	}()
}

func (r *RecomputeRunner) Stop() {
	close(r.stopCh)
}

func (r *RecomputeRunner) run(ctx context.Context) {
	started := time.Now()
	r.boards.RecomputeAll(ctx, started)
	r.logger.Debug("leaderboard refresh pass finished", "elapsed", time.Since(started))
}
