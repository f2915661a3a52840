package worker

import (
	"context"
	"time"

	"quiz-forge/internal/logger"

	"go.uber.org/zap"
)

const staleReason = "generation did not finish in time"

// StalePendingFailer is the slice of the quiz repository the reaper needs.
type StalePendingFailer interface {
	FailStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// Reaper periodically moves quizzes stuck in PENDING to ERROR.
type Reaper struct {
	repo       StalePendingFailer
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
}

func NewReaper(repo StalePendingFailer, staleAfter, interval time.Duration) *Reaper {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{repo: repo, staleAfter: staleAfter, interval: interval, now: time.Now}
}

// RunOnce fails every PENDING quiz created before now minus staleAfter.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.staleAfter)
	n, err := r.repo.FailStalePending(ctx, cutoff, staleReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Get().Info("Reaped stale pending quizzes", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Get().Error("Stale pending sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
