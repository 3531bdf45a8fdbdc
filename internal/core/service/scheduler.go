package service

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives reconciliation cycles forever. A cycle that fails (the
// database being unreachable at fetch time, typically) is logged and
// retried after the normal interval; only context cancellation stops the
// loop.
type Scheduler struct {
	reconciler *Reconciler
	storeSync  *StoreSyncCoordinator
	interval   time.Duration
	log        *slog.Logger
}

func NewScheduler(r *Reconciler, s *StoreSyncCoordinator, interval time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{reconciler: r, storeSync: s, interval: interval, log: log}
}

func (s *Scheduler) Run(ctx context.Context) {
	for {
		stats, err := s.reconciler.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("cycle failed", "error", err)
		} else {
			s.storeSync.SyncTouched(ctx, stats.TouchedShops)
			s.log.Info("cycle complete",
				"fetched", stats.Fetched,
				"updated", stats.Updated,
				"errors", stats.Errors,
				"shops", len(stats.TouchedShops),
				"duration", stats.Duration.Round(time.Millisecond).String(),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}
