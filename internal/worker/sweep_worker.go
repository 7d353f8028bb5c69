package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/service"
)

// Sweeper runs one breach sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*service.SweepResult, error)
}

// Locker keeps replicas from sweeping at the same time.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// SweepWorker runs the breach sweep on a fixed interval.
type SweepWorker struct {
	sweeper  Sweeper
	lock     Locker
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweepWorker builds a worker. lock may be nil for a single replica.
func NewSweepWorker(sweeper Sweeper, lock Locker, interval time.Duration, logger *zap.Logger) *SweepWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{
		sweeper:  sweeper,
		lock:     lock,
		interval: interval,
		now:      time.Now,
		logger:   logger.Named("sweep_worker"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sweep worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce reports whether a sweep actually ran.
func (w *SweepWorker) runOnce(ctx context.Context) bool {
	if w.lock != nil {
		ok, err := w.lock.TryLock(ctx)
		if err != nil {
			w.logger.Warn("sweep lock unavailable", zap.Error(err))
			return false
		}
		if !ok {
			w.logger.Debug("sweep skipped; lock held elsewhere")
			return false
		}
		defer func() {
			if err := w.lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("sweep unlock failed", zap.Error(err))
			}
		}()
	}

	if _, err := w.sweeper.Sweep(ctx, w.now()); err != nil {
		w.logger.Error("sweep failed", zap.Error(err))
	}
	return true
}
