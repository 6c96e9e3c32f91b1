package file

import (
	"context"
	"time"

	"github.com/abduss/shopdrop/internal/metrics"
	"go.uber.org/zap"
)

// Sweeper periodically reclaims expired files.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *zap.Logger
}

// NewSweeper builds a sweeper that runs every interval.
func NewSweeper(store *Store, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
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
	removed, err := s.store.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.SweepFailures.Inc()
		s.log.Error("sweep expired files", zap.Int("removed", removed), zap.Error(err))
		return
	}
	if removed > 0 {
		s.log.Info("swept expired files", zap.Int("removed", removed))
	}
}
