// Package worker runs the periodic removal of expired records.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/observability"
)

// Sweepable removes records that expired before now and reports how many it removed.
type Sweepable interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Target is a named store to sweep.
type Target struct {
	Name  string
	Store Sweepable
}

// Sweeper calls Sweep on every target at a fixed interval.
type Sweeper struct {
	targets  []Target
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewSweeper(interval time.Duration, log *zap.Logger, metrics *observability.Metrics, targets ...Target) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		targets:  targets,
		interval: interval,
		timeout:  30 * time.Second,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Run sweeps until ctx is cancelled. It does not sweep on start.
func (s *Sweeper) Run(ctx context.Context) {
	if len(s.targets) == 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass over every target. A failing target does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now()
	for _, t := range s.targets {
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		n, err := t.Store.Sweep(sctx, now)
		cancel()
		if err != nil {
			s.log.Error("sweep failed", zap.String("store", t.Name), zap.Error(err))
		}
		if n > 0 {
			s.metrics.Swept(t.Name, n)
			s.log.Debug("swept expired records", zap.String("store", t.Name), zap.Int("removed", n))
		}
	}
}
