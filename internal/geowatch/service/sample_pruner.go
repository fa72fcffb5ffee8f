package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// SamplePruner periodically deletes location samples older than a
// configurable retention period.  It runs as a background goroutine and
// is stopped via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type SamplePruner struct {
	store     store.SampleStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *zap.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// PrunerConfig holds the parameters for NewSamplePruner.
type PrunerConfig struct {
	// RetentionDays is how many days of samples to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs.  Defaults to 6.
	IntervalHours int

	// Interval overrides IntervalHours when set.
	Interval time.Duration

	Now func() time.Time
}

// NewSamplePruner creates a pruner but does not start it.
func NewSamplePruner(s store.SampleStore, cfg PrunerConfig, logger *zap.Logger) *SamplePruner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Duration(cfg.IntervalHours) * time.Hour
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SamplePruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       cfg.Now,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the interval until ctx is
// cancelled or Stop is called.  Only the first call has any effect.
func (p *SamplePruner) Start(ctx context.Context) {
	p.once.Do(func() {
		if p.retention <= 0 {
			p.logger.Info("sample pruner disabled (retention=0)")
			close(p.done)
			return
		}

		ctx, p.cancel = context.WithCancel(ctx)
		go p.loop(ctx)

		p.logger.Info("sample pruner started",
			zap.Duration("retention", p.retention),
			zap.Duration("interval", p.interval))
	})
}

// Stop signals the pruner to exit and waits for it.  Safe to call more
// than once, and before Start.
func (p *SamplePruner) Stop() {
	p.once.Do(func() { close(p.done) })
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *SamplePruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce deletes samples older than the retention period and returns
// how many went.
func (p *SamplePruner) PruneOnce(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Warn("sample prune failed", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		p.logger.Info("sample prune",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted
}
