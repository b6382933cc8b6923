package maintenance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	clockport "github.com/ironhall-fitness/gym-access-api/internal/ports/out/clock"
	"github.com/ironhall-fitness/gym-access-api/internal/ports/out/idempotency"
)

// Pruner periodically deletes idempotency records older than a retention period.
// A retention of 0 disables pruning.
type Pruner struct {
	store     idempotency.Store
	clk       clockport.Clock
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	// RetentionHours is how long replayable responses are kept. 0 keeps everything.
	RetentionHours int
	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewPruner creates a pruner but does not start it.
func NewPruner(store idempotency.Store, clk clockport.Clock, cfg PrunerConfig, logger *zap.Logger) *Pruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pruner{
		store:     store,
		clk:       clk,
		retention: time.Duration(cfg.RetentionHours) * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is cancelled
// or Stop is called. Only the first call has an effect.
func (p *Pruner) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		if p.retention <= 0 {
			p.logger.Info("idempotency pruner disabled", zap.Duration("retention", p.retention))
			close(p.done)
			return
		}
		ctx, p.cancel = context.WithCancel(ctx)
		go p.loop(ctx)
		p.logger.Info("idempotency pruner started",
			zap.Duration("retention", p.retention),
			zap.Duration("interval", p.interval))
	})
}

// Stop signals the loop to exit and waits for it. It is safe to call more than
// once, and before Start.
func (p *Pruner) Stop() {
	p.startOnce.Do(func() { close(p.done) })
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Pruner) loop(ctx context.Context) {
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

// PruneOnce deletes records older than the retention and returns how many were removed.
func (p *Pruner) PruneOnce(ctx context.Context) int64 {
	cutoff := p.clk.Now().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("idempotency prune failed", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		p.logger.Info("idempotency records pruned", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted
}
