package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/rollcall/internal/rollcall/store"
)

// StatusPruner periodically deletes camera heartbeat rows older than a
// configurable retention period. It runs as a background goroutine and is
// stopped via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type StatusPruner struct {
	store     store.CameraStatusStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// PrunerConfig holds the parameters for NewStatusPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of heartbeat history to keep.
	// 0 means keep everything (the pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewStatusPruner creates a pruner but does not start it.
func NewStatusPruner(s store.CameraStatusStore, cfg PrunerConfig, logger *slog.Logger) *StatusPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	return &StatusPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    defaultLogger(logger).With("component", "StatusPruner"),
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the configured interval
// until ctx is cancelled or Stop is called.
func (p *StatusPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.InfoContext(ctx, "status pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.InfoContext(ctx, "status pruner started",
		"retention_days", int(p.retention.Hours()/24), "interval_hours", int(p.interval.Hours()))
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *StatusPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *StatusPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *StatusPruner) prune(ctx context.Context) {
	cutoff := p.now().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.ErrorContext(ctx, "status prune failed", "error", err)
		return
	}
	if deleted > 0 {
		p.logger.InfoContext(ctx, "status prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
