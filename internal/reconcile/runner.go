package reconcile

import (
	"context"
	"log"
	"time"
)

// Runner drives the engine from its periodic and event triggers: a ticker
// while running, external kicks (the agent's equivalent of the app moving to
// background), and a final flush at teardown unless the teardown is a logout.
type Runner struct {
	engine   *Engine
	interval time.Duration
	logger   *log.Logger
	kick     chan struct{}
}

// NewRunner constructs a Runner with the given sync interval.
func NewRunner(engine *Engine, interval time.Duration, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(log.Writer(), "[sync] ", log.LstdFlags)
	}
	return &Runner{
		engine:   engine,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an out-of-band sync. Kicks arriving while one is pending
// coalesce.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, syncing on every tick and kick. Failures
// are logged and swallowed; the next trigger retries with the same delta-based
// logic.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		}

		if err := r.engine.SyncToRemote(ctx); err != nil {
			r.logger.Printf("sync failed: %v", err)
		}
	}
}

// Flush performs the teardown sync. Skipped when loggingOut, to avoid writing
// against a session that is about to be invalidated.
func (r *Runner) Flush(ctx context.Context, loggingOut bool) {
	if loggingOut {
		return
	}
	if err := r.engine.SyncToRemote(ctx); err != nil {
		r.logger.Printf("final sync failed: %v", err)
	}
}
