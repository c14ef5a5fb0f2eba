// Package reconcile moves step data from "local, unconfirmed" to "remote,
// durable" with exactly-once-effective semantics under retry. It is the single
// writer of daily records and the lifetime counters.
package reconcile

import (
	"context"
	"log"
	"sync/atomic"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
	"example.com/walkwins/internal/stepstore"
)

// BoostAccumulator exposes the boosted-steps-since-last-sync counter the
// sensor adapter maintains.
type BoostAccumulator interface {
	BoostPending() int64
	ConsumeBoost(n int64)
}

// Engine reconciles the local step store against the remote ledger.
type Engine struct {
	userID string
	local  *stepstore.Store
	store  remote.LedgerStore
	boost  BoostAccumulator
	clock  domain.Clock
	logger *log.Logger

	syncing atomic.Bool
}

// New constructs an Engine. boost may be nil when no sensor adapter is
// attached (finalization-only use).
func New(userID string, local *stepstore.Store, store remote.LedgerStore, boost BoostAccumulator, clock domain.Clock, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[sync] ", log.LstdFlags)
	}
	return &Engine{
		userID: userID,
		local:  local,
		store:  store,
		boost:  boost,
		clock:  clock,
		logger: logger,
	}
}

// SyncToRemote reconciles today's local count into the remote ledger. A call
// arriving while another sync is in flight is dropped, not queued. The applied
// lifetime increment is always max(local - remote, 0), never the raw local
// count, so a retry after partial success cannot double count.
func (e *Engine) SyncToRemote(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		recordSyncDropped()
		return nil
	}
	defer e.syncing.Store(false)

	today := domain.DateKey(e.clock.Now())
	return e.syncDay(ctx, today)
}

// syncDay runs the delta reconciliation for one date key. Caller holds the
// in-flight guard.
func (e *Engine) syncDay(ctx context.Context, date string) error {
	localCount, err := e.local.ReadDay(ctx, date)
	if err != nil {
		recordSyncResult(resultError)
		return err
	}
	if localCount == 0 {
		recordSyncResult(resultNoop)
		return nil
	}

	rec, err := e.store.DailyRecord(ctx, e.userID, date)
	if err != nil {
		recordSyncResult(resultError)
		return err
	}
	remoteCount := remote.OrZero(rec, date).Steps

	increment := localCount - remoteCount
	if increment <= 0 {
		// Remote is already caught up or ahead (another device may have
		// synced higher); never apply a negative or zero increment.
		recordSyncResult(resultNoop)
		return nil
	}

	if err := e.store.CommitSteps(ctx, remote.StepCommit{
		UserID:    e.userID,
		Date:      date,
		Steps:     localCount,
		Increment: increment,
	}); err != nil {
		recordSyncResult(resultError)
		return err
	}
	recordSyncCommitted(increment)

	// Boost folding happens only after the base commit succeeds; a failure
	// here leaves the accumulator intact for the next attempt.
	if e.boost != nil {
		if pending := e.boost.BoostPending(); pending > 0 {
			if err := e.store.FoldBoostSteps(ctx, e.userID, date, pending); err != nil {
				recordSyncResult(resultError)
				return err
			}
			e.boost.ConsumeBoost(pending)
			recordBoostFolded(pending)
		}
	}

	recordSyncResult(resultCommitted)
	return nil
}

// FinalizePreviousDay commits yesterday's unsynced remainder on cold start.
// Only the immediately preceding day is ever finalized; a multi-day gap just
// advances the watermark without backfill. The watermark is written last so a
// failed commit is retried on the next cold start.
func (e *Engine) FinalizePreviousDay(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	now := e.clock.Now()
	today := domain.DateKey(now)

	lastSync, err := e.local.ReadLastSyncDate(ctx)
	if err != nil {
		return err
	}
	if lastSync == today {
		return nil
	}

	yesterday := domain.PreviousDateKey(now)
	if lastSync == yesterday {
		if err := e.finalizeDay(ctx, yesterday); err != nil {
			return err
		}
	}

	return e.local.WriteLastSyncDate(ctx, today)
}

func (e *Engine) finalizeDay(ctx context.Context, date string) error {
	localCount, err := e.local.ReadDay(ctx, date)
	if err != nil {
		return err
	}
	if localCount == 0 {
		return nil
	}

	rec, err := e.store.DailyRecord(ctx, e.userID, date)
	if err != nil {
		return err
	}
	remoteCount := remote.OrZero(rec, date).Steps

	increment := localCount - remoteCount
	if increment <= 0 {
		return nil
	}

	if err := e.store.CommitSteps(ctx, remote.StepCommit{
		UserID:    e.userID,
		Date:      date,
		Steps:     localCount,
		Increment: increment,
		Finalized: true,
	}); err != nil {
		return err
	}
	recordSyncCommitted(increment)
	recordDayFinalized()
	return nil
}
