// Package sensor bridges an OS-level motion sensor stream into
// monotonically-arriving step deltas applied to the local step store.
package sensor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/stepstore"
)

var (
	// ErrUnavailable indicates the device has no usable step counter.
	ErrUnavailable = errors.New("step sensor unavailable")
	// ErrPermissionDenied indicates the user has not granted motion access.
	ErrPermissionDenied = errors.New("motion permission denied")
)

// Reading is one sensor callback payload. Steps is an absolute cumulative
// count, not a delta.
type Reading struct {
	Steps int64
}

// Source is the device motion sensor contract: availability check, one-time
// permission request, a count-over-past-interval query, and a live
// subscription delivering absolute counts at OS-determined intervals.
type Source interface {
	Available(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) error
	StepCountSince(ctx context.Context, since time.Time) (int64, error)
	Watch(ctx context.Context, fn func(Reading)) (cancel func(), err error)
}

// Adapter converts absolute sensor readings into deltas applied to the day's
// running total, persisting every increment and tagging deltas observed inside
// a boost window.
type Adapter struct {
	source Source
	store  *stepstore.Store
	clock  domain.Clock
	logger *log.Logger

	mu           sync.Mutex
	calibrated   bool
	lastAbsolute int64
	today        int64
	boostPending int64
}

// NewAdapter constructs an Adapter.
func NewAdapter(source Source, store *stepstore.Store, clock domain.Clock, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(log.Writer(), "[sensor] ", log.LstdFlags)
	}
	return &Adapter{source: source, store: store, clock: clock, logger: logger}
}

// Start checks availability and permission, seeds today's counter, and begins
// the live subscription. The returned cancel func tears the subscription down.
func (a *Adapter) Start(ctx context.Context) (func(), error) {
	available, err := a.source.Available(ctx)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrUnavailable
	}
	if err := a.source.RequestPermission(ctx); err != nil {
		return nil, err
	}

	if err := a.seedToday(ctx); err != nil {
		return nil, err
	}

	return a.source.Watch(ctx, func(r Reading) { a.Observe(ctx, r) })
}

// seedToday initialises the running total from the persisted count, raised to
// the sensor's count-since-midnight when the sensor knows about more steps
// than we persisted (steps taken while the agent was not running).
func (a *Adapter) seedToday(ctx context.Context) error {
	persisted, err := a.store.ReadToday(ctx)
	if err != nil {
		return err
	}

	now := a.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if sinceMidnight, err := a.source.StepCountSince(ctx, midnight); err == nil && sinceMidnight > persisted {
		persisted = sinceMidnight
	}

	a.mu.Lock()
	a.today = persisted
	a.mu.Unlock()
	return nil
}

// Observe applies one sensor reading. The first reading after subscribing only
// establishes the calibration baseline and contributes zero steps; later
// readings contribute max(current-last, 0) so a sensor counter reset never
// produces a negative delta.
func (a *Adapter) Observe(ctx context.Context, r Reading) {
	a.mu.Lock()

	if !a.calibrated {
		a.lastAbsolute = r.Steps
		a.calibrated = true
		a.mu.Unlock()
		return
	}

	delta := r.Steps - a.lastAbsolute
	a.lastAbsolute = r.Steps
	if delta <= 0 {
		a.mu.Unlock()
		return
	}

	a.today += delta
	if _, active := domain.ActiveBoostWindow(a.clock.Now()); active {
		a.boostPending += delta
	}
	today := a.today
	a.mu.Unlock()

	// Persistence failure is non-fatal: the next increment rewrites the
	// absolute count anyway.
	if err := a.store.WriteToday(ctx, today); err != nil {
		a.logger.Printf("persist failed: %v", err)
	}
}

// Today returns the in-memory running total for the current day.
func (a *Adapter) Today() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.today
}

// BoostPending returns the boosted steps accumulated since the last successful
// sync.
func (a *Adapter) BoostPending() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.boostPending
}

// ConsumeBoost subtracts n from the boosted accumulator after the sync that
// folded those steps has succeeded. Steps observed between the snapshot and
// the commit stay pending for the next cycle.
func (a *Adapter) ConsumeBoost(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.boostPending -= n
	if a.boostPending < 0 {
		a.boostPending = 0
	}
}
