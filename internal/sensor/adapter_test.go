package sensor

import (
	"context"
	"log"
	"testing"
	"time"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/stepstore"
)

func discardLogger() *log.Logger {
	return log.New(discardWriter{}, "", 0)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestAdapter(clock domain.Clock) (*Adapter, *stepstore.Store) {
	store := stepstore.New(stepstore.NewMemoryKV(), clock)
	return NewAdapter(nil, store, clock, discardLogger()), store
}

func TestFirstReadingCalibratesToZero(t *testing.T) {
	clock := domain.FixedClock{At: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)}
	adapter, _ := newTestAdapter(clock)
	ctx := context.Background()

	for _, absolute := range []int64{5000, 5000, 5003} {
		adapter.Observe(ctx, Reading{Steps: absolute})
	}

	if got := adapter.Today(); got != 3 {
		t.Fatalf("expected total applied delta 3, got %d", got)
	}
}

func TestNegativeDeltaClampedOnCounterReset(t *testing.T) {
	clock := domain.FixedClock{At: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)}
	adapter, _ := newTestAdapter(clock)
	ctx := context.Background()

	adapter.Observe(ctx, Reading{Steps: 5000}) // baseline
	adapter.Observe(ctx, Reading{Steps: 5100})
	adapter.Observe(ctx, Reading{Steps: 40}) // device reboot reset the counter
	adapter.Observe(ctx, Reading{Steps: 45})

	if got := adapter.Today(); got != 105 {
		t.Fatalf("expected 105 got %d", got)
	}
}

func TestDeltasArePersisted(t *testing.T) {
	clock := domain.FixedClock{At: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)}
	adapter, store := newTestAdapter(clock)
	ctx := context.Background()

	adapter.Observe(ctx, Reading{Steps: 100})
	adapter.Observe(ctx, Reading{Steps: 150})

	persisted, err := store.ReadToday(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if persisted != 50 {
		t.Fatalf("expected persisted 50 got %d", persisted)
	}
}

func TestBoostTaggingInsideWindow(t *testing.T) {
	inside := domain.FixedClock{At: time.Date(2024, time.March, 15, 6, 0, 0, 0, time.Local)}
	adapter, _ := newTestAdapter(inside)
	ctx := context.Background()

	adapter.Observe(ctx, Reading{Steps: 0})
	adapter.Observe(ctx, Reading{Steps: 200})

	if got := adapter.BoostPending(); got != 200 {
		t.Fatalf("expected 200 boosted got %d", got)
	}

	adapter.ConsumeBoost(200)
	if got := adapter.BoostPending(); got != 0 {
		t.Fatalf("expected accumulator reset got %d", got)
	}
}

func TestNoBoostTaggingOutsideWindow(t *testing.T) {
	outside := domain.FixedClock{At: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)}
	adapter, _ := newTestAdapter(outside)
	ctx := context.Background()

	adapter.Observe(ctx, Reading{Steps: 0})
	adapter.Observe(ctx, Reading{Steps: 200})

	if got := adapter.BoostPending(); got != 0 {
		t.Fatalf("expected 0 boosted got %d", got)
	}
	if got := adapter.Today(); got != 200 {
		t.Fatalf("expected 200 total got %d", got)
	}
}
