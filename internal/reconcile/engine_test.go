package reconcile

import (
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
	"example.com/walkwins/internal/stepstore"
)

const testUser = "user-1"

func quietLogger() *log.Logger {
	return log.New(testDiscard{}, "", 0)
}

type testDiscard struct{}

func (testDiscard) Write(p []byte) (int, error) { return len(p), nil }

type fixture struct {
	engine *Engine
	kv     *stepstore.MemoryKV
	local  *stepstore.Store
	store  *remote.MemoryStore
	boost  *stubBoost
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	clock := domain.FixedClock{At: now}
	kv := stepstore.NewMemoryKV()
	local := stepstore.New(kv, clock)
	store := remote.NewMemoryStore()
	store.PutAccount(domain.UserAccount{UserID: testUser, Username: "walker"})
	boost := &stubBoost{}

	return &fixture{
		engine: New(testUser, local, store, boost, clock, quietLogger()),
		kv:     kv,
		local:  local,
		store:  store,
		boost:  boost,
	}
}

type stubBoost struct {
	mu      sync.Mutex
	pending int64
}

func (b *stubBoost) BoostPending() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

func (b *stubBoost) ConsumeBoost(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending -= n
	if b.pending < 0 {
		b.pending = 0
	}
}

func lifetime(t *testing.T, store *remote.MemoryStore) int64 {
	t.Helper()
	account, err := store.Account(context.Background(), testUser)
	require.NoError(t, err)
	return account.LifetimeTotalSteps
}

var noon = time.Date(2024, time.January, 2, 12, 0, 0, 0, time.Local)

func TestSyncAppliesDelta(t *testing.T) {
	f := newFixture(t, noon)
	ctx := context.Background()

	require.NoError(t, f.local.WriteToday(ctx, 1200))
	require.NoError(t, f.store.CommitSteps(ctx, remote.StepCommit{
		UserID: testUser, Date: "2024-01-02", Steps: 800, Increment: 800,
	}))

	require.NoError(t, f.engine.SyncToRemote(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.EqualValues(t, 1200, rec.Steps)
	require.EqualValues(t, 1200, lifetime(t, f.store))
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newFixture(t, noon)
	ctx := context.Background()

	require.NoError(t, f.local.WriteToday(ctx, 500))

	require.NoError(t, f.engine.SyncToRemote(ctx))
	require.NoError(t, f.engine.SyncToRemote(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.EqualValues(t, 500, rec.Steps)
	require.EqualValues(t, 500, lifetime(t, f.store))
}

func TestSyncNeverAppliesNegativeIncrement(t *testing.T) {
	f := newFixture(t, noon)
	ctx := context.Background()

	// Another device already synced higher.
	require.NoError(t, f.local.WriteToday(ctx, 300))
	require.NoError(t, f.store.CommitSteps(ctx, remote.StepCommit{
		UserID: testUser, Date: "2024-01-02", Steps: 500, Increment: 500,
	}))

	require.NoError(t, f.engine.SyncToRemote(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.EqualValues(t, 500, rec.Steps)
	require.EqualValues(t, 500, lifetime(t, f.store))
}

func TestSyncNoopWhenLocalIsZero(t *testing.T) {
	f := newFixture(t, noon)
	ctx := context.Background()

	require.NoError(t, f.engine.SyncToRemote(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.Nil(t, rec)
	require.EqualValues(t, 0, lifetime(t, f.store))
}

func TestSyncFoldsBoostAfterBaseCommit(t *testing.T) {
	f := newFixture(t, noon)
	ctx := context.Background()

	require.NoError(t, f.local.WriteToday(ctx, 1000))
	f.boost.pending = 250

	require.NoError(t, f.engine.SyncToRemote(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.EqualValues(t, 1000, rec.Steps)
	require.EqualValues(t, 250, rec.BoostSteps)
	require.EqualValues(t, 0, f.boost.BoostPending())

	account, err := f.store.Account(ctx, testUser)
	require.NoError(t, err)
	require.EqualValues(t, 250, account.BoostSteps)
}

// failingLedger fails boost folding so the accumulator must survive for the
// next attempt.
type failingLedger struct {
	remote.LedgerStore
	failFold bool
}

func (f *failingLedger) FoldBoostSteps(ctx context.Context, userID, date string, delta int64) error {
	if f.failFold {
		return errors.New("store unavailable")
	}
	return f.LedgerStore.FoldBoostSteps(ctx, userID, date, delta)
}

func TestBoostAccumulatorSurvivesFoldFailure(t *testing.T) {
	clock := domain.FixedClock{At: noon}
	local := stepstore.New(stepstore.NewMemoryKV(), clock)
	mem := remote.NewMemoryStore()
	mem.PutAccount(domain.UserAccount{UserID: testUser})
	ledger := &failingLedger{LedgerStore: mem, failFold: true}
	boost := &stubBoost{pending: 100}
	engine := New(testUser, local, ledger, boost, clock, quietLogger())
	ctx := context.Background()

	require.NoError(t, local.WriteToday(ctx, 400))
	require.Error(t, engine.SyncToRemote(ctx))

	// Base commit landed, boost is still pending.
	require.EqualValues(t, 100, boost.BoostPending())

	ledger.failFold = false
	require.NoError(t, engine.SyncToRemote(ctx))
	// Increment was already applied, so retry is a noop for steps but the
	// boost fold is still owed.
	rec, err := mem.DailyRecord(ctx, testUser, "2024-01-02")
	require.NoError(t, err)
	require.EqualValues(t, 400, rec.Steps)
	require.EqualValues(t, 100, boost.BoostPending())
}

func TestConcurrentSyncIsDropped(t *testing.T) {
	clock := domain.FixedClock{At: noon}
	local := stepstore.New(stepstore.NewMemoryKV(), clock)
	mem := remote.NewMemoryStore()
	mem.PutAccount(domain.UserAccount{UserID: testUser})

	release := make(chan struct{})
	entered := make(chan struct{})
	ledger := &blockingLedger{LedgerStore: mem, entered: entered, release: release}
	engine := New(testUser, local, ledger, nil, clock, quietLogger())
	ctx := context.Background()

	require.NoError(t, local.WriteToday(ctx, 700))

	done := make(chan error, 1)
	go func() { done <- engine.SyncToRemote(ctx) }()
	<-entered

	// Second attempt while the first is in flight is a silent no-op.
	require.NoError(t, engine.SyncToRemote(ctx))
	close(release)
	require.NoError(t, <-done)

	require.EqualValues(t, 700, lifetime(t, mem))
}

type blockingLedger struct {
	remote.LedgerStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingLedger) DailyRecord(ctx context.Context, userID, date string) (*domain.DailyStepRecord, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.LedgerStore.DailyRecord(ctx, userID, date)
}

func TestFinalizePreviousDayCommitsRemainder(t *testing.T) {
	jan2 := time.Date(2024, time.January, 2, 7, 30, 0, 0, time.Local)
	f := newFixture(t, jan2)
	ctx := context.Background()

	// Yesterday closed with 8000 local steps but only 7000 synced.
	jan1Clock := domain.FixedClock{At: time.Date(2024, time.January, 1, 23, 0, 0, 0, time.Local)}
	jan1Store := stepstore.New(f.kv, jan1Clock)
	require.NoError(t, jan1Store.WriteToday(ctx, 8000))
	require.NoError(t, f.local.WriteLastSyncDate(ctx, "2024-01-01"))
	require.NoError(t, f.store.CommitSteps(ctx, remote.StepCommit{
		UserID: testUser, Date: "2024-01-01", Steps: 7000, Increment: 7000,
	}))

	require.NoError(t, f.engine.FinalizePreviousDay(ctx))

	rec, err := f.store.DailyRecord(ctx, testUser, "2024-01-01")
	require.NoError(t, err)
	require.EqualValues(t, 8000, rec.Steps)
	require.EqualValues(t, 8000, lifetime(t, f.store))

	watermark, err := f.local.ReadLastSyncDate(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-01-02", watermark)

	// Running it again immediately is a no-op.
	require.NoError(t, f.engine.FinalizePreviousDay(ctx))
	require.EqualValues(t, 8000, lifetime(t, f.store))
}

func TestFinalizeSkipsMultiDayGap(t *testing.T) {
	jan5 := time.Date(2024, time.January, 5, 9, 0, 0, 0, time.Local)
	f := newFixture(t, jan5)
	ctx := context.Background()

	require.NoError(t, f.local.WriteLastSyncDate(ctx, "2024-01-01"))
	jan1Clock := domain.FixedClock{At: time.Date(2024, time.January, 1, 23, 0, 0, 0, time.Local)}
	require.NoError(t, stepstore.New(f.kv, jan1Clock).WriteToday(ctx, 9000))

	require.NoError(t, f.engine.FinalizePreviousDay(ctx))

	// No backfill for Jan 2-4, and Jan 1's remainder is abandoned.
	require.EqualValues(t, 0, lifetime(t, f.store))
	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		rec, err := f.store.DailyRecord(ctx, testUser, date)
		require.NoError(t, err)
		require.Nil(t, rec, "unexpected record for %s", date)
	}

	watermark, err := f.local.ReadLastSyncDate(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-01-05", watermark)
}

func TestFinalizeRetriesAfterCommitFailure(t *testing.T) {
	jan2 := time.Date(2024, time.January, 2, 7, 30, 0, 0, time.Local)
	clock := domain.FixedClock{At: jan2}
	kv := stepstore.NewMemoryKV()
	local := stepstore.New(kv, clock)
	mem := remote.NewMemoryStore()
	mem.PutAccount(domain.UserAccount{UserID: testUser})
	ledger := &failingCommitLedger{LedgerStore: mem, fail: true}
	engine := New(testUser, local, ledger, nil, clock, quietLogger())
	ctx := context.Background()

	jan1Clock := domain.FixedClock{At: time.Date(2024, time.January, 1, 23, 0, 0, 0, time.Local)}
	require.NoError(t, stepstore.New(kv, jan1Clock).WriteToday(ctx, 5000))
	require.NoError(t, local.WriteLastSyncDate(ctx, "2024-01-01"))

	require.Error(t, engine.FinalizePreviousDay(ctx))

	// Watermark not advanced; the next cold start still owes yesterday.
	watermark, err := local.ReadLastSyncDate(ctx)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", watermark)

	ledger.fail = false
	require.NoError(t, engine.FinalizePreviousDay(ctx))
	require.EqualValues(t, 5000, lifetime(t, mem))
}

type failingCommitLedger struct {
	remote.LedgerStore
	fail bool
}

func (f *failingCommitLedger) CommitSteps(ctx context.Context, c remote.StepCommit) error {
	if f.fail {
		return errors.New("store unavailable")
	}
	return f.LedgerStore.CommitSteps(ctx, c)
}
