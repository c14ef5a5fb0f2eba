// Package stepstore provides the on-device persistent store for the day's raw
// step count and the sync watermark. Write-heavy, read-rarely: every observed
// sensor increment rewrites today's count.
package stepstore

import (
	"context"
	"strconv"

	"example.com/walkwins/internal/domain"
)

const (
	dailyStepsKeyPrefix = "dailySteps_"
	lastSyncDateKey     = "lastSyncDate"
)

// KV is the simple string key-value storage the store runs on.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store persists per-date step counts and the last-sync watermark.
type Store struct {
	kv    KV
	clock domain.Clock
}

// New constructs a Store over the given KV backend.
func New(kv KV, clock domain.Clock) *Store {
	return &Store{kv: kv, clock: clock}
}

// ReadToday returns the persisted count for the current local date, or 0 if
// absent.
func (s *Store) ReadToday(ctx context.Context) (int64, error) {
	return s.ReadDay(ctx, domain.DateKey(s.clock.Now()))
}

// ReadDay returns the persisted count for the given date key, or 0 if absent.
func (s *Store) ReadDay(ctx context.Context, date string) (int64, error) {
	value, ok, err := s.kv.Get(ctx, dailyStepsKeyPrefix+date)
	if err != nil || !ok {
		return 0, err
	}
	steps, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		// Corrupt value; treat as absent rather than failing the caller.
		return 0, nil
	}
	return steps, nil
}

// WriteToday persists the new count for the current local date.
func (s *Store) WriteToday(ctx context.Context, steps int64) error {
	date := domain.DateKey(s.clock.Now())
	return s.kv.Set(ctx, dailyStepsKeyPrefix+date, strconv.FormatInt(steps, 10))
}

// ReadLastSyncDate returns the date key through which the device believes the
// remote store is caught up, or "" if never synced.
func (s *Store) ReadLastSyncDate(ctx context.Context) (string, error) {
	value, _, err := s.kv.Get(ctx, lastSyncDateKey)
	return value, err
}

// WriteLastSyncDate persists the sync watermark.
func (s *Store) WriteLastSyncDate(ctx context.Context, date string) error {
	return s.kv.Set(ctx, lastSyncDateKey, date)
}
