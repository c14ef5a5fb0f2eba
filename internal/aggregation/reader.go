// Package aggregation reconstructs leaderboard rank and weekly history from
// the per-day remote records. Read-only; never mutates the ledger.
package aggregation

import (
	"context"
	"errors"
	"sort"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
)

// ErrUserNotRanked is returned when the querying user is unknown to the store.
var ErrUserNotRanked = errors.New("user not present in leaderboard")

// Reader answers the read-side aggregate queries.
type Reader struct {
	store remote.AggregateReader
	clock domain.Clock
}

// NewReader constructs a Reader.
func NewReader(store remote.AggregateReader, clock domain.Clock) *Reader {
	return &Reader{store: store, clock: clock}
}

// Leaderboard returns today's ranking and the 1-based position of userID.
// Entries are sorted descending by steps; ties keep store iteration order
// (stable sort, no further tie-break).
func (r *Reader) Leaderboard(ctx context.Context, userID string) ([]domain.LeaderboardEntry, int, error) {
	today := domain.DateKey(r.clock.Now())

	rows, err := r.store.RecordsForDate(ctx, today)
	if err != nil {
		return nil, 0, err
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Steps > rows[j].Steps })

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	rank := 0
	for i, row := range rows {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:     i + 1,
			UserID:   row.UserID,
			Username: row.Username,
			Steps:    row.Steps,
		})
		if row.UserID == userID {
			rank = i + 1
		}
	}
	if rank == 0 {
		return entries, 0, ErrUserNotRanked
	}
	return entries, rank, nil
}

// DaySteps is one day of the weekly history.
type DaySteps struct {
	Date  string
	Steps int64
}

// WeeklyHistory returns the current local week (Monday-start) with one entry
// per day through today. liveToday substitutes the in-memory running total for
// today's own entry, since the remote record may lag behind the periodic sync.
func (r *Reader) WeeklyHistory(ctx context.Context, userID string, liveToday int64) ([]DaySteps, error) {
	now := r.clock.Now()
	today := domain.DateKey(now)

	offset := (int(now.Weekday()) + 6) % 7 // days since Monday
	monday := now.AddDate(0, 0, -offset)

	from := domain.DateKey(monday)
	records, err := r.store.RecordsForUser(ctx, userID, from, today)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]int64, len(records))
	for _, rec := range records {
		byDate[rec.Date] = rec.Steps
	}

	out := make([]DaySteps, 0, offset+1)
	for i := 0; i <= offset; i++ {
		date := domain.DateKey(monday.AddDate(0, 0, i))
		steps := byDate[date]
		if date == today {
			steps = liveToday
		}
		out = append(out, DaySteps{Date: date, Steps: steps})
	}
	return out, nil
}
