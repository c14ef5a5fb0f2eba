package aggregation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
)

func seedStore(t *testing.T, date string, steps map[string]int64, order []string) *remote.MemoryStore {
	t.Helper()

	store := remote.NewMemoryStore()
	ctx := context.Background()
	for _, userID := range order {
		store.PutAccount(domain.UserAccount{UserID: userID, Username: "u-" + userID})
		if n := steps[userID]; n > 0 {
			require.NoError(t, store.CommitSteps(ctx, remote.StepCommit{
				UserID: userID, Date: date, Steps: n, Increment: n,
			}))
		}
	}
	return store
}

func TestLeaderboardRanksDescending(t *testing.T) {
	now := time.Date(2024, time.January, 3, 18, 0, 0, 0, time.Local)
	store := seedStore(t, "2024-01-03", map[string]int64{
		"alice": 4000,
		"bob":   9000,
		"carol": 1000,
	}, []string{"alice", "bob", "carol"})

	reader := NewReader(store, domain.FixedClock{At: now})
	entries, rank, err := reader.Leaderboard(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.Len(t, entries, 3)
	require.Equal(t, "bob", entries[0].UserID)
	require.EqualValues(t, 9000, entries[0].Steps)
	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "carol", entries[2].UserID)
}

func TestLeaderboardDefaultsMissingRecordsToZero(t *testing.T) {
	now := time.Date(2024, time.January, 3, 18, 0, 0, 0, time.Local)
	store := seedStore(t, "2024-01-03", map[string]int64{
		"alice": 4000,
	}, []string{"alice", "bob"})

	reader := NewReader(store, domain.FixedClock{At: now})
	entries, rank, err := reader.Leaderboard(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, 2, rank)
	require.EqualValues(t, 0, entries[1].Steps)
}

func TestLeaderboardTiesKeepStoreOrder(t *testing.T) {
	now := time.Date(2024, time.January, 3, 18, 0, 0, 0, time.Local)
	store := seedStore(t, "2024-01-03", map[string]int64{
		"alice": 5000,
		"bob":   5000,
	}, []string{"alice", "bob"})

	reader := NewReader(store, domain.FixedClock{At: now})
	entries, _, err := reader.Leaderboard(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", entries[0].UserID)
	require.Equal(t, "bob", entries[1].UserID)
}

func TestWeeklyHistorySubstitutesLiveToday(t *testing.T) {
	// Wednesday 2024-01-03; week started Monday 2024-01-01.
	now := time.Date(2024, time.January, 3, 18, 0, 0, 0, time.Local)
	store := remote.NewMemoryStore()
	store.PutAccount(domain.UserAccount{UserID: "alice"})
	ctx := context.Background()

	require.NoError(t, store.CommitSteps(ctx, remote.StepCommit{UserID: "alice", Date: "2024-01-01", Steps: 3000, Increment: 3000}))
	require.NoError(t, store.CommitSteps(ctx, remote.StepCommit{UserID: "alice", Date: "2024-01-03", Steps: 2000, Increment: 2000}))

	reader := NewReader(store, domain.FixedClock{At: now})
	history, err := reader.WeeklyHistory(ctx, "alice", 2600)
	require.NoError(t, err)

	require.Equal(t, []DaySteps{
		{Date: "2024-01-01", Steps: 3000},
		{Date: "2024-01-02", Steps: 0},
		{Date: "2024-01-03", Steps: 2600}, // live value wins over the lagging record
	}, history)
}

func TestWeeklyHistoryMondayStartOnSunday(t *testing.T) {
	// Sunday 2024-01-07 closes the week that began Monday 2024-01-01.
	now := time.Date(2024, time.January, 7, 9, 0, 0, 0, time.Local)
	store := remote.NewMemoryStore()
	store.PutAccount(domain.UserAccount{UserID: "alice"})

	reader := NewReader(store, domain.FixedClock{At: now})
	history, err := reader.WeeklyHistory(context.Background(), "alice", 100)
	require.NoError(t, err)
	require.Len(t, history, 7)
	require.Equal(t, "2024-01-01", history[0].Date)
	require.Equal(t, "2024-01-07", history[6].Date)
	require.EqualValues(t, 100, history[6].Steps)
}
