// Package domain defines the step-ledger types and the business logic for the
// walkwins platform.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound is returned when a user account cannot be located.
	ErrAccountNotFound = errors.New("account not found")
)

// MinDailyStepGoal is the lowest configurable daily step goal.
const MinDailyStepGoal = 3000

// ChallengeRewardCoins is awarded once per completed daily challenge.
const ChallengeRewardCoins = 50

// DateKeyLayout is the calendar-date format used as the natural key for daily
// records. Dates are always taken in the user's local timezone.
const DateKeyLayout = "2006-01-02"

// DateKey renders t as a calendar-date key in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// PreviousDateKey renders the calendar day immediately before t.
func PreviousDateKey(t time.Time) string {
	return t.AddDate(0, 0, -1).Format(DateKeyLayout)
}

// Clock abstracts wall-clock access so boost-window and day-rollover logic can
// be exercised with fixed timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Test helper.
type FixedClock struct{ At time.Time }

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.At }

// DailyStepRecord is the authoritative per-day step document in the remote
// store, keyed by (user, date). Steps are monotonically non-decreasing over
// the life of the record; only the reconciliation engine mutates it.
type DailyStepRecord struct {
	Date       string
	Steps      int64
	BoostSteps int64
}

// UserAccount is the per-user document in the remote store. Lifetime totals
// are only ever moved by reconciliation increments; coins come from outside
// the step ledger (ads, referrals, challenges).
type UserAccount struct {
	UserID             string
	Username           string
	LifetimeTotalSteps int64
	BoostSteps         int64
	Coins              float64
	DailyStepGoal      int64

	// Notification profile, consumed by the notifier job.
	PushToken     string
	PreferredTime string
	Age           int
	Gender        string
	FitnessGoal   string
	Occupation    string
}

// ChallengeEntry tracks participation in the daily challenge for one date.
type ChallengeEntry struct {
	Date          string
	Goal          int64
	StartSteps    int64
	RewardClaimed bool
}

// LeaderboardEntry is one row of the daily leaderboard.
type LeaderboardEntry struct {
	Rank     int
	UserID   string
	Username string
	Steps    int64
}

// ClampStepGoal enforces the configurable minimum on a requested goal.
func ClampStepGoal(goal int64) int64 {
	if goal < MinDailyStepGoal {
		return MinDailyStepGoal
	}
	return goal
}
