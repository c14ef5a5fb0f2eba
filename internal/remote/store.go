// Package remote defines the contracts the step ledger requires from the
// remote document store: per-day records addressable by (user, date), account
// documents addressable by user, and atomic numeric increments for the
// lifetime counters.
package remote

import (
	"context"

	"example.com/walkwins/internal/domain"
)

// StepCommit is the unit of work applied by the reconciliation engine: an
// absolute overwrite of the day's step count plus an increment of exactly
// Increment to the account's lifetime total, applied together.
type StepCommit struct {
	UserID    string
	Date      string
	Steps     int64 // absolute best-known count for the date
	Increment int64 // strictly positive delta applied to the lifetime total
	Finalized bool  // true when committed by day-rollover finalization
}

// LedgerStore is the write side used by the reconciliation engine.
type LedgerStore interface {
	// DailyRecord returns the record for (user, date), or nil when it does
	// not exist yet. Missing records are not an error.
	DailyRecord(ctx context.Context, userID, date string) (*domain.DailyStepRecord, error)

	// CommitSteps applies the commit atomically: the daily record's steps
	// become c.Steps and the account's lifetime total grows by exactly
	// c.Increment.
	CommitSteps(ctx context.Context, c StepCommit) error

	// FoldBoostSteps adds delta to the record's boost steps and to the
	// account's aggregate boost counter.
	FoldBoostSteps(ctx context.Context, userID, date string, delta int64) error
}

// AggregateReader is the read side used to reconstruct leaderboard rank and
// weekly history from the per-day records.
type AggregateReader interface {
	// RecordsForDate returns every user's step count for one date, in
	// stable store order, defaulting to 0 for users without a record.
	RecordsForDate(ctx context.Context, date string) ([]UserDailySteps, error)

	// RecordsForUser returns the user's records for the inclusive date key
	// range [from, to].
	RecordsForUser(ctx context.Context, userID, from, to string) ([]domain.DailyStepRecord, error)
}

// UserDailySteps pairs a user with their step count for one date.
type UserDailySteps struct {
	UserID   string
	Username string
	Steps    int64
}

// AccountStore manages the per-user account document.
type AccountStore interface {
	Account(ctx context.Context, userID string) (*domain.UserAccount, error)
	UpdateStepGoal(ctx context.Context, userID string, goal int64) error
	AddCoins(ctx context.Context, userID string, coins float64) error

	Challenge(ctx context.Context, userID, date string) (*domain.ChallengeEntry, error)
	JoinChallenge(ctx context.Context, userID string, entry domain.ChallengeEntry) error
	ClaimChallengeReward(ctx context.Context, userID, date string) error

	// AccountsByPreferredTime selects notification candidates for the given
	// time-of-day cohort.
	AccountsByPreferredTime(ctx context.Context, timeOfDay string) ([]domain.UserAccount, error)
}

// OrZero resolves a possibly-missing daily record to its zero value for the
// given date. This is the single point where "record does not exist" becomes
// "zero steps".
func OrZero(rec *domain.DailyStepRecord, date string) domain.DailyStepRecord {
	if rec == nil {
		return domain.DailyStepRecord{Date: date}
	}
	return *rec
}
