// Package events defines the payloads published by the step ledger's outbox.
package events

import "time"

// StepsSynced is emitted when a reconciliation commit lands: the daily record
// was overwritten to an absolute count and the lifetime total grew by
// Increment.
type StepsSynced struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Steps      int64     `json:"steps"`
	Increment  int64     `json:"increment"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DayFinalized is emitted when a cold-start rollover commits the previous
// day's unsynced remainder.
type DayFinalized struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Steps      int64     `json:"steps"`
	Increment  int64     `json:"increment"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BoostFolded is emitted when boosted steps are folded into a daily record.
type BoostFolded struct {
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	BoostSteps int64     `json:"boost_steps"`
	OccurredAt time.Time `json:"occurred_at"`
}
