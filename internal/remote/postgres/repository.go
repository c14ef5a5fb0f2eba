// Package postgres provides the Postgres-backed remote document store: daily
// step records, account documents, and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/events"
	"example.com/walkwins/internal/observability"
	"example.com/walkwins/internal/remote"
)

// Repository implements remote.LedgerStore, remote.AggregateReader, and
// remote.AccountStore over a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DailyRecord returns the record for (user, date), or nil when absent.
func (r *Repository) DailyRecord(ctx context.Context, userID, date string) (*domain.DailyStepRecord, error) {
	const query = `SELECT date, steps, boost_steps FROM daily_steps WHERE user_id=$1 AND date=$2`

	row := r.pool.QueryRow(ctx, query, userID, date)
	var rec domain.DailyStepRecord
	if err := row.Scan(&rec.Date, &rec.Steps, &rec.BoostSteps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// CommitSteps applies the absolute daily overwrite, the atomic lifetime
// increment, and the outbox event in a single transaction.
func (r *Repository) CommitSteps(ctx context.Context, c remote.StepCommit) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	const upsertDaily = `INSERT INTO daily_steps (user_id, date, steps, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, date) DO UPDATE SET steps = EXCLUDED.steps, updated_at = EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, upsertDaily, c.UserID, c.Date, c.Steps, now); err != nil {
		return err
	}

	const bumpLifetime = `UPDATE accounts
        SET lifetime_total_steps = lifetime_total_steps + $2, updated_at = $3
        WHERE user_id = $1`
	tag, err := tx.Exec(ctx, bumpLifetime, c.UserID, c.Increment, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrAccountNotFound
		return err
	}

	eventType := "steps.synced"
	var payload interface{} = events.StepsSynced{
		UserID:     c.UserID,
		Date:       c.Date,
		Steps:      c.Steps,
		Increment:  c.Increment,
		OccurredAt: now,
	}
	if c.Finalized {
		eventType = "steps.day_finalized"
		payload = events.DayFinalized{
			UserID:     c.UserID,
			Date:       c.Date,
			Steps:      c.Steps,
			Increment:  c.Increment,
			OccurredAt: now,
		}
	}
	if err = insertOutbox(ctx, tx, c.UserID, c.Date, eventType, payload); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordStepsPersisted(now)
	return nil
}

// FoldBoostSteps adds delta to the daily record and the account aggregate
// atomically.
func (r *Repository) FoldBoostSteps(ctx context.Context, userID, date string, delta int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()

	const upsertDaily = `INSERT INTO daily_steps (user_id, date, boost_steps, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, date) DO UPDATE SET
            boost_steps = daily_steps.boost_steps + EXCLUDED.boost_steps,
            updated_at = EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, upsertDaily, userID, date, delta, now); err != nil {
		return err
	}

	const bumpAccount = `UPDATE accounts
        SET boost_steps = boost_steps + $2, updated_at = $3
        WHERE user_id = $1`
	tag, err := tx.Exec(ctx, bumpAccount, userID, delta, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = domain.ErrAccountNotFound
		return err
	}

	if err = insertOutbox(ctx, tx, userID, date, "steps.boost_folded", events.BoostFolded{
		UserID:     userID,
		Date:       date,
		BoostSteps: delta,
		OccurredAt: now,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, userID, date, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s:%s:%s", userID, date, eventType, uuid.NewString())

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		"daily_steps",
		fmt.Sprintf("%s:%s", userID, date),
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}

// RecordsForDate returns every account's step count for the date, 0 when no
// record exists, in account creation order.
func (r *Repository) RecordsForDate(ctx context.Context, date string) ([]remote.UserDailySteps, error) {
	const query = `SELECT a.user_id, a.username, COALESCE(d.steps, 0)
        FROM accounts a
        LEFT JOIN daily_steps d ON d.user_id = a.user_id AND d.date = $1
        ORDER BY a.created_at, a.user_id`

	rows, err := r.pool.Query(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []remote.UserDailySteps
	for rows.Next() {
		var row remote.UserDailySteps
		if err := rows.Scan(&row.UserID, &row.Username, &row.Steps); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecordsForUser returns the user's records in the inclusive date range.
func (r *Repository) RecordsForUser(ctx context.Context, userID, from, to string) ([]domain.DailyStepRecord, error) {
	const query = `SELECT date, steps, boost_steps FROM daily_steps
        WHERE user_id=$1 AND date >= $2 AND date <= $3
        ORDER BY date`

	rows, err := r.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DailyStepRecord
	for rows.Next() {
		var rec domain.DailyStepRecord
		if err := rows.Scan(&rec.Date, &rec.Steps, &rec.BoostSteps); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Account fetches the account document by user.
func (r *Repository) Account(ctx context.Context, userID string) (*domain.UserAccount, error) {
	const query = `SELECT user_id, username, lifetime_total_steps, boost_steps, coins, daily_step_goal,
            push_token, preferred_time, age, gender, fitness_goal, occupation
        FROM accounts WHERE user_id=$1`

	row := r.pool.QueryRow(ctx, query, userID)
	var account domain.UserAccount
	if err := row.Scan(
		&account.UserID, &account.Username, &account.LifetimeTotalSteps, &account.BoostSteps,
		&account.Coins, &account.DailyStepGoal, &account.PushToken, &account.PreferredTime,
		&account.Age, &account.Gender, &account.FitnessGoal, &account.Occupation,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdateStepGoal stores a new daily step goal.
func (r *Repository) UpdateStepGoal(ctx context.Context, userID string, goal int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET daily_step_goal=$2, updated_at=NOW() WHERE user_id=$1`,
		userID, goal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// AddCoins applies an atomic coin increment.
func (r *Repository) AddCoins(ctx context.Context, userID string, coins float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE accounts SET coins = coins + $2, updated_at=NOW() WHERE user_id=$1`,
		userID, coins)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Challenge returns the user's challenge entry for the date, nil when absent.
func (r *Repository) Challenge(ctx context.Context, userID, date string) (*domain.ChallengeEntry, error) {
	const query = `SELECT date, goal, start_steps, reward_claimed FROM challenges WHERE user_id=$1 AND date=$2`

	row := r.pool.QueryRow(ctx, query, userID, date)
	var entry domain.ChallengeEntry
	if err := row.Scan(&entry.Date, &entry.Goal, &entry.StartSteps, &entry.RewardClaimed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// JoinChallenge records challenge participation; joining twice keeps the
// original start point.
func (r *Repository) JoinChallenge(ctx context.Context, userID string, entry domain.ChallengeEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO challenges (user_id, date, goal, start_steps, reward_claimed)
         VALUES ($1,$2,$3,$4,false)
         ON CONFLICT (user_id, date) DO NOTHING`,
		userID, entry.Date, entry.Goal, entry.StartSteps)
	return err
}

// ClaimChallengeReward marks the challenge claimed and awards the coins once.
func (r *Repository) ClaimChallengeReward(ctx context.Context, userID, date string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const claim = `UPDATE challenges SET reward_claimed = true
        WHERE user_id=$1 AND date=$2 AND reward_claimed = false`
	tag, err := tx.Exec(ctx, claim, userID, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already claimed or never joined; nothing to award.
		return tx.Commit(ctx)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE accounts SET coins = coins + $2, updated_at=NOW() WHERE user_id=$1`,
		userID, float64(domain.ChallengeRewardCoins)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AccountsByPreferredTime selects notification candidates for the cohort.
func (r *Repository) AccountsByPreferredTime(ctx context.Context, timeOfDay string) ([]domain.UserAccount, error) {
	const query = `SELECT user_id, username, lifetime_total_steps, boost_steps, coins, daily_step_goal,
            push_token, preferred_time, age, gender, fitness_goal, occupation
        FROM accounts WHERE preferred_time=$1 ORDER BY created_at, user_id`

	rows, err := r.pool.Query(ctx, query, timeOfDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserAccount
	for rows.Next() {
		var account domain.UserAccount
		if err := rows.Scan(
			&account.UserID, &account.Username, &account.LifetimeTotalSteps, &account.BoostSteps,
			&account.Coins, &account.DailyStepGoal, &account.PushToken, &account.PreferredTime,
			&account.Age, &account.Gender, &account.FitnessGoal, &account.Occupation,
		); err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"steps.synced": {
		Topic:         "step_events",
		SchemaSubject: "step_events-value",
	},
	"steps.day_finalized": {
		Topic:         "step_events",
		SchemaSubject: "step_events-value",
	},
	"steps.boost_folded": {
		Topic:         "step_events",
		SchemaSubject: "step_events-value",
	},
}
