package notify

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PushRetryQueue handles redelivering failed pushes and quarantining exhausted
// entries.
type PushRetryQueue struct {
	pool       *pgxpool.Pool
	gateway    PushSender
	maxRetries int
	baseDelay  time.Duration
}

// NewPushRetryQueue constructs a PushRetryQueue with the provided pool, sender,
// and retry configuration.
func NewPushRetryQueue(pool *pgxpool.Pool, gateway PushSender, maxRetries int, baseDelay time.Duration) *PushRetryQueue {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &PushRetryQueue{pool: pool, gateway: gateway, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Enqueue implements RetryEnqueuer.
func (q *PushRetryQueue) Enqueue(ctx context.Context, userID, token, title, body, reason string) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO push_retry (user_id, push_token, title, body, reason)
         VALUES ($1,$2,$3,$4,$5)`,
		userID, token, title, body, reason)
	return err
}

// RunOnce processes a batch of due retry entries and returns the count of
// successful redeliveries.
func (q *PushRetryQueue) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT retry_id, user_id, push_token, title, body, retry_count
                    FROM push_retry
                   WHERE quarantined_at IS NULL AND next_retry_at <= NOW()
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := q.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var entries []retryEntry
	for rows.Next() {
		entry, scanErr := scanRetryEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}

	delivered := 0
	for _, entry := range entries {
		if procErr := q.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, procErr)
		} else {
			delivered++
		}
	}
	return delivered, err
}

// handleEntry applies retry/quarantine logic for a single entry.
func (q *PushRetryQueue) handleEntry(ctx context.Context, entry retryEntry) error {
	if entry.RetryCount >= q.maxRetries {
		_, err := q.pool.Exec(ctx,
			`UPDATE push_retry SET quarantined_at = NOW(), quarantine_reason = $1 WHERE retry_id = $2`,
			"retry limit reached", entry.ID)
		if err == nil {
			recordPushQuarantined()
			err = errors.New("entry quarantined")
		}
		return err
	}

	receipts, sendErr := q.gateway.Send(ctx, []PushMessage{{Token: entry.Token, Title: entry.Title, Body: entry.Body}})
	if sendErr == nil && len(receipts) > 0 {
		if receipts[0].DeviceGone() {
			// Token went stale while parked; drop the entry.
			_, err := q.pool.Exec(ctx, `DELETE FROM push_retry WHERE retry_id = $1`, entry.ID)
			return err
		}
		if !receipts[0].OK() {
			sendErr = errors.New(receipts[0].Detail)
		}
	}

	if sendErr != nil {
		delay := q.backoffDelay(entry.RetryCount + 1)
		if _, err := q.pool.Exec(ctx,
			`UPDATE push_retry
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + $1::interval,
                   reason = $2
             WHERE retry_id = $3`,
			delay, sendErr.Error(), entry.ID,
		); err != nil {
			return err
		}
		return sendErr
	}

	_, err := q.pool.Exec(ctx, `DELETE FROM push_retry WHERE retry_id = $1`, entry.ID)
	return err
}

// backoffDelay calculates exponential backoff capped at one hour.
func (q *PushRetryQueue) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * q.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// retryEntry represents a push_retry row selected for processing.
type retryEntry struct {
	ID         int64
	UserID     string
	Token      string
	Title      string
	Body       string
	RetryCount int
}

func scanRetryEntry(rows pgx.Rows) (retryEntry, error) {
	var entry retryEntry
	if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Token, &entry.Title, &entry.Body, &entry.RetryCount); err != nil {
		return retryEntry{}, err
	}
	return entry, nil
}
