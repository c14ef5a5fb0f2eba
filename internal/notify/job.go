// Package notify implements the scheduled push-notification job: cohort
// selection by preferred time of day, personalized message generation, push
// delivery, and a retry queue for failed sends.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"example.com/walkwins/internal/domain"
	"example.com/walkwins/internal/remote"
)

// RetryEnqueuer parks a failed push for later redelivery.
type RetryEnqueuer interface {
	Enqueue(ctx context.Context, userID, token, title, body, reason string) error
}

// Job selects the current time-of-day cohort and sends each member a
// personalized nudge.
type Job struct {
	accounts remote.AccountStore
	ledger   remote.LedgerStore
	textgen  TextGenerator
	gateway  PushSender
	retry    RetryEnqueuer
	clock    domain.Clock
	logger   *log.Logger
}

// NewJob constructs a Job. retry may be nil, in which case failed pushes are
// only logged.
func NewJob(accounts remote.AccountStore, ledger remote.LedgerStore, textgen TextGenerator, gateway PushSender, retry RetryEnqueuer, clock domain.Clock, logger *log.Logger) *Job {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	return &Job{
		accounts: accounts,
		ledger:   ledger,
		textgen:  textgen,
		gateway:  gateway,
		retry:    retry,
		clock:    clock,
		logger:   logger,
	}
}

// RunOnce performs one notification pass and returns the number of pushes
// handed to the gateway.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	now := j.clock.Now()
	cohort := cohortFor(now)

	accounts, err := j.accounts.AccountsByPreferredTime(ctx, cohort)
	if err != nil {
		return 0, fmt.Errorf("select cohort %s: %w", cohort, err)
	}

	today := domain.DateKey(now)
	messages := make([]PushMessage, 0, len(accounts))
	byToken := make(map[string]domain.UserAccount, len(accounts))

	for _, account := range accounts {
		if account.PushToken == "" {
			continue
		}

		rec, err := j.ledger.DailyRecord(ctx, account.UserID, today)
		if err != nil {
			j.logger.Printf("daily record for %s: %v", account.UserID, err)
			continue
		}
		steps := remote.OrZero(rec, today).Steps

		body := j.messageFor(ctx, account, steps)
		messages = append(messages, PushMessage{
			Token: account.PushToken,
			Title: "WalkWins",
			Body:  body,
		})
		byToken[account.PushToken] = account
	}

	if len(messages) == 0 {
		return 0, nil
	}

	receipts, err := j.gateway.Send(ctx, messages)
	if err != nil {
		// Wholesale gateway failure; park everything for retry.
		for _, msg := range messages {
			j.park(ctx, byToken[msg.Token].UserID, msg, err.Error())
		}
		return 0, err
	}

	sent := 0
	for i, receipt := range receipts {
		if i >= len(messages) {
			break
		}
		msg := messages[i]
		switch {
		case receipt.OK():
			sent++
			recordPushSent(cohort)
		case receipt.DeviceGone():
			// Stale token; not worth retrying.
			j.logger.Printf("skipping unregistered device for user %s", byToken[msg.Token].UserID)
			recordPushSkipped(cohort)
		default:
			j.park(ctx, byToken[msg.Token].UserID, msg, receipt.Detail)
		}
	}
	return sent, nil
}

func (j *Job) park(ctx context.Context, userID string, msg PushMessage, reason string) {
	recordPushFailed(cohortFor(j.clock.Now()))
	if j.retry == nil {
		j.logger.Printf("push failed for user %s: %s", userID, reason)
		return
	}
	if err := j.retry.Enqueue(ctx, userID, msg.Token, msg.Title, msg.Body, reason); err != nil {
		j.logger.Printf("enqueue retry for user %s: %v", userID, err)
	}
}

func (j *Job) messageFor(ctx context.Context, account domain.UserAccount, steps int64) string {
	if j.textgen != nil {
		text, err := j.textgen.Generate(ctx, BuildPrompt(account, steps))
		if err == nil && text != "" {
			return text
		}
		if err != nil {
			j.logger.Printf("text generation for %s: %v", account.UserID, err)
		}
	}
	return fallbackMessage(account, steps)
}

func fallbackMessage(account domain.UserAccount, steps int64) string {
	goal := account.DailyStepGoal
	if goal <= 0 {
		goal = domain.MinDailyStepGoal
	}
	if steps >= goal {
		return fmt.Sprintf("Goal smashed! %d steps today. Keep the streak alive.", steps)
	}
	return fmt.Sprintf("You're at %d of %d steps today. A short walk gets you closer.", steps, goal)
}

// cohortFor maps the local hour to a notification cohort.
func cohortFor(t time.Time) string {
	switch hour := t.Hour(); {
	case hour >= 17:
		return "Night"
	case hour >= 12:
		return "Evening"
	default:
		return "Morning"
	}
}
