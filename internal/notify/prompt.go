package notify

import (
	"fmt"
	"strings"

	"example.com/walkwins/internal/domain"
)

// BuildPrompt renders the generative-text prompt for one user from their
// profile and today's progress.
func BuildPrompt(account domain.UserAccount, steps int64) string {
	goal := account.DailyStepGoal
	if goal <= 0 {
		goal = domain.MinDailyStepGoal
	}

	var b strings.Builder
	b.WriteString("Write a single short, upbeat push notification (max 140 characters) encouraging the user to walk.")
	fmt.Fprintf(&b, " Name: %s.", orUnknown(account.Username))
	if account.Age > 0 {
		fmt.Fprintf(&b, " Age: %d.", account.Age)
	}
	if account.Gender != "" {
		fmt.Fprintf(&b, " Gender: %s.", account.Gender)
	}
	if account.Occupation != "" {
		fmt.Fprintf(&b, " Occupation: %s.", account.Occupation)
	}
	if account.FitnessGoal != "" {
		fmt.Fprintf(&b, " Fitness goal: %s.", account.FitnessGoal)
	}
	fmt.Fprintf(&b, " Progress today: %d of %d steps.", steps, goal)
	b.WriteString(" Do not use hashtags or emojis.")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "there"
	}
	return s
}
