package domain

import "math"

// RatePerStep is the base payout in currency units per step.
const RatePerStep = 0.01

// BoostMultiplier doubles the payout for steps taken inside a boost window.
const BoostMultiplier = 2

// TotalEarnings combines lifetime steps, bonus coins, and boosted steps into a
// single displayed monetary amount. Boosted steps are priced at double the base
// rate and never overlap with normal pricing for the same step.
func TotalEarnings(lifetimeSteps int64, coins float64, boostSteps int64) float64 {
	if lifetimeSteps < 0 {
		lifetimeSteps = 0
	}
	if boostSteps < 0 {
		boostSteps = 0
	}
	if math.IsNaN(coins) {
		coins = 0
	}

	normalSteps := lifetimeSteps - boostSteps
	if normalSteps < 0 {
		normalSteps = 0
	}

	total := float64(normalSteps)*RatePerStep + float64(boostSteps)*(RatePerStep*BoostMultiplier) + coins
	if math.IsNaN(total) || total < 0 {
		return 0
	}
	return total
}
