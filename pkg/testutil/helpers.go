// Package testutil provides common fixtures and helpers for testing.
package testutil

import (
	"time"

	"github.com/iwvelando/goal-probability/internal/goal"
)

// ExampleTargetDate is the target date of ExampleGoal, ten years after
// January 2025.
var ExampleTargetDate = time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC)

// ExampleGoal returns the reference retirement goal: 500000 target, 100000
// saved, 5000 a month, 60/40 equity/debt, due ExampleTargetDate.
func ExampleGoal() goal.Goal {
	return goal.Goal{
		ID:                  "retire-1",
		Category:            goal.CategoryRetirement,
		CurrentAmount:       100000,
		TargetAmount:        500000,
		MonthlyContribution: 5000,
		TargetDate:          ExampleTargetDate,
		Allocation:          goal.Allocation{"equity": 0.6, "debt": 0.4},
	}
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
