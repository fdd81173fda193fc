// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/goal-probability/pkg/datetime"
)

// maxHorizonMonths is the horizon beyond which return assumptions stop being
// meaningful.
const maxHorizonMonths = 50 * 12

// ValidateTargetDate checks that a goal's target date falls after the as-of
// month and within a sensible horizon.
func ValidateTargetDate(goalID, targetDate, asOf string) (string, error) {
	target, err := datetime.ParseMonth(targetDate)
	if err != nil {
		return "", err
	}
	start, err := datetime.ParseMonth(asOf)
	if err != nil {
		return "", err
	}

	months := datetime.MonthsBetween(start, target)
	if months <= 0 {
		return fmt.Sprintf("Goal '%s' target date is not after %s (%s) - horizon clamps to one month",
			goalID, asOf, targetDate), nil
	}
	if months > maxHorizonMonths {
		return fmt.Sprintf("Goal '%s' horizon of %d months exceeds %d - return assumptions may not hold",
			goalID, months, maxHorizonMonths), nil
	}

	return "", nil
}

// ValidateFunding checks whether a goal's amounts describe something worth simulating.
func ValidateFunding(goalID string, current, target, monthly float64) []string {
	var warnings []string

	if target > 0 && current >= target {
		warnings = append(warnings, fmt.Sprintf("Goal '%s' is already funded (%.2f >= %.2f)",
			goalID, current, target))
	}

	if monthly == 0 && current < target {
		warnings = append(warnings, fmt.Sprintf("Goal '%s' has no monthly contribution and relies on returns alone",
			goalID))
	}

	return warnings
}

// ValidateIterations warns when iterations is too small for stable estimates.
func ValidateIterations(iterations, minStable int) string {
	if iterations > 0 && iterations < minStable {
		return fmt.Sprintf("Simulation iterations %d is below %d - probability estimates will be unstable",
			iterations, minStable)
	}
	return ""
}

// ConfigValidator checks a loaded configuration for conditions worth warning about.
type ConfigValidator struct {
	AsOf                string
	Iterations          int
	MinStableIterations int
	Goals               []GoalConfig
}

// GoalConfig is the subset of a goal the validator inspects.
type GoalConfig struct {
	ID                  string
	TargetDate          string
	CurrentAmount       float64
	TargetAmount        float64
	MonthlyContribution float64
}

// ValidateAll validates the entire configuration and returns warnings
func (cv *ConfigValidator) ValidateAll() []string {
	var warnings []string

	if warning := ValidateIterations(cv.Iterations, cv.MinStableIterations); warning != "" {
		warnings = append(warnings, warning)
	}

	for _, g := range cv.Goals {
		warning, err := ValidateTargetDate(g.ID, g.TargetDate, cv.AsOf)
		if err == nil && warning != "" {
			warnings = append(warnings, warning)
		}
		warnings = append(warnings, ValidateFunding(g.ID, g.CurrentAmount, g.TargetAmount, g.MonthlyContribution)...)
	}

	return warnings
}
