// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/goal-probability/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Used for making logical comparisons.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Clamp bounds val to [lo, hi]. NaN is mapped to lo.
func Clamp(val, lo, hi float64) float64 {
	if math.IsNaN(val) || val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// ClampProbability bounds a percentage probability to [0, 100].
func ClampProbability(val float64) float64 {
	return Clamp(val, 0, constants.PercentageMultiplier)
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * constants.PercentageMultiplier
}

// MonthlyRate converts an annual compound rate into the equivalent monthly rate.
func MonthlyRate(annual float64) float64 {
	if annual <= -1 {
		return -1
	}
	return math.Pow(1+annual, 1.0/constants.MonthsPerYear) - 1
}

// FutureValue projects a starting amount plus a level monthly contribution at a
// fixed monthly rate over the given number of months.
func FutureValue(present, monthly, monthlyRate float64, months int) float64 {
	if months <= 0 {
		return present
	}
	n := float64(months)
	if math.Abs(monthlyRate) < 1e-12 {
		return present + monthly*n
	}
	growth := math.Pow(1+monthlyRate, n)
	return present*growth + monthly*(growth-1)/monthlyRate
}

// RequiredMonthly returns the level monthly contribution needed to grow present
// into target over months at monthlyRate. The result is never negative.
func RequiredMonthly(present, target, monthlyRate float64, months int) float64 {
	if months <= 0 {
		return 0
	}
	n := float64(months)
	var shortfall, factor float64
	if math.Abs(monthlyRate) < 1e-12 {
		shortfall = target - present
		factor = n
	} else {
		growth := math.Pow(1+monthlyRate, n)
		shortfall = target - present*growth
		factor = (growth - 1) / monthlyRate
	}
	if shortfall <= 0 || factor <= 0 {
		return 0
	}
	return shortfall / factor
}
