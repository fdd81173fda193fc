// Package datetime provides date and time utility functions.
package datetime

import (
	"time"

	"github.com/iwvelando/goal-probability/pkg/constants"
)

const (
	// DateTimeLayout is the format expected in config files and is also the output
	// date format.
	DateTimeLayout = constants.DateTimeLayout
)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseMonth parses a "YYYY-MM" string into the first instant of that month (UTC).
func ParseMonth(value string) (time.Time, error) {
	return time.Parse(DateTimeLayout, value)
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthIndex returns a linear month number for t.
func MonthIndex(t time.Time) int {
	t = t.UTC()
	return t.Year()*constants.MonthsPerYear + int(t.Month()) - 1
}

// MonthsBetween returns the whole number of calendar months from start to end.
// The result is negative when end precedes start.
func MonthsBetween(start, end time.Time) int {
	return MonthIndex(end) - MonthIndex(start)
}
