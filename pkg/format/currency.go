// Package format renders amounts for logs, recommendation text and CLI output.
package format

import (
	"fmt"
	"math"
	"strings"
)

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "₹"

// Currency returns a rupee string with Indian digit grouping (e.g., "-₹12,34,567.89").
func Currency(amount float64) string {
	formatted := formatPositiveCurrency(math.Abs(amount))
	if amount < 0 {
		return "-" + CurrencySymbol + formatted
	}
	return CurrencySymbol + formatted
}

// Percent renders a percentage value with one decimal place (e.g., "62.4%").
func Percent(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// SignedPercent renders a percentage-point delta with an explicit sign (e.g., "+3.2 pts").
func SignedPercent(value float64) string {
	return fmt.Sprintf("%+.1f pts", value)
}

// formatPositiveCurrency groups the last three integer digits, then pairs (lakh/crore).
func formatPositiveCurrency(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		head := intPart[:len(intPart)-3]
		tail := intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(append(groups, tail), ",")
	}

	return intPart + "." + decPart
}
