// Package output provides utilities for formatting and displaying evaluation
// and ranking results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/ranking"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteResult renders an evaluation result in the requested output format.
func WriteResult(w io.Writer, outputFormat, goalID string, res *analyzer.Result) error {
	switch outputFormat {
	case constants.OutputFormatCSV:
		return CsvResult(w, res)
	case constants.OutputFormatJSON:
		return JSON(w, res)
	default:
		PrettyResult(w, goalID, res)
		return nil
	}
}

// WriteRecommendations renders a ranking result in the requested output format.
func WriteRecommendations(w io.Writer, outputFormat string, res *ranking.Result) error {
	switch outputFormat {
	case constants.OutputFormatCSV:
		return CsvRecommendations(w, res)
	case constants.OutputFormatJSON:
		return JSON(w, res)
	default:
		PrettyRecommendations(w, res)
		return nil
	}
}

// PrettyResult outputs a human-readable rather than machine-readable summary.
func PrettyResult(w io.Writer, goalID string, res *analyzer.Result) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(w, "--- Results for goal %s ---\n", goalID)
	_, _ = fmt.Fprintf(w, "Success probability         | %s\n", format.Percent(res.SuccessProbability))
	_, _ = fmt.Fprintf(w, "Partial success probability | %s\n", format.Percent(res.PartialSuccessProbability))
	_, _ = fmt.Fprintf(w, "Reached target              | %s\n", format.Percent(res.RawSuccessRate))
	_, _ = fmt.Fprintf(w, "Target amount               | %s\n", format.Currency(res.TargetAmount))
	_, _ = fmt.Fprintf(w, "Median final value          | %s\n", format.Currency(res.MedianFinal))
	_, _ = fmt.Fprintf(w, "Mean final value            | %s\n", format.Currency(res.MeanFinal))
	_, _ = fmt.Fprintf(w, "Volatility of final value   | %s\n", format.Currency(res.Volatility))
	drawdown := "n/a"
	if res.MaxDrawdown != nil {
		drawdown = format.Percent(*res.MaxDrawdown * constants.PercentageMultiplier)
	}
	_, _ = fmt.Fprintf(w, "Max drawdown (median path)  | %s\n", drawdown)
	_, _ = p.Fprintf(w, "Iterations                  | %d (seed %d, %d months)\n", res.Iterations, res.Seed, res.HorizonMonths)

	_, _ = fmt.Fprintf(w, "\nPercentile | Final value\n")
	_, _ = fmt.Fprintf(w, "__________ | ___________\n")
	for i, v := range res.Percentiles.Values() {
		_, _ = fmt.Fprintf(w, "P%-9.0f | %s\n", analyzer.PercentileRanks[i]*constants.PercentageMultiplier, format.Currency(v))
	}

	if res.PercentilePaths.Len() > 0 {
		_, _ = fmt.Fprintf(w, "\nMonth | P10 | P50 | P90\n")
		_, _ = fmt.Fprintf(w, "_____ | ___ | ___ | ___\n")
		last := res.PercentilePaths.Len() - 1
		for i := 0; i <= last; i++ {
			if i%constants.MonthsPerYear != 0 && i != last {
				continue
			}
			at := res.PercentilePaths.At(i)
			_, _ = p.Fprintf(w, "%5d | %.2f | %.2f | %.2f\n", i, at.P10, at.P50, at.P90)
		}
	}
}

// CsvResult outputs the percentile paths when present, otherwise a two-column
// metric table.
func CsvResult(w io.Writer, res *analyzer.Result) error {
	cw := csv.NewWriter(w)
	if res.PercentilePaths.Len() > 0 {
		if err := cw.Write([]string{"month", "p10", "p25", "p50", "p75", "p90"}); err != nil {
			return err
		}
		for i := 0; i < res.PercentilePaths.Len(); i++ {
			at := res.PercentilePaths.At(i)
			row := []string{strconv.Itoa(i)}
			for _, v := range at.Values() {
				row = append(row, formatFloat(v))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	drawdown := ""
	if res.MaxDrawdown != nil {
		drawdown = strconv.FormatFloat(*res.MaxDrawdown, 'f', 4, 64)
	}
	rows := [][]string{
		{"metric", "value"},
		{"success_probability", formatFloat(res.SuccessProbability)},
		{"probability_partial_success", formatFloat(res.PartialSuccessProbability)},
		{"raw_success_rate", formatFloat(res.RawSuccessRate)},
		{"target_amount", formatFloat(res.TargetAmount)},
		{"p10", formatFloat(res.Percentiles.P10)},
		{"p25", formatFloat(res.Percentiles.P25)},
		{"p50", formatFloat(res.Percentiles.P50)},
		{"p75", formatFloat(res.Percentiles.P75)},
		{"p90", formatFloat(res.Percentiles.P90)},
		{"mean_final", formatFloat(res.MeanFinal)},
		{"median_final", formatFloat(res.MedianFinal)},
		{"volatility", formatFloat(res.Volatility)},
		{"max_drawdown", drawdown},
		{"iterations", strconv.Itoa(res.Iterations)},
		{"seed", strconv.FormatInt(res.Seed, 10)},
		{"horizon_months", strconv.Itoa(res.HorizonMonths)},
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// PrettyRecommendations outputs ranked adjustments as a table.
func PrettyRecommendations(w io.Writer, res *ranking.Result) {
	s := res.Summary
	_, _ = fmt.Fprintf(w, "--- Adjustments for goal %s (run %s) ---\n", s.GoalID, s.RunID)
	_, _ = fmt.Fprintf(w, "Baseline probability: %s over %d iterations (seed %d)\n",
		format.Percent(s.BaselineProbability), s.Iterations, s.Seed)
	_, _ = fmt.Fprintf(w, "Rank | Priority | Probability | Change | Difficulty | Monthly change | Adjustment\n")
	_, _ = fmt.Fprintf(w, "____ | ________ | ___________ | ______ | __________ | ______________ | __________\n")
	for i, rec := range res.Recommendations {
		_, _ = fmt.Fprintf(w, "%4d | %8.3f | %11s | %s | %-10s | %14s | %s\n",
			i+1,
			rec.PriorityScore,
			format.Percent(rec.NewProbability),
			format.SignedPercent(rec.ProbabilityIncrease),
			rec.Difficulty,
			format.Currency(rec.FinancialImpact.MonthlyChange),
			rec.Candidate.Description,
		)
	}
	for _, note := range s.Notes {
		_, _ = fmt.Fprintf(w, "note: %s\n", note)
	}
}

// CsvRecommendations outputs ranked adjustments in comma-separated value format.
func CsvRecommendations(w io.Writer, res *ranking.Result) error {
	cw := csv.NewWriter(w)
	header := []string{
		"rank", "type", "description", "priority_score", "baseline_probability", "new_probability",
		"probability_increase", "difficulty", "monthly_change", "total_contribution_change",
		"projected_corpus_change", "tax_section", "annual_tax_savings",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, rec := range res.Recommendations {
		section, savings := "", ""
		if rec.TaxImpact != nil {
			section = rec.TaxImpact.Section
			savings = formatFloat(rec.TaxImpact.AnnualSavings)
		}
		row := []string{
			strconv.Itoa(i + 1),
			string(rec.Candidate.Type),
			rec.Candidate.Description,
			strconv.FormatFloat(rec.PriorityScore, 'f', 4, 64),
			formatFloat(rec.BaselineProbability),
			formatFloat(rec.NewProbability),
			formatFloat(rec.ProbabilityIncrease),
			string(rec.Difficulty),
			formatFloat(rec.FinancialImpact.MonthlyChange),
			formatFloat(rec.FinancialImpact.TotalContributionChange),
			formatFloat(rec.FinancialImpact.ProjectedCorpusChange),
			section,
			savings,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON outputs v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
