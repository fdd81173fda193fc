package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/ranking"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/optimization"
)

func sampleResult(withPaths bool) *analyzer.Result {
	drawdown := 0.125
	res := &analyzer.Result{
		SuccessProbability:        62.4,
		PartialSuccessProbability: 81.5,
		RawSuccessRate:            48,
		TargetAmount:              500000,
		Percentiles:               analyzer.Percentiles{P10: 300000, P25: 400000, P50: 520000, P75: 640000, P90: 800000},
		MeanFinal:                 540000,
		MedianFinal:               520000,
		Volatility:                150000,
		MaxDrawdown:               &drawdown,
		Iterations:                1000,
		Seed:                      42,
		HorizonMonths:             24,
	}
	if withPaths {
		path := func(base float64) []float64 {
			out := make([]float64, 25)
			for i := range out {
				out[i] = base + float64(i)*1000
			}
			return out
		}
		res.PercentilePaths = analyzer.PercentilePaths{
			P10: path(1000000),
			P25: path(1100000),
			P50: path(1234567.5),
			P75: path(1300000),
			P90: path(1400000),
		}
	}
	return res
}

func sampleRanking() *ranking.Result {
	return &ranking.Result{
		Summary: optimization.Summary{
			RunID:               "run-1",
			GoalID:              "house",
			BaselineProbability: 55,
			Iterations:          500,
			Seed:                42,
			Notes:               []string{"dropped 1 candidate"},
		},
		Recommendations: []ranking.Recommendation{
			{
				Candidate:           ranking.Candidate{Type: ranking.AdjustContribution, Description: "Increase monthly contribution by 25% to ₹6,300.00"},
				BaselineProbability: 55,
				NewProbability:      63.2,
				ProbabilityIncrease: 8.2,
				FinancialImpact:     ranking.FinancialImpact{MonthlyChange: 1300, TotalContributionChange: 156000},
				Difficulty:          ranking.DifficultyModerate,
				PriorityScore:       0.71,
			},
			{
				Candidate:           ranking.Candidate{Type: ranking.AdjustTax, Description: "Invest via ELSS under section 80C"},
				BaselineProbability: 55,
				NewProbability:      57,
				ProbabilityIncrease: 2,
				TaxImpact:           &ranking.TaxImpact{Section: "80C", AnnualSavings: 18720},
				Difficulty:          ranking.DifficultyEasy,
				PriorityScore:       0.52,
			},
		},
	}
}

func TestPrettyResult(t *testing.T) {
	var buf bytes.Buffer
	PrettyResult(&buf, "house", sampleResult(false))
	output := buf.String()

	expected := []string{
		"--- Results for goal house ---",
		"Success probability         | 62.4%",
		"Partial success probability | 81.5%",
		"Target amount               | ₹5,00,000.00",
		"Max drawdown (median path)  | 12.5%",
		"1,000 (seed 42, 24 months)",
		"P10        | ₹3,00,000.00",
		"P90        | ₹8,00,000.00",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyResult missing %q in:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Month |") {
		t.Errorf("PrettyResult should not print paths when none were kept")
	}
}

func TestResultWithoutDrawdown(t *testing.T) {
	res := sampleResult(false)
	res.MaxDrawdown = nil

	var buf bytes.Buffer
	PrettyResult(&buf, "house", res)
	if !strings.Contains(buf.String(), "Max drawdown (median path)  | n/a") {
		t.Errorf("PrettyResult should mark a missing drawdown:\n%s", buf.String())
	}

	buf.Reset()
	if err := CsvResult(&buf, res); err != nil {
		t.Fatalf("CsvResult() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\nmax_drawdown,\n") {
		t.Errorf("CsvResult should leave a missing drawdown empty:\n%s", buf.String())
	}
}

func TestPrettyResultWithPaths(t *testing.T) {
	var buf bytes.Buffer
	PrettyResult(&buf, "house", sampleResult(true))
	output := buf.String()

	if !strings.Contains(output, "Month | P10 | P50 | P90") {
		t.Fatalf("PrettyResult missing path header")
	}
	if !strings.Contains(output, "    0 | 1,000,000.00 | 1,234,567.50 | 1,400,000.00") {
		t.Errorf("PrettyResult missing month 0 row:\n%s", output)
	}
	if !strings.Contains(output, "   24 | 1,024,000.00") {
		t.Errorf("PrettyResult missing final row:\n%s", output)
	}
	if strings.Contains(output, "    6 |") {
		t.Errorf("PrettyResult should only print yearly rows")
	}
}

func TestCsvResult(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvResult(&buf, sampleResult(false)); err != nil {
		t.Fatalf("CsvResult() error = %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if records[0][0] != "metric" || records[1][0] != "success_probability" || records[1][1] != "62.40" {
		t.Errorf("unexpected leading rows %v", records[:2])
	}
	if len(records) != 17 {
		t.Errorf("expected 17 rows, got %d", len(records))
	}

	buf.Reset()
	if err := CsvResult(&buf, sampleResult(true)); err != nil {
		t.Fatalf("CsvResult() error = %v", err)
	}
	records, err = csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 26 {
		t.Fatalf("expected header plus 25 months, got %d rows", len(records))
	}
	if strings.Join(records[0], ",") != "month,p10,p25,p50,p75,p90" {
		t.Errorf("unexpected header %v", records[0])
	}
	if records[1][3] != "1234567.50" {
		t.Errorf("expected unformatted p50 in CSV, got %s", records[1][3])
	}
}

func TestPrettyRecommendations(t *testing.T) {
	var buf bytes.Buffer
	PrettyRecommendations(&buf, sampleRanking())
	output := buf.String()

	expected := []string{
		"--- Adjustments for goal house (run run-1) ---",
		"Baseline probability: 55.0% over 500 iterations (seed 42)",
		"+8.2 pts",
		"moderate",
		"₹1,300.00",
		"Invest via ELSS under section 80C",
		"note: dropped 1 candidate",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyRecommendations missing %q in:\n%s", want, output)
		}
	}
	if strings.Index(output, "Increase monthly") > strings.Index(output, "Invest via ELSS") {
		t.Errorf("PrettyRecommendations should keep ranking order")
	}
}

func TestCsvRecommendations(t *testing.T) {
	var buf bytes.Buffer
	if err := CsvRecommendations(&buf, sampleRanking()); err != nil {
		t.Fatalf("CsvRecommendations() error = %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[1][2] != "Increase monthly contribution by 25% to ₹6,300.00" {
		t.Errorf("description with commas should survive quoting, got %q", records[1][2])
	}
	if records[1][11] != "" || records[2][11] != "80C" || records[2][12] != "18720.00" {
		t.Errorf("unexpected tax columns %v / %v", records[1], records[2])
	}
}

func TestWriteDispatch(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{constants.OutputFormatPretty, "--- Results for goal g ---"},
		{constants.OutputFormatCSV, "metric,value"},
		{constants.OutputFormatJSON, `"success_probability": 62.4`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteResult(&buf, tt.format, "g", sampleResult(false)); err != nil {
				t.Fatalf("WriteResult() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("WriteResult(%s) missing %q in:\n%s", tt.format, tt.want, buf.String())
			}
		})
	}

	var buf bytes.Buffer
	if err := WriteRecommendations(&buf, constants.OutputFormatJSON, sampleRanking()); err != nil {
		t.Fatalf("WriteRecommendations() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"run_id": "run-1"`) {
		t.Errorf("JSON recommendations missing run id:\n%s", buf.String())
	}
	buf.Reset()
	if err := WriteRecommendations(&buf, constants.OutputFormatCSV, sampleRanking()); err != nil {
		t.Fatalf("WriteRecommendations() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "rank,type,description") {
		t.Errorf("CSV recommendations missing header")
	}
}
