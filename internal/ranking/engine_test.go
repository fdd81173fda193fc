package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testIterations = 300

func fixedNow() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }

func newSimulator() *simulation.Engine {
	return simulation.NewEngine(zap.NewNop(), cache.New(zap.NewNop(), cache.Options{}), simulation.Options{Now: fixedNow})
}

func stretchGoal() goal.Goal {
	return goal.Goal{
		ID:                  "retire-1",
		Category:            goal.CategoryRetirement,
		CurrentAmount:       100000,
		TargetAmount:        3000000,
		MonthlyContribution: 5000,
		TargetDate:          time.Date(2035, 1, 1, 0, 0, 0, 0, time.UTC),
		Allocation:          goal.Allocation{"equity": 0.6, "debt": 0.4},
		Flexibility:         goal.FlexibilitySomewhat,
	}
}

func oldRegimeProfile() goal.Profile {
	return goal.Profile{Age: 35, AnnualIncome: 1800000, RiskProfile: goal.RiskModerate, TaxRegime: goal.TaxRegimeOld}
}

func baselineFor(t *testing.T, sim *simulation.Engine, g goal.Goal) *analyzer.Result {
	t.Helper()
	res, err := sim.Evaluate(context.Background(), g, params.Defaults(), testIterations, 42)
	require.NoError(t, err)
	return res
}

func TestRankOrdersByPriorityAgainstOneBaseline(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	baseline := baselineFor(t, sim, g)

	engine := NewEngine(zap.NewNop(), sim, Config{})
	res, err := engine.Run(context.Background(), g, oldRegimeProfile(), params.Defaults(), baseline)
	require.NoError(t, err)

	recs := res.Recommendations
	require.NotEmpty(t, recs)
	assert.Equal(t, len(recs), res.Summary.Evaluated)
	assert.Equal(t, 0, res.Summary.Dropped)
	assert.NotEmpty(t, res.Summary.RunID)
	assert.Equal(t, testIterations, res.Summary.Iterations)

	seen := map[AdjustmentType]bool{}
	for i, r := range recs {
		seen[r.Candidate.Type] = true
		assert.Equal(t, baseline.SuccessProbability, r.BaselineProbability)
		assert.InDelta(t, r.NewProbability-baseline.SuccessProbability, r.ProbabilityIncrease, 1e-12)
		assert.GreaterOrEqual(t, r.PriorityScore, 0.0)
		assert.LessOrEqual(t, r.PriorityScore, 1.0)
		for _, s := range []float64{r.Scores.Impact, r.Scores.Ease, r.Scores.Burden, r.Scores.Tax} {
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].PriorityScore, r.PriorityScore)
		}
		switch r.Candidate.Type {
		case AdjustContribution, AdjustTarget, AdjustTimeframe, AdjustTax:
			assert.Greater(t, r.ProbabilityIncrease, 0.0, r.Candidate.Description)
		}
	}
	for _, typ := range []AdjustmentType{AdjustContribution, AdjustTimeframe, AdjustTarget, AdjustAllocation, AdjustTax} {
		assert.True(t, seen[typ], "missing %s candidates", typ)
	}

	// The caller's goal is never modified.
	assert.Equal(t, stretchGoal(), g)
}

func TestRankComputesBaselineWhenMissing(t *testing.T) {
	sim := newSimulator()
	engine := NewEngine(zap.NewNop(), sim, Config{Iterations: testIterations, Seed: 7})
	recs, err := engine.Rank(context.Background(), stretchGoal(), goal.Profile{}, params.Defaults(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, recs)

	expected, err := sim.Evaluate(context.Background(), stretchGoal(), params.Defaults(), testIterations, 7)
	require.NoError(t, err)
	assert.Equal(t, expected.SuccessProbability, recs[0].BaselineProbability)
}

func TestRankFinancialImpact(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	engine := NewEngine(zap.NewNop(), sim, Config{})
	recs, err := engine.Rank(context.Background(), g, oldRegimeProfile(), params.Defaults(), baselineFor(t, sim, g))
	require.NoError(t, err)

	for _, r := range recs {
		fi := r.FinancialImpact
		switch r.Candidate.Type {
		case AdjustContribution:
			assert.Greater(t, fi.MonthlyChange, 0.0)
			assert.InDelta(t, fi.MonthlyChange*12, fi.AnnualChange, 0.01)
			assert.InDelta(t, fi.MonthlyChange*120, fi.TotalContributionChange, 0.5)
			assert.Greater(t, fi.ProjectedCorpusChange, 0.0)
		case AdjustTimeframe:
			assert.Equal(t, int(r.Candidate.Magnitude), fi.TimeframeChangeMonths)
			assert.Greater(t, fi.TotalContributionChange, 0.0)
		case AdjustTarget:
			assert.Less(t, fi.TargetChange, 0.0)
			assert.Greater(t, fi.Burden(), 0.0)
		case AdjustAllocation:
			assert.Equal(t, 0.0, fi.MonthlyChange)
			assert.Greater(t, fi.ExpectedReturnChange, 0.0)
		case AdjustTax:
			require.NotNil(t, r.TaxImpact)
			assert.True(t, r.TaxImpact.Eligible)
			assert.Equal(t, 0.0, fi.OutOfPocketChange)
			assert.InDelta(t, r.TaxImpact.AnnualSavings/12, fi.MonthlyChange, 0.01)
		}
	}
}

type flakySimulator struct {
	*simulation.Engine
	failTarget float64
}

func (f flakySimulator) Evaluate(ctx context.Context, g goal.Goal, p params.Set, iterations int, seed int64) (*analyzer.Result, error) {
	if g.TargetAmount == f.failTarget {
		return nil, errors.New("engine unavailable")
	}
	return f.Engine.Evaluate(ctx, g, p, iterations, seed)
}

func TestRankDropsFailedCandidates(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	baseline := baselineFor(t, sim, g)

	flaky := flakySimulator{Engine: sim, failTarget: 2700000}
	engine := NewEngine(zap.NewNop(), flaky, Config{})
	res, err := engine.Run(context.Background(), g, goal.Profile{}, params.Defaults(), baseline)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.Dropped)
	require.Len(t, res.Summary.Notes, 1)
	assert.Contains(t, res.Summary.Notes[0], "engine unavailable")
	for _, r := range res.Recommendations {
		assert.NotEqual(t, 2700000.0, r.Candidate.Goal.TargetAmount)
	}
}

func TestRankHonoursMaxCandidates(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	engine := NewEngine(zap.NewNop(), sim, Config{MaxCandidates: 4, Concurrency: 2})
	res, err := engine.Run(context.Background(), g, oldRegimeProfile(), params.Defaults(), baselineFor(t, sim, g))
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 4)
	assert.Greater(t, res.Summary.Generated, 4)
	assert.NotEmpty(t, res.Summary.Notes)
}

func TestRankCancelledContext(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	baseline := baselineFor(t, sim, g)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(zap.NewNop(), sim, Config{}).Rank(ctx, g, goal.Profile{}, params.Defaults(), baseline)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRankRejectsInvalidGoal(t *testing.T) {
	sim := newSimulator()
	g := stretchGoal()
	baseline := baselineFor(t, sim, g)
	g.TargetAmount = -5

	_, err := NewEngine(zap.NewNop(), sim, Config{}).Rank(context.Background(), g, goal.Profile{}, params.Defaults(), baseline)
	assert.Error(t, err)
}

func TestScoreAndSort(t *testing.T) {
	recs := []Recommendation{
		{
			Candidate:           Candidate{Type: AdjustTarget, Description: "b"},
			ProbabilityIncrease: 10,
			Difficulty:          DifficultyEasy,
			FinancialImpact:     FinancialImpact{TargetChange: -100},
		},
		{
			Candidate:           Candidate{Type: AdjustContribution, Description: "a"},
			ProbabilityIncrease: 20,
			Difficulty:          DifficultyDifficult,
			FinancialImpact:     FinancialImpact{OutOfPocketChange: 400},
		},
		{
			Candidate:           Candidate{Type: AdjustTax, Description: "c"},
			ProbabilityIncrease: 5,
			Difficulty:          DifficultyEasy,
			TaxImpact:           &TaxImpact{AnnualSavings: 1000},
		},
		{
			Candidate:           Candidate{Type: AdjustAllocation, Description: "d"},
			ProbabilityIncrease: -3,
			Difficulty:          DifficultyModerate,
		},
	}
	Score(recs, DefaultWeights())

	assert.InDelta(t, 0.4*0.5+0.3*1+0.2*0.75, recs[0].PriorityScore, 1e-12)
	assert.InDelta(t, 0.4*1+0.3*0.2+0.2*0, recs[1].PriorityScore, 1e-12)
	assert.InDelta(t, 0.4*0.25+0.3*1+0.2*1+0.1*1, recs[2].PriorityScore, 1e-12)
	assert.InDelta(t, 0.3*0.6+0.2*1, recs[3].PriorityScore, 1e-12)
	assert.Equal(t, 0.0, recs[3].Scores.Impact)

	Sort(recs)
	got := make([]string, len(recs))
	for i, r := range recs {
		got[i] = r.Candidate.Description
	}
	assert.Equal(t, []string{"c", "b", "a", "d"}, got)
}

func TestSortTieBreakers(t *testing.T) {
	recs := []Recommendation{
		{Candidate: Candidate{Type: AdjustTax, Description: "x"}, PriorityScore: 0.5, ProbabilityIncrease: 1},
		{Candidate: Candidate{Type: AdjustContribution, Description: "z"}, PriorityScore: 0.5, ProbabilityIncrease: 1},
		{Candidate: Candidate{Type: AdjustContribution, Description: "y"}, PriorityScore: 0.5, ProbabilityIncrease: 1},
		{Candidate: Candidate{Type: AdjustTarget, Description: "w"}, PriorityScore: 0.5, ProbabilityIncrease: 2},
	}
	Sort(recs)
	got := make([]string, len(recs))
	for i, r := range recs {
		got[i] = r.Candidate.Description
	}
	assert.Equal(t, []string{"w", "y", "z", "x"}, got)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Impact: 0.5, Ease: 0.5, Burden: 0.5}.Validate())
	assert.Error(t, Weights{Impact: 1.2, Ease: -0.2}.Validate())
}

func TestDifficulty(t *testing.T) {
	base := stretchGoal()
	tests := []struct {
		name      string
		candidate Candidate
		goal      goal.Goal
		expected  Difficulty
	}{
		{"small contribution increase", Candidate{Type: AdjustContribution, Magnitude: 0.10}, base, DifficultyEasy},
		{"quarter contribution increase", Candidate{Type: AdjustContribution, Magnitude: 0.25}, base, DifficultyModerate},
		{"doubling contribution", Candidate{Type: AdjustContribution, Magnitude: 1.0}, base, DifficultyDifficult},
		{"one year later", Candidate{Type: AdjustTimeframe, Magnitude: 12}, base, DifficultyEasy},
		{"three years later", Candidate{Type: AdjustTimeframe, Magnitude: 36}, base, DifficultyDifficult},
		{"emergency fund one year later", Candidate{Type: AdjustTimeframe, Magnitude: 12}, goal.Goal{Category: goal.CategoryEmergencyFund}, DifficultyModerate},
		{"ten percent target cut", Candidate{Type: AdjustTarget, Magnitude: 0.10}, base, DifficultyModerate},
		{"very flexible target cut", Candidate{Type: AdjustTarget, Magnitude: 0.15}, goal.Goal{Flexibility: goal.FlexibilityVery}, DifficultyModerate},
		{"equity down ten", Candidate{Type: AdjustAllocation, Magnitude: -0.10}, base, DifficultyEasy},
		{"equity up twenty", Candidate{Type: AdjustAllocation, Magnitude: 0.20}, base, DifficultyModerate},
		{"nps", Candidate{Type: AdjustTax, Tax: &TaxImpact{Section: "80CCD(1B)"}}, base, DifficultyModerate},
		{"elss", Candidate{Type: AdjustTax, Tax: &TaxImpact{Section: "80C"}}, base, DifficultyEasy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, difficultyOf(tt.candidate, tt.goal))
		})
	}
}
