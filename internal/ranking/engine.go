// Package ranking generates candidate adjustments to a goal, re-evaluates each
// through the simulation engine and orders them by a weighted priority score.
package ranking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/projector"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
	"github.com/iwvelando/goal-probability/pkg/optimization"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Simulator is the part of the simulation engine the ranking engine needs.
type Simulator interface {
	simulation.Evaluator
	Resolve(g goal.Goal, p params.Set, iterations int, seed int64) (*simulation.Request, error)
}

// Weights are the priority score coefficients.
type Weights struct {
	Impact float64 `mapstructure:"impact" json:"impact"`
	Ease   float64 `mapstructure:"ease" json:"ease"`
	Burden float64 `mapstructure:"burden" json:"burden"`
	Tax    float64 `mapstructure:"tax" json:"tax"`
}

// DefaultWeights returns 0.4 impact, 0.3 ease, 0.2 burden and 0.1 tax.
func DefaultWeights() Weights {
	return Weights{Impact: 0.4, Ease: 0.3, Burden: 0.2, Tax: 0.1}
}

// Validate checks that weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	if w.Impact < 0 || w.Ease < 0 || w.Burden < 0 || w.Tax < 0 {
		return fmt.Errorf("ranking weights must not be negative")
	}
	if sum := w.Impact + w.Ease + w.Burden + w.Tax; !mathutil.WithinTolerance(sum, 1, constants.WeightTolerance) {
		return fmt.Errorf("ranking weights must sum to 1, got %.3f", sum)
	}
	return nil
}

// Config controls a ranking Engine.
type Config struct {
	MaxCandidates int
	Concurrency   int
	Weights       Weights
	// Iterations and Seed are used when no baseline result is supplied.
	Iterations int
	Seed       int64
}

// Engine ranks adjustments. It is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
	sim    Simulator
	cfg    Config
}

// NewEngine creates an Engine, filling unset config fields with defaults.
func NewEngine(logger *zap.Logger, sim Simulator, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = constants.DefaultMaxCandidates
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = constants.DefaultRankingConcurrency
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = constants.DefaultIterations
	}
	if cfg.Seed == 0 {
		cfg.Seed = constants.DefaultSeed
	}
	return &Engine{logger: logger, sim: sim, cfg: cfg}
}

// Rank returns the recommendations for g sorted by non-increasing priority.
func (e *Engine) Rank(ctx context.Context, g goal.Goal, profile goal.Profile, p params.Set, baseline *analyzer.Result) ([]Recommendation, error) {
	res, err := e.Run(ctx, g, profile, p, baseline)
	if err != nil {
		return nil, err
	}
	return res.Recommendations, nil
}

type evaluated struct {
	candidate Candidate
	request   *simulation.Request
	result    *analyzer.Result
	err       error
}

// Run is Rank plus the run summary. Every candidate is evaluated with the
// baseline's iteration count and seed, so probability increases are measured
// against the same baseline. When baseline is nil it is computed first.
// Candidates that fail to evaluate are dropped and noted in the summary.
func (e *Engine) Run(ctx context.Context, g goal.Goal, profile goal.Profile, p params.Set, baseline *analyzer.Result) (*Result, error) {
	runID := uuid.New().String()
	logger := e.logger.With(zap.String("op", "ranking.Rank"), zap.String("run", runID), zap.String("goal", g.ID))
	start := time.Now()

	if baseline == nil {
		var err error
		baseline, err = e.sim.Evaluate(ctx, g, p, e.cfg.Iterations, e.cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("baseline evaluation failed: %w", err)
		}
	}
	iterations, seed := baseline.Iterations, baseline.Seed

	baseReq, err := e.sim.Resolve(g, p, iterations, seed)
	if err != nil {
		return nil, err
	}
	baseExpected, err := baseReq.ExpectedFinal()
	if err != nil {
		return nil, fmt.Errorf("baseline projection failed: %w", err)
	}

	candidates := Catalogue(baseReq, profile)
	summary := optimization.Summary{
		RunID:               runID,
		GoalID:              g.ID,
		BaselineProbability: baseline.SuccessProbability,
		Iterations:          iterations,
		Seed:                seed,
		Generated:           len(candidates),
	}
	if len(candidates) > e.cfg.MaxCandidates {
		summary.AddNote(fmt.Sprintf("catalogue truncated from %d to %d candidates", len(candidates), e.cfg.MaxCandidates))
		candidates = candidates[:e.cfg.MaxCandidates]
	}

	evals := make([]evaluated, len(candidates))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Concurrency)
	for i, c := range candidates {
		i, c := i, c
		group.Go(func() error {
			evals[i] = e.evaluate(gctx, c, p, iterations, seed)
			return nil
		})
	}
	_ = group.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	recs := make([]Recommendation, 0, len(evals))
	for _, ev := range evals {
		if ev.err != nil {
			summary.Dropped++
			summary.AddNote(fmt.Sprintf("dropped %q: %v", ev.candidate.Description, ev.err))
			logger.Warn("dropping candidate", zap.String("type", string(ev.candidate.Type)), zap.String("candidate", ev.candidate.Description), zap.Error(ev.err))
			continue
		}
		rec, err := e.recommend(ev, baseline, baseReq, baseExpected)
		if err != nil {
			summary.Dropped++
			summary.AddNote(fmt.Sprintf("dropped %q: %v", ev.candidate.Description, err))
			logger.Warn("dropping candidate", zap.String("type", string(ev.candidate.Type)), zap.String("candidate", ev.candidate.Description), zap.Error(err))
			continue
		}
		recs = append(recs, rec)
	}
	summary.Evaluated = len(recs)

	Score(recs, e.cfg.Weights)
	Sort(recs)

	logger.Info("ranked adjustments",
		zap.Int("generated", summary.Generated),
		zap.Int("evaluated", summary.Evaluated),
		zap.Int("dropped", summary.Dropped),
		zap.Float64("baseline", baseline.SuccessProbability),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Summary: summary, Recommendations: recs}, nil
}

func (e *Engine) evaluate(ctx context.Context, c Candidate, p params.Set, iterations int, seed int64) evaluated {
	ev := evaluated{candidate: c}
	if err := ctx.Err(); err != nil {
		ev.err = err
		return ev
	}
	ev.request, ev.err = e.sim.Resolve(c.Goal, p, iterations, seed)
	if ev.err != nil {
		return ev
	}
	ev.result, ev.err = e.sim.Evaluate(ctx, c.Goal, p, iterations, seed)
	return ev
}

func (e *Engine) recommend(ev evaluated, baseline *analyzer.Result, baseReq *simulation.Request, baseExpected float64) (Recommendation, error) {
	newProb := ev.result.SuccessProbability
	if !mathutil.IsFinite(newProb) {
		return Recommendation{}, fmt.Errorf("probability is not a number")
	}
	impact, err := financialImpact(baseReq, ev.request, baseExpected, ev.candidate.Tax)
	if err != nil {
		return Recommendation{}, err
	}
	rec := Recommendation{
		Candidate:           ev.candidate,
		BaselineProbability: baseline.SuccessProbability,
		NewProbability:      newProb,
		ProbabilityIncrease: newProb - baseline.SuccessProbability,
		FinancialImpact:     impact,
		TaxImpact:           ev.candidate.Tax,
		Difficulty:          difficultyOf(ev.candidate, baseReq.Goal),
	}
	return rec, nil
}

func financialImpact(base, next *simulation.Request, baseExpected float64, tax *TaxImpact) (FinancialImpact, error) {
	expected, err := next.ExpectedFinal()
	if err != nil {
		return FinancialImpact{}, err
	}
	monthly := next.Goal.MonthlyContribution - base.Goal.MonthlyContribution
	total := totalContributions(next.Plan()) - totalContributions(base.Plan())
	outOfPocket := total
	if tax != nil {
		// Reinvested tax savings are not paid by the user.
		outOfPocket = 0
	}
	return FinancialImpact{
		MonthlyChange:           mathutil.Round(monthly),
		AnnualChange:            mathutil.Round(monthly * constants.MonthsPerYear),
		TotalContributionChange: mathutil.Round(total),
		OutOfPocketChange:       mathutil.Round(outOfPocket),
		ProjectedCorpusChange:   mathutil.Round(expected - baseExpected),
		ExpectedReturnChange:    next.ExpectedReturn() - base.ExpectedReturn(),
		TimeframeChangeMonths:   next.HorizonMonths - base.HorizonMonths,
		TargetChange:            mathutil.Round(next.Goal.TargetAmount - base.Goal.TargetAmount),
	}, nil
}

func totalContributions(plan projector.Plan) float64 {
	total := 0.0
	for m := 1; m <= plan.Periods; m++ {
		total += plan.Contributions.At(m)
	}
	return total
}

// difficultyOf grades the size of the change relative to the goal.
func difficultyOf(c Candidate, base goal.Goal) Difficulty {
	var d Difficulty
	switch c.Type {
	case AdjustContribution:
		d = byThreshold(c.Magnitude, 0.20, 0.50)
	case AdjustTimeframe:
		d = byThreshold(c.Magnitude, 12, 24)
		if base.Category == goal.CategoryEmergencyFund || base.Flexibility == goal.FlexibilityFixed {
			d = d.harder()
		}
	case AdjustTarget:
		d = byThreshold(c.Magnitude, 0.05, 0.10)
		if base.Flexibility == goal.FlexibilityVery {
			d = d.easier()
		}
	case AdjustAllocation:
		d = byThreshold(math.Abs(c.Magnitude), 0.10, 0.20)
	case AdjustTax:
		d = DifficultyEasy
		if c.Tax != nil && c.Tax.Section == section80CCD1B.Code {
			d = DifficultyModerate
		}
	default:
		d = DifficultyModerate
	}
	return d
}

func byThreshold(v, easy, moderate float64) Difficulty {
	switch {
	case v <= easy+1e-9:
		return DifficultyEasy
	case v <= moderate+1e-9:
		return DifficultyModerate
	default:
		return DifficultyDifficult
	}
}

// Score fills sub-scores and priority scores. Probability impact, burden and
// tax savings are normalized by their maximum across recs, so each sub-score
// lies in [0, 1].
func Score(recs []Recommendation, w Weights) {
	maxIncrease, maxBurden, maxSavings := 0.0, 0.0, 0.0
	for _, r := range recs {
		maxIncrease = math.Max(maxIncrease, r.ProbabilityIncrease)
		maxBurden = math.Max(maxBurden, r.FinancialImpact.Burden())
		if r.TaxImpact != nil {
			maxSavings = math.Max(maxSavings, r.TaxImpact.AnnualSavings)
		}
	}
	for i := range recs {
		r := &recs[i]
		s := Scores{Ease: r.Difficulty.Ease()}
		if maxIncrease > 0 && r.ProbabilityIncrease > 0 {
			s.Impact = r.ProbabilityIncrease / maxIncrease
		}
		if maxBurden > 0 {
			s.Burden = r.FinancialImpact.Burden() / maxBurden
		}
		if maxSavings > 0 && r.TaxImpact != nil && r.TaxImpact.AnnualSavings > 0 {
			s.Tax = r.TaxImpact.AnnualSavings / maxSavings
		}
		r.Scores = s
		r.PriorityScore = w.Impact*s.Impact + w.Ease*s.Ease + w.Burden*(1-s.Burden) + w.Tax*s.Tax
	}
}

// Sort orders recs by priority score, then probability increase, then
// adjustment type and description.
func Sort(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.ProbabilityIncrease != b.ProbabilityIncrease {
			return a.ProbabilityIncrease > b.ProbabilityIncrease
		}
		if typeOrder[a.Candidate.Type] != typeOrder[b.Candidate.Type] {
			return typeOrder[a.Candidate.Type] < typeOrder[b.Candidate.Type]
		}
		return a.Candidate.Description < b.Candidate.Description
	})
}
