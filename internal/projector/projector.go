// Package projector turns a sampled return sequence into one simulated wealth
// trajectory for a goal's contribution plan and allocation.
package projector

import (
	"fmt"
	"math"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/sampler"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
)

// Schedule describes the contribution paid at the end of each month.
type Schedule struct {
	Monthly      float64
	AnnualGrowth float64
	LumpSums     map[int]float64
}

// NewSchedule builds a Schedule from a goal's contribution fields.
func NewSchedule(g goal.Goal) Schedule {
	s := Schedule{Monthly: g.MonthlyContribution, AnnualGrowth: g.ContributionGrowth}
	if len(g.Scheduled) > 0 {
		s.LumpSums = make(map[int]float64, len(g.Scheduled))
		for _, c := range g.Scheduled {
			s.LumpSums[c.Month] += c.Amount
		}
	}
	return s
}

// At returns the contribution for month (1-based). The level contribution
// steps up by AnnualGrowth at the start of each plan year.
func (s Schedule) At(month int) float64 {
	amount := s.Monthly
	if s.AnnualGrowth != 0 && month > constants.MonthsPerYear {
		year := (month - 1) / constants.MonthsPerYear
		amount *= math.Pow(1+s.AnnualGrowth, float64(year))
	}
	return amount + s.LumpSums[month]
}

// Plan is everything except the random returns needed to project a trajectory.
type Plan struct {
	StartingCapital float64
	Contributions   Schedule
	Assets          []string
	Allocation      goal.Allocation
	Glide           *goal.GlidePath
	Periods         int
}

// Trajectory is one simulated wealth path. Series, when kept, holds Periods+1
// values starting with the starting capital.
type Trajectory struct {
	Final  float64
	Series []float64
}

// Weights returns the allocation weights for month (1-based), ordered like
// plan.Assets. With a glide path the weights move linearly from Allocation to
// Glide.Target over Glide.Years and stay at the target afterwards.
func (plan Plan) Weights(month int) []float64 {
	w := make([]float64, len(plan.Assets))
	frac := 0.0
	if plan.Glide != nil && plan.Glide.Years > 0 {
		frac = float64(month-1) / float64(plan.Glide.Years*constants.MonthsPerYear)
		if frac > 1 {
			frac = 1
		}
	}
	for i, asset := range plan.Assets {
		current := plan.Allocation[asset]
		if frac > 0 {
			w[i] = mathutil.Lerp(current, plan.Glide.Target[asset], frac)
		} else {
			w[i] = current
		}
	}
	return w
}

// Validate checks that the plan can be projected.
func (plan Plan) Validate() error {
	if plan.Periods < 1 {
		return fmt.Errorf("plan needs at least one period, got %d", plan.Periods)
	}
	if len(plan.Assets) == 0 {
		return fmt.Errorf("plan has no asset classes")
	}
	return nil
}

// Project applies each period's blended return to the running capital and then
// adds that period's contribution. Capital never goes below zero.
func Project(plan Plan, returns sampler.Returns, keepSeries bool) (Trajectory, error) {
	if err := plan.Validate(); err != nil {
		return Trajectory{}, err
	}
	if len(returns) < plan.Periods {
		return Trajectory{}, fmt.Errorf("need %d periods of returns, got %d", plan.Periods, len(returns))
	}

	var series []float64
	if keepSeries {
		series = make([]float64, 0, plan.Periods+1)
		series = append(series, plan.StartingCapital)
	}

	static := plan.Glide == nil
	weights := plan.Weights(1)
	capital := plan.StartingCapital
	for month := 1; month <= plan.Periods; month++ {
		if !static {
			weights = plan.Weights(month)
		}
		row := returns[month-1]
		if len(row) != len(weights) {
			return Trajectory{}, fmt.Errorf("period %d has %d returns for %d assets", month, len(row), len(weights))
		}
		blended := 0.0
		for i, w := range weights {
			blended += w * row[i]
		}
		capital = capital*(1+blended) + plan.Contributions.At(month)
		if capital < 0 || math.IsNaN(capital) {
			capital = 0
		}
		if keepSeries {
			series = append(series, capital)
		}
	}
	return Trajectory{Final: capital, Series: series}, nil
}

// ExpectedFinal projects the plan deterministically, every asset earning its
// expected monthly return. It is used for financial impact estimates.
func ExpectedFinal(plan Plan, assets []sampler.AssetParams) (float64, error) {
	if len(assets) != len(plan.Assets) {
		return 0, fmt.Errorf("need parameters for %d assets, got %d", len(plan.Assets), len(assets))
	}
	row := make([]float64, len(assets))
	for i, a := range assets {
		row[i] = mathutil.MonthlyRate(a.ExpectedReturn)
	}
	returns := make(sampler.Returns, plan.Periods)
	for p := range returns {
		returns[p] = row
	}
	traj, err := Project(plan, returns, false)
	if err != nil {
		return 0, err
	}
	return traj.Final, nil
}
