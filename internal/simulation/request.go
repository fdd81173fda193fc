package simulation

import (
	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/batch"
	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/projector"
	"github.com/iwvelando/goal-probability/internal/sampler"
	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/datetime"
)

// Request is a fully resolved simulation input.
type Request struct {
	Goal             goal.Goal               `json:"goal"`
	Parameters       map[string]params.Value `json:"parameters"`
	Risk             goal.RiskProfile        `json:"risk"`
	Allocation       goal.Allocation         `json:"allocation"`
	Assets           []sampler.AssetParams   `json:"assets"`
	Iterations       int                     `json:"iterations"`
	Seed             int64                   `json:"seed"`
	AsOf             string                  `json:"as_of"`
	HorizonMonths    int                     `json:"horizon_months"`
	FatTails         bool                    `json:"fat_tails"`
	DegreesOfFreedom int                     `json:"degrees_of_freedom,omitempty"`
	DropPaths        bool                    `json:"drop_paths"`
	Thresholds       analyzer.Thresholds     `json:"thresholds"`
}

// fingerprintInput is the part of a Request that can change its result. Goal
// labels, the category and the evaluation date (beyond the horizon it implies)
// are left out, as are parameters that resolved to no asset row.
type fingerprintInput struct {
	CurrentAmount    float64               `json:"current_amount"`
	TargetAmount     float64               `json:"target_amount"`
	SuccessThreshold float64               `json:"success_threshold"`
	Contributions    projector.Schedule    `json:"contributions"`
	Allocation       goal.Allocation       `json:"allocation"`
	GlidePath        *goal.GlidePath       `json:"glide_path,omitempty"`
	Assets           []sampler.AssetParams `json:"assets"`
	Iterations       int                   `json:"iterations"`
	Seed             int64                 `json:"seed"`
	HorizonMonths    int                   `json:"horizon_months"`
	FatTails         bool                  `json:"fat_tails"`
	DegreesOfFreedom int                   `json:"degrees_of_freedom,omitempty"`
	DropPaths        bool                  `json:"drop_paths"`
	Thresholds       analyzer.Thresholds   `json:"thresholds"`
}

// Resolve validates the inputs and builds the Request the engine would run.
// The allocation comes from the goal, or else from the parameter set's model
// for the goal's risk profile.
func (e *Engine) Resolve(g goal.Goal, p params.Set, iterations int, seed int64) (*Request, error) {
	if iterations <= 0 {
		return nil, simerr.Configf("simulation_iterations", "must be positive, got %d", iterations)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	g = g.Clone()
	risk := g.RiskProfile.OrDefault()
	alloc := g.Allocation
	if len(alloc) == 0 {
		model, ok := p.DefaultAllocation(risk)
		if !ok {
			return nil, simerr.Configf("allocation", "goal has no allocation and no %s model is configured for risk %q", params.PrefixAllocation, risk)
		}
		if err := model.Validate(); err != nil {
			return nil, err
		}
		alloc = model
	}

	assetNames := alloc.AssetClasses()
	if g.GlidePath != nil {
		assetNames = goal.Allocation(mergeKeys(alloc, g.GlidePath.Target)).AssetClasses()
	}
	assets := make([]sampler.AssetParams, 0, len(assetNames))
	for _, name := range assetNames {
		row, ok, err := p.AssetReturn(name, risk)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, simerr.Configf(params.PrefixAssetReturns+"."+name, "no return parameters for asset class")
		}
		assets = append(assets, sampler.AssetParams{Name: name, ExpectedReturn: row.ExpectedReturn, Volatility: row.Volatility})
	}

	asOf := datetime.MonthStart(e.opts.Now())
	req := &Request{
		Goal:          g,
		Parameters:    p.Entries(),
		Risk:          risk,
		Allocation:    alloc,
		Assets:        assets,
		Iterations:    iterations,
		Seed:          seed,
		AsOf:          asOf.Format(constants.DateTimeLayout),
		HorizonMonths: g.HorizonMonths(asOf),
		FatTails:      e.opts.FatTails,
		DropPaths:     e.opts.DropPaths,
		Thresholds:    e.opts.Thresholds,
	}
	if req.FatTails {
		req.DegreesOfFreedom = e.opts.DegreesOfFreedom
	}
	return req, nil
}

// Fingerprint returns the request's cache key, prefixed by goal so all of a
// goal's results can be invalidated together. Requests that differ only in
// fields that cannot change the result share a key.
func (r *Request) Fingerprint() (string, error) {
	return cache.Fingerprint(cache.GoalPrefix(r.Goal.ID), fingerprintInput{
		CurrentAmount:    r.Goal.CurrentAmount,
		TargetAmount:     r.Goal.TargetAmount,
		SuccessThreshold: r.Goal.Threshold(),
		Contributions:    projector.NewSchedule(r.Goal),
		Allocation:       r.Allocation,
		GlidePath:        r.Goal.GlidePath,
		Assets:           r.Assets,
		Iterations:       r.Iterations,
		Seed:             r.Seed,
		HorizonMonths:    r.HorizonMonths,
		FatTails:         r.FatTails,
		DegreesOfFreedom: r.DegreesOfFreedom,
		DropPaths:        r.DropPaths,
		Thresholds:       r.Thresholds,
	})
}

// Plan returns the projection plan for the request.
func (r *Request) Plan() projector.Plan {
	names := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		names[i] = a.Name
	}
	return projector.Plan{
		StartingCapital: r.Goal.CurrentAmount,
		Contributions:   projector.NewSchedule(r.Goal),
		Assets:          names,
		Allocation:      r.Allocation,
		Glide:           r.Goal.GlidePath,
		Periods:         r.HorizonMonths,
	}
}

// Job returns the batch job for the request.
func (r *Request) Job() batch.Job {
	return batch.Job{
		Plan:       r.Plan(),
		Assets:     r.Assets,
		Iterations: r.Iterations,
		Seed:       r.Seed,
		KeepSeries: !r.DropPaths,
	}
}

// ExpectedFinal is the deterministic projection of the request with every
// asset earning its expected return.
func (r *Request) ExpectedFinal() (float64, error) {
	return projector.ExpectedFinal(r.Plan(), r.Assets)
}

// ExpectedReturn is the allocation-weighted expected annual return.
func (r *Request) ExpectedReturn() float64 {
	total := 0.0
	for _, a := range r.Assets {
		total += r.Allocation[a.Name] * a.ExpectedReturn
	}
	return total
}

func mergeKeys(a, b goal.Allocation) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k := range a {
		out[k] = 0
	}
	for k := range b {
		out[k] = 0
	}
	return out
}
