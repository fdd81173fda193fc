// Package analyzer reduces a batch of simulated trajectories into success
// probabilities, percentile paths and risk metrics.
package analyzer

import (
	"sort"
	"time"

	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
	"gonum.org/v1/gonum/stat"
)

// PercentileRanks are the reported percentiles, in ascending order.
var PercentileRanks = []float64{0.10, 0.25, 0.50, 0.75, 0.90}

// Percentiles holds one value per reported percentile.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Values returns the percentiles in ascending rank order.
func (p Percentiles) Values() []float64 {
	return []float64{p.P10, p.P25, p.P50, p.P75, p.P90}
}

// PercentilePaths holds a percentile value at every time point (month 0..N).
type PercentilePaths struct {
	P10 []float64 `json:"p10"`
	P25 []float64 `json:"p25"`
	P50 []float64 `json:"p50"`
	P75 []float64 `json:"p75"`
	P90 []float64 `json:"p90"`
}

// Len returns the number of time points.
func (p PercentilePaths) Len() int {
	return len(p.P50)
}

// At returns the five percentiles at time point i.
func (p PercentilePaths) At(i int) Percentiles {
	return Percentiles{P10: p.P10[i], P25: p.P25[i], P50: p.P50[i], P75: p.P75[i], P90: p.P90[i]}
}

func (p PercentilePaths) clone() PercentilePaths {
	cp := func(s []float64) []float64 {
		if s == nil {
			return nil
		}
		return append([]float64(nil), s...)
	}
	return PercentilePaths{P10: cp(p.P10), P25: cp(p.P25), P50: cp(p.P50), P75: cp(p.P75), P90: cp(p.P90)}
}

// Result is the immutable outcome of one simulation request.
type Result struct {
	Fingerprint               string          `json:"fingerprint,omitempty"`
	SuccessProbability        float64         `json:"success_probability"`
	PartialSuccessProbability float64         `json:"probability_partial_success"`
	RawSuccessRate            float64         `json:"raw_success_rate"`
	TargetAmount              float64         `json:"target_amount"`
	Percentiles               Percentiles     `json:"percentiles"`
	PercentilePaths           PercentilePaths `json:"percentile_paths"`
	MeanFinal                 float64         `json:"mean_final"`
	MedianFinal               float64         `json:"median_final"`
	Volatility                float64         `json:"volatility"`
	MaxDrawdown               *float64        `json:"max_drawdown,omitempty"`
	Iterations                int             `json:"simulation_iterations"`
	Seed                      int64           `json:"seed"`
	HorizonMonths             int             `json:"horizon_months"`
	ComputedAt                time.Time       `json:"computed_at"`
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.PercentilePaths = r.PercentilePaths.clone()
	if r.MaxDrawdown != nil {
		dd := *r.MaxDrawdown
		out.MaxDrawdown = &dd
	}
	return &out
}

// Input is the raw batch output plus what is needed to judge it.
type Input struct {
	Finals           []float64
	Series           [][]float64
	TargetAmount     float64
	SuccessThreshold float64
	Seed             int64
	HorizonMonths    int
	ComputedAt       time.Time
}

// Analyze computes probabilities, percentiles and risk metrics. An empty batch
// is a ConfigurationError.
func Analyze(in Input, th Thresholds) (*Result, error) {
	n := len(in.Finals)
	if n == 0 {
		return nil, simerr.Configf("simulation_iterations", "must be positive, got 0")
	}
	if in.TargetAmount < 0 {
		return nil, simerr.Configf("target_amount", "must not be negative, got %.2f", in.TargetAmount)
	}
	th = th.WithDefaults()
	threshold := in.SuccessThreshold
	if threshold <= 0 {
		threshold = constants.DefaultSuccessThreshold
	}

	sorted := append([]float64(nil), in.Finals...)
	sort.Float64s(sorted)

	res := &Result{
		TargetAmount:  in.TargetAmount,
		Iterations:    n,
		Seed:          in.Seed,
		HorizonMonths: in.HorizonMonths,
		ComputedAt:    in.ComputedAt,
		Percentiles:   percentilesOf(sorted),
		MeanFinal:     stat.Mean(sorted, nil),
	}
	res.MedianFinal = res.Percentiles.P50
	if n > 1 {
		res.Volatility = stat.StdDev(sorted, nil)
	}

	if in.TargetAmount == 0 {
		res.SuccessProbability = constants.PercentageMultiplier
		res.PartialSuccessProbability = constants.PercentageMultiplier
		res.RawSuccessRate = constants.PercentageMultiplier
	} else {
		credit, hits, partial := 0.0, 0, 0
		partialTarget := threshold * in.TargetAmount
		for _, v := range in.Finals {
			credit += th.Credit(v / in.TargetAmount)
			if v >= in.TargetAmount {
				hits++
			}
			if v >= partialTarget {
				partial++
			}
		}
		res.SuccessProbability = mathutil.ClampProbability(credit / float64(n) * constants.PercentageMultiplier)
		res.RawSuccessRate = mathutil.ClampProbability(mathutil.CalculatePercentage(float64(hits), float64(n)))
		res.PartialSuccessProbability = mathutil.ClampProbability(mathutil.CalculatePercentage(float64(partial), float64(n)))
	}

	if len(in.Series) > 0 {
		paths, err := percentilePaths(in.Series)
		if err != nil {
			return nil, err
		}
		res.PercentilePaths = paths
		dd := MaxDrawdown(paths.P50)
		res.MaxDrawdown = &dd
	}
	return res, nil
}

// percentilesOf expects sorted input and repairs any non-monotone step.
func percentilesOf(sorted []float64) Percentiles {
	vals := make([]float64, len(PercentileRanks))
	for i, p := range PercentileRanks {
		vals[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
		if i > 0 && vals[i] < vals[i-1] {
			vals[i] = vals[i-1]
		}
	}
	return Percentiles{P10: vals[0], P25: vals[1], P50: vals[2], P75: vals[3], P90: vals[4]}
}

func percentilePaths(series [][]float64) (PercentilePaths, error) {
	points := len(series[0])
	for i, s := range series {
		if len(s) != points {
			return PercentilePaths{}, simerr.Configf("series", "trajectory %d has %d points, expected %d", i, len(s), points)
		}
	}
	paths := PercentilePaths{
		P10: make([]float64, points),
		P25: make([]float64, points),
		P50: make([]float64, points),
		P75: make([]float64, points),
		P90: make([]float64, points),
	}
	column := make([]float64, len(series))
	for t := 0; t < points; t++ {
		for i, s := range series {
			column[i] = s[t]
		}
		sort.Float64s(column)
		pct := percentilesOf(column)
		paths.P10[t] = pct.P10
		paths.P25[t] = pct.P25
		paths.P50[t] = pct.P50
		paths.P75[t] = pct.P75
		paths.P90[t] = pct.P90
	}
	return paths, nil
}

// MaxDrawdown returns the largest peak-to-trough decline along path as a
// fraction of the peak.
func MaxDrawdown(path []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range path {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
