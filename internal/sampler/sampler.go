// Package sampler draws per-period asset-class returns from a seeded random
// process. Identical seeds and parameters always yield identical sequences.
package sampler

import (
	"math"
	"math/rand"

	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
)

// DefaultDegreesOfFreedom shapes the Student-t draws used in fat-tail mode.
const DefaultDegreesOfFreedom = 5

// AssetParams holds annual return parameters for one asset class.
type AssetParams struct {
	Name           string  `json:"name"`
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
}

// Returns is a [period][asset] matrix of periodic returns, columns ordered like
// the AssetParams passed to Sample.
type Returns [][]float64

// Sampler draws monthly returns. It is not safe for concurrent use; create one
// per goroutine.
type Sampler struct {
	rng      *rand.Rand
	fatTails bool
	dof      int
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithFatTails switches draws to a unit-variance Student-t with dof degrees of
// freedom (values below 3 are raised to 3 so the variance exists).
func WithFatTails(dof int) Option {
	return func(s *Sampler) {
		if dof < 3 {
			dof = 3
		}
		s.fatTails = true
		s.dof = dof
	}
}

// New returns a Sampler seeded with seed.
func New(seed int64, opts ...Option) *Sampler {
	s := &Sampler{
		rng: rand.New(rand.NewSource(seed)),
		dof: DefaultDegreesOfFreedom,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks asset parameters without drawing anything.
func Validate(assets []AssetParams) error {
	for _, a := range assets {
		if !mathutil.IsFinite(a.ExpectedReturn) || a.ExpectedReturn <= -1 {
			return simerr.Configf("asset_returns."+a.Name, "expected return must be a finite rate above -100%%")
		}
		if !mathutil.IsFinite(a.Volatility) || a.Volatility < 0 {
			return simerr.Configf("asset_returns."+a.Name, "volatility must be a non-negative number, got %v", a.Volatility)
		}
	}
	return nil
}

// Sample draws periods months of returns for each asset.
func (s *Sampler) Sample(assets []AssetParams, periods int) (Returns, error) {
	if err := Validate(assets); err != nil {
		return nil, err
	}
	if periods < 0 {
		return nil, simerr.Configf("periods", "must not be negative, got %d", periods)
	}

	means := make([]float64, len(assets))
	vols := make([]float64, len(assets))
	for i, a := range assets {
		means[i] = mathutil.MonthlyRate(a.ExpectedReturn)
		vols[i] = a.Volatility / math.Sqrt(constants.MonthsPerYear)
	}

	out := make(Returns, periods)
	for p := 0; p < periods; p++ {
		row := make([]float64, len(assets))
		for i := range assets {
			row[i] = means[i] + vols[i]*s.shock()
		}
		out[p] = row
	}
	return out, nil
}

// shock returns a zero-mean, unit-variance draw.
func (s *Sampler) shock() float64 {
	z := s.rng.NormFloat64()
	if !s.fatTails {
		return z
	}
	chi2 := 0.0
	for i := 0; i < s.dof; i++ {
		n := s.rng.NormFloat64()
		chi2 += n * n
	}
	nu := float64(s.dof)
	t := z / math.Sqrt(chi2/nu)
	return t * math.Sqrt((nu-2)/nu)
}
