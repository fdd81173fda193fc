package analyzer

import (
	"fmt"
	"math"

	"github.com/iwvelando/goal-probability/pkg/mathutil"
)

// Thresholds calibrates the graded success credit. Each trajectory earns credit
// by its ratio r = final / target:
//
//	r >= 1:                      1 + min(ExcessBonus, ExcessBonus * (r-1) / ExcessFull)
//	1-NearBand <= r < 1:         NearLow -> NearHigh
//	1-FarBand <= r < 1-NearBand: FarLow -> NearLow
//	r < 1-FarBand:               Floor -> FarLow
//
// The success probability is 100 * mean credit, clamped to [0, 100], so a
// batch that reaches its target everywhere reports 100 and excess above target
// lifts the probability by up to ExcessBonus * 100 points.
type Thresholds struct {
	ExcessBonus float64 `mapstructure:"excessBonus" yaml:"excessBonus" json:"excess_bonus"`
	ExcessFull  float64 `mapstructure:"excessFull" yaml:"excessFull" json:"excess_full"`
	NearBand    float64 `mapstructure:"nearBand" yaml:"nearBand" json:"near_band"`
	NearLow     float64 `mapstructure:"nearLow" yaml:"nearLow" json:"near_low"`
	NearHigh    float64 `mapstructure:"nearHigh" yaml:"nearHigh" json:"near_high"`
	FarBand     float64 `mapstructure:"farBand" yaml:"farBand" json:"far_band"`
	FarLow      float64 `mapstructure:"farLow" yaml:"farLow" json:"far_low"`
	Floor       float64 `mapstructure:"floor" yaml:"floor" json:"floor"`
}

// DefaultThresholds returns the calibrated defaults: +25 points at 33% excess,
// 50-70% within 10% below target, 30-50% within 10-25% below, a 10% floor.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExcessBonus: 0.25,
		ExcessFull:  0.33,
		NearBand:    0.10,
		NearLow:     0.50,
		NearHigh:    0.70,
		FarBand:     0.25,
		FarLow:      0.30,
		Floor:       0.10,
	}
}

// WithDefaults fills zero fields from DefaultThresholds.
func (th Thresholds) WithDefaults() Thresholds {
	def := DefaultThresholds()
	fill := func(v *float64, d float64) {
		if *v == 0 {
			*v = d
		}
	}
	fill(&th.ExcessBonus, def.ExcessBonus)
	fill(&th.ExcessFull, def.ExcessFull)
	fill(&th.NearBand, def.NearBand)
	fill(&th.NearLow, def.NearLow)
	fill(&th.NearHigh, def.NearHigh)
	fill(&th.FarBand, def.FarBand)
	fill(&th.FarLow, def.FarLow)
	fill(&th.Floor, def.Floor)
	return th
}

// Validate checks that the credit curve is monotone.
func (th Thresholds) Validate() error {
	if th.NearBand <= 0 || th.FarBand <= th.NearBand || th.FarBand >= 1 {
		return fmt.Errorf("bands must satisfy 0 < nearBand (%v) < farBand (%v) < 1", th.NearBand, th.FarBand)
	}
	if !(0 <= th.Floor && th.Floor <= th.FarLow && th.FarLow <= th.NearLow && th.NearLow <= th.NearHigh && th.NearHigh <= 1) {
		return fmt.Errorf("credits must be non-decreasing within [0, 1]: floor %v, farLow %v, nearLow %v, nearHigh %v",
			th.Floor, th.FarLow, th.NearLow, th.NearHigh)
	}
	if th.ExcessBonus < 0 || th.ExcessBonus > 1 {
		return fmt.Errorf("excessBonus must be within [0, 1], got %v", th.ExcessBonus)
	}
	if th.ExcessFull <= 0 {
		return fmt.Errorf("excessFull must be positive, got %v", th.ExcessFull)
	}
	return nil
}

// Credit returns the success credit for a final-to-target ratio, in
// [0, 1+ExcessBonus]. Reaching the target earns 1. It is non-decreasing in
// ratio and constant only beyond ExcessFull above target.
func (th Thresholds) Credit(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return 0
	}
	nearEdge := 1 - th.NearBand
	farEdge := 1 - th.FarBand
	switch {
	case ratio >= 1:
		bonus := math.Min(th.ExcessBonus, th.ExcessBonus*(ratio-1)/th.ExcessFull)
		return 1 + bonus
	case ratio >= nearEdge:
		return mathutil.Lerp(th.NearLow, th.NearHigh, (ratio-nearEdge)/th.NearBand)
	case ratio >= farEdge:
		return mathutil.Lerp(th.FarLow, th.NearLow, (ratio-farEdge)/(th.FarBand-th.NearBand))
	case ratio <= 0:
		return th.Floor
	default:
		return mathutil.Lerp(th.Floor, th.FarLow, ratio/farEdge)
	}
}
