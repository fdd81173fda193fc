// Package goal defines the immutable goal and profile snapshots the simulation
// core receives from the goal store.
package goal

import (
	"math"
	"sort"
	"time"

	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/datetime"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
)

// Category classifies a goal.
type Category string

// Goal categories.
const (
	CategoryEmergencyFund    Category = "emergency_fund"
	CategoryRetirement       Category = "retirement"
	CategoryEarlyRetirement  Category = "early_retirement"
	CategoryEducation        Category = "education"
	CategoryHomePurchase     Category = "home_purchase"
	CategoryDebtRepayment    Category = "debt_repayment"
	CategoryWedding          Category = "wedding"
	CategoryLegacyPlanning   Category = "legacy_planning"
	CategoryCharitableGiving Category = "charitable_giving"
	CategoryCustom           Category = "custom"
	CategoryDiscretionary    Category = "discretionary"
)

var knownCategories = map[Category]bool{
	CategoryEmergencyFund:    true,
	CategoryRetirement:       true,
	CategoryEarlyRetirement:  true,
	CategoryEducation:        true,
	CategoryHomePurchase:     true,
	CategoryDebtRepayment:    true,
	CategoryWedding:          true,
	CategoryLegacyPlanning:   true,
	CategoryCharitableGiving: true,
	CategoryCustom:           true,
	CategoryDiscretionary:    true,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return knownCategories[c]
}

// Importance tags how much a goal matters to the user.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Flexibility tags how negotiable a goal's amount and date are.
type Flexibility string

const (
	FlexibilityFixed    Flexibility = "fixed"
	FlexibilitySomewhat Flexibility = "somewhat_flexible"
	FlexibilityVery     Flexibility = "very_flexible"
)

// ScheduledContribution is an irregular lump sum paid at a month offset from the
// start of the simulation (month 1 is the first simulated month).
type ScheduledContribution struct {
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// GlidePath moves the allocation linearly towards Target over Years.
type GlidePath struct {
	Target Allocation `json:"target"`
	Years  int        `json:"years"`
}

// Goal is a snapshot of a goal's financial attributes.
type Goal struct {
	ID                  string                  `json:"id"`
	Title               string                  `json:"title,omitempty"`
	Category            Category                `json:"category"`
	CurrentAmount       float64                 `json:"current_amount"`
	TargetAmount        float64                 `json:"target_amount"`
	MonthlyContribution float64                 `json:"monthly_contribution"`
	ContributionGrowth  float64                 `json:"contribution_growth,omitempty"`
	Scheduled           []ScheduledContribution `json:"scheduled,omitempty"`
	TargetDate          time.Time               `json:"target_date"`
	Allocation          Allocation              `json:"allocation,omitempty"`
	GlidePath           *GlidePath              `json:"glide_path,omitempty"`
	Importance          Importance              `json:"importance,omitempty"`
	Flexibility         Flexibility             `json:"flexibility,omitempty"`
	SuccessThreshold    float64                 `json:"success_threshold,omitempty"`
	RiskProfile         RiskProfile             `json:"risk_profile,omitempty"`
}

// Clone returns a deep copy so callers can modify it without touching g.
func (g Goal) Clone() Goal {
	out := g
	out.Allocation = g.Allocation.Clone()
	if g.Scheduled != nil {
		out.Scheduled = append([]ScheduledContribution(nil), g.Scheduled...)
	}
	if g.GlidePath != nil {
		glide := *g.GlidePath
		glide.Target = g.GlidePath.Target.Clone()
		out.GlidePath = &glide
	}
	return out
}

// Threshold returns the partial-success fraction, defaulting to 0.8.
func (g Goal) Threshold() float64 {
	if g.SuccessThreshold <= 0 {
		return constants.DefaultSuccessThreshold
	}
	return g.SuccessThreshold
}

// HorizonMonths returns the whole months from asOf to the target date, at least 1.
func (g Goal) HorizonMonths(asOf time.Time) int {
	months := datetime.MonthsBetween(asOf, g.TargetDate)
	if months < 1 {
		return 1
	}
	return months
}

// Validate checks the goal's numeric fields and returns a ConfigurationError
// describing the first problem found.
func (g Goal) Validate() error {
	amounts := []struct {
		field string
		value float64
	}{
		{"current_amount", g.CurrentAmount},
		{"target_amount", g.TargetAmount},
		{"monthly_contribution", g.MonthlyContribution},
	}
	for _, a := range amounts {
		if !mathutil.IsFinite(a.value) {
			return simerr.Configf(a.field, "must be a finite number")
		}
		if a.value < 0 {
			return simerr.Configf(a.field, "must not be negative, got %.2f", a.value)
		}
	}
	if !mathutil.IsFinite(g.ContributionGrowth) || g.ContributionGrowth <= -1 {
		return simerr.Configf("contribution_growth", "must be a finite rate above -100%%")
	}
	if g.Category != "" && !g.Category.Valid() {
		return simerr.Configf("category", "unknown category %q", g.Category)
	}
	if g.TargetDate.IsZero() {
		return simerr.Configf("target_date", "is required")
	}
	if g.SuccessThreshold < 0 || g.SuccessThreshold > 1 || math.IsNaN(g.SuccessThreshold) {
		return simerr.Configf("success_threshold", "must be within (0, 1], got %v", g.SuccessThreshold)
	}
	for i, s := range g.Scheduled {
		if s.Month < 1 || !mathutil.IsFinite(s.Amount) {
			return simerr.Configf("scheduled", "entry %d needs a month >= 1 and a finite amount", i)
		}
	}
	if len(g.Allocation) > 0 {
		if err := g.Allocation.Validate(); err != nil {
			return err
		}
	}
	if g.GlidePath != nil {
		if g.GlidePath.Years < 1 {
			return simerr.Configf("glide_path.years", "must be at least 1")
		}
		if err := g.GlidePath.Target.Validate(); err != nil {
			return err
		}
	}
	if g.RiskProfile != "" && !g.RiskProfile.Valid() {
		return simerr.Configf("risk_profile", "unknown risk profile %q", g.RiskProfile)
	}
	return nil
}

// Allocation maps asset class to portfolio weight.
type Allocation map[string]float64

// Clone returns an independent copy.
func (a Allocation) Clone() Allocation {
	if a == nil {
		return nil
	}
	out := make(Allocation, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AssetClasses returns the asset class names in sorted order.
func (a Allocation) AssetClasses() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Total returns the sum of weights.
func (a Allocation) Total() float64 {
	total := 0.0
	for _, name := range a.AssetClasses() {
		total += a[name]
	}
	return total
}

// Validate ensures weights are non-negative and sum to 1.0.
func (a Allocation) Validate() error {
	if len(a) == 0 {
		return simerr.Configf("allocation", "must contain at least one asset class")
	}
	for name, w := range a {
		if !mathutil.IsFinite(w) || w < 0 {
			return simerr.Configf("allocation", "weight for %s must be a non-negative number", name)
		}
	}
	if total := a.Total(); math.Abs(total-1) > constants.WeightTolerance {
		return simerr.Configf("allocation", "weights must sum to 1.0, got %.4f", total)
	}
	return nil
}

// Weight returns the weight for an asset class, zero when absent.
func (a Allocation) Weight(asset string) float64 {
	return a[asset]
}

// ShiftTowards moves delta of weight into asset, taking it proportionally from
// the other classes (or giving it back when delta is negative). The shift is
// clipped so no weight leaves [0, 1]. It returns the new allocation and the
// delta actually applied.
func (a Allocation) ShiftTowards(asset string, delta float64) (Allocation, float64) {
	out := a.Clone()
	if out == nil {
		out = Allocation{}
	}
	current := out[asset]
	others := 1 - current
	if delta > others {
		delta = others
	}
	if delta < -current {
		delta = -current
	}
	if delta == 0 {
		return out, 0
	}
	otherNames := make([]string, 0, len(out))
	for _, name := range out.AssetClasses() {
		if name != asset {
			otherNames = append(otherNames, name)
		}
	}
	if len(otherNames) == 0 {
		return out, 0
	}
	out[asset] = current + delta
	if others > 0 {
		for _, name := range otherNames {
			out[name] -= delta * out[name] / others
		}
	} else {
		share := -delta / float64(len(otherNames))
		for _, name := range otherNames {
			out[name] += share
		}
	}
	for _, name := range otherNames {
		if out[name] < 0 {
			out[name] = 0
		}
	}
	return out, delta
}
