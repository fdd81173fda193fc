package ranking

import (
	"fmt"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/shopspring/decimal"
)

// Bracket is one slab of an income tax table: income above Floor is taxed at
// Rate until the next bracket's floor.
type Bracket struct {
	Floor decimal.Decimal
	Rate  decimal.Decimal
}

func bracket(floor int64, rate string) Bracket {
	return Bracket{Floor: decimal.NewFromInt(floor), Rate: decimal.RequireFromString(rate)}
}

var (
	oldRegimeBrackets = []Bracket{
		bracket(0, "0"),
		bracket(250000, "0.05"),
		bracket(500000, "0.20"),
		bracket(1000000, "0.30"),
	}
	newRegimeBrackets = []Bracket{
		bracket(0, "0"),
		bracket(400000, "0.05"),
		bracket(800000, "0.10"),
		bracket(1200000, "0.15"),
		bracket(1600000, "0.20"),
		bracket(2000000, "0.25"),
		bracket(2400000, "0.30"),
	}
	cess = decimal.RequireFromString("1.04")
)

// MarginalRate returns the slab rate that applies to the last rupee of income
// under regime, excluding cess.
func MarginalRate(regime goal.TaxRegime, annualIncome float64) decimal.Decimal {
	table := newRegimeBrackets
	if regime == goal.TaxRegimeOld {
		table = oldRegimeBrackets
	}
	income := decimal.NewFromFloat(annualIncome)
	rate := decimal.Zero
	for _, b := range table {
		if income.GreaterThan(b.Floor) {
			rate = b.Rate
		}
	}
	return rate
}

// Section is a deduction section of the Income Tax Act that a goal's
// contributions can be routed through.
type Section struct {
	Code       string
	Instrument string
	// Limit caps the deduction per year; zero means no fixed cap.
	Limit decimal.Decimal
	// Share is the fraction of the amount invested that is deductible.
	Share decimal.Decimal
	// IncomeCap caps the qualifying amount as a fraction of gross income.
	IncomeCap decimal.Decimal
	// MinHorizonMonths excludes instruments whose lock-in outlasts the goal.
	MinHorizonMonths int
	Categories       map[goal.Category]bool
}

var (
	section80C = Section{
		Code:             "80C",
		Instrument:       "ELSS",
		Limit:            decimal.NewFromInt(150000),
		Share:            decimal.NewFromInt(1),
		MinHorizonMonths: 36,
		Categories: map[goal.Category]bool{
			goal.CategoryRetirement:      true,
			goal.CategoryEarlyRetirement: true,
			goal.CategoryEducation:       true,
			goal.CategoryHomePurchase:    true,
			goal.CategoryWedding:         true,
			goal.CategoryLegacyPlanning:  true,
			goal.CategoryCustom:          true,
			goal.CategoryDiscretionary:   true,
		},
	}
	section80CCD1B = Section{
		Code:       "80CCD(1B)",
		Instrument: "NPS Tier I",
		Limit:      decimal.NewFromInt(50000),
		Share:      decimal.NewFromInt(1),
		Categories: map[goal.Category]bool{
			goal.CategoryRetirement:      true,
			goal.CategoryEarlyRetirement: true,
		},
	}
	section80G = Section{
		Code:       "80G",
		Instrument: "qualifying donations",
		Share:      decimal.RequireFromString("0.5"),
		IncomeCap:  decimal.RequireFromString("0.10"),
		Categories: map[goal.Category]bool{
			goal.CategoryCharitableGiving: true,
		},
	}

	// TaxSections lists the sections considered for tax-advantaged variants.
	TaxSections = []Section{section80C, section80CCD1B, section80G}
)

// Applies reports whether the section fits a goal category and horizon.
func (s Section) Applies(category goal.Category, horizonMonths int) bool {
	return s.Categories[category] && horizonMonths >= s.MinHorizonMonths
}

// EstimateTaxImpact computes the deduction and annual tax saved by routing
// annualInvestment through section. Deductions are only available under the
// old regime.
func EstimateTaxImpact(s Section, profile goal.Profile, annualInvestment float64) TaxImpact {
	regime := profile.Regime()
	impact := TaxImpact{
		Section:    s.Code,
		Instrument: s.Instrument,
		Regime:     string(regime),
	}
	if regime != goal.TaxRegimeOld {
		impact.Note = fmt.Sprintf("section %s deductions are not available under the new regime", s.Code)
		return impact
	}
	if profile.AnnualIncome <= 0 {
		impact.Note = "annual income unknown"
		return impact
	}
	if annualInvestment <= 0 {
		impact.Note = "no contribution to route"
		return impact
	}

	income := decimal.NewFromFloat(profile.AnnualIncome)
	qualifying := decimal.NewFromFloat(annualInvestment)
	if s.IncomeCap.IsPositive() {
		qualifying = decimal.Min(qualifying, income.Mul(s.IncomeCap))
	}
	deduction := qualifying.Mul(s.Share)
	if s.Limit.IsPositive() {
		deduction = decimal.Min(deduction, s.Limit)
	}

	rate := MarginalRate(regime, profile.AnnualIncome)
	savings := deduction.Mul(rate).Mul(cess).Round(2)

	impact.Deduction, _ = deduction.Round(2).Float64()
	impact.MarginalRate, _ = rate.Float64()
	impact.AnnualSavings, _ = savings.Float64()
	impact.Eligible = savings.IsPositive()
	if !impact.Eligible {
		impact.Note = "income falls in the zero-rate slab"
	}
	return impact
}
