package ranking

import (
	"fmt"
	"math"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/format"
	"github.com/iwvelando/goal-probability/pkg/mathutil"
)

const (
	equityAsset = "equity"
	// amountStep is the rounding unit for suggested contributions.
	amountStep   = 100.0
	requiredHalf = 0.5
	// requiredDistinct is the relative gap below which the required
	// contribution duplicates a percentage step.
	requiredDistinct = 0.02
)

var (
	contributionSteps = []float64{0.10, 0.25, 0.50}
	incomeShareSteps  = []float64{0.05, 0.10, 0.15}
	timeframeSteps    = []int{12, 24, 36}
	targetCuts        = []float64{0.05, 0.10, 0.15}
)

// Catalogue generates the candidate adjustments for the resolved baseline
// request, in catalogue order: contribution, timeframe, target, allocation,
// tax. Every candidate carries its own cloned goal.
func Catalogue(base *simulation.Request, profile goal.Profile) []Candidate {
	g := base.Goal
	var out []Candidate
	out = append(out, contributionCandidates(base, profile)...)
	out = append(out, timeframeCandidates(g)...)
	out = append(out, targetCandidates(g)...)
	out = append(out, allocationCandidates(base)...)
	out = append(out, taxCandidates(base, profile)...)
	return out
}

func roundUp(amount float64) float64 {
	return math.Ceil(amount/amountStep) * amountStep
}

func withContribution(g goal.Goal, monthly float64) goal.Goal {
	out := g.Clone()
	out.MonthlyContribution = monthly
	return out
}

func contributionCandidates(base *simulation.Request, profile goal.Profile) []Candidate {
	g := base.Goal
	current := g.MonthlyContribution
	var out []Candidate
	var suggested []float64

	if current > 0 {
		for _, step := range contributionSteps {
			monthly := roundUp(current * (1 + step))
			suggested = append(suggested, monthly)
			out = append(out, Candidate{
				Type:        AdjustContribution,
				Description: fmt.Sprintf("Increase monthly contribution by %.0f%% to %s", step*constants.PercentageMultiplier, format.Currency(monthly)),
				Magnitude:   step,
				Goal:        withContribution(g, monthly),
			})
		}
	} else if income, ok := profile.MonthlyIncome(); ok {
		for _, share := range incomeShareSteps {
			monthly := roundUp(income * share)
			suggested = append(suggested, monthly)
			out = append(out, Candidate{
				Type:        AdjustContribution,
				Description: fmt.Sprintf("Start contributing %s a month (%.0f%% of income)", format.Currency(monthly), share*constants.PercentageMultiplier),
				Magnitude:   share,
				Goal:        withContribution(g, monthly),
			})
		}
	}

	required := mathutil.RequiredMonthly(g.CurrentAmount, g.TargetAmount, mathutil.MonthlyRate(base.ExpectedReturn()), base.HorizonMonths)
	if required <= 0 {
		return out
	}
	if current <= 0 && len(suggested) == 0 {
		monthly := roundUp(required * requiredHalf)
		suggested = append(suggested, monthly)
		out = append(out, Candidate{
			Type:        AdjustContribution,
			Description: fmt.Sprintf("Start contributing %s a month (half the required amount)", format.Currency(monthly)),
			Magnitude:   requiredHalf,
			Goal:        withContribution(g, monthly),
		})
	}

	monthly := roundUp(required)
	if monthly <= current*(1+requiredDistinct) {
		return out
	}
	for _, s := range suggested {
		if math.Abs(s-monthly) <= monthly*requiredDistinct {
			return out
		}
	}
	magnitude := 1.0
	if current > 0 {
		magnitude = monthly/current - 1
	}
	return append(out, Candidate{
		Type:        AdjustContribution,
		Description: fmt.Sprintf("Contribute the required %s a month at expected returns", format.Currency(monthly)),
		Magnitude:   magnitude,
		Goal:        withContribution(g, monthly),
	})
}

func timeframeCandidates(g goal.Goal) []Candidate {
	steps := timeframeSteps
	if g.Category == goal.CategoryEmergencyFund {
		steps = steps[:1]
	}
	out := make([]Candidate, 0, len(steps))
	for _, months := range steps {
		modified := g.Clone()
		modified.TargetDate = g.TargetDate.AddDate(0, months, 0)
		years := months / constants.MonthsPerYear
		unit := "years"
		if years == 1 {
			unit = "year"
		}
		out = append(out, Candidate{
			Type:        AdjustTimeframe,
			Description: fmt.Sprintf("Extend the target date by %d %s to %s", years, unit, modified.TargetDate.Format(constants.DateTimeLayout)),
			Magnitude:   float64(months),
			Goal:        modified,
		})
	}
	return out
}

func targetCandidates(g goal.Goal) []Candidate {
	if g.Flexibility == goal.FlexibilityFixed || g.TargetAmount <= 0 {
		return nil
	}
	out := make([]Candidate, 0, len(targetCuts))
	for _, cut := range targetCuts {
		modified := g.Clone()
		modified.TargetAmount = mathutil.Round(g.TargetAmount * (1 - cut))
		out = append(out, Candidate{
			Type:        AdjustTarget,
			Description: fmt.Sprintf("Reduce the target by %.0f%% to %s", cut*constants.PercentageMultiplier, format.Currency(modified.TargetAmount)),
			Magnitude:   cut,
			Goal:        modified,
		})
	}
	return out
}

// equityShifts picks the direction of allocation changes: long horizons lean
// into equity, short ones de-risk.
func equityShifts(category goal.Category, horizonMonths int) []float64 {
	switch {
	case category == goal.CategoryEmergencyFund:
		return []float64{-0.10}
	case horizonMonths >= 84:
		return []float64{0.10, 0.20}
	case horizonMonths <= 36:
		return []float64{-0.10, -0.20}
	default:
		return []float64{0.10, -0.10}
	}
}

func allocationCandidates(base *simulation.Request) []Candidate {
	g := base.Goal
	var out []Candidate
	for _, shift := range equityShifts(g.Category, base.HorizonMonths) {
		alloc, applied := base.Allocation.ShiftTowards(equityAsset, shift)
		if math.Abs(applied) < 0.01 {
			continue
		}
		modified := g.Clone()
		modified.Allocation = alloc
		direction := "Increase"
		if applied < 0 {
			direction = "Reduce"
		}
		out = append(out, Candidate{
			Type:        AdjustAllocation,
			Description: fmt.Sprintf("%s equity allocation by %.0f points to %.0f%%", direction, math.Abs(applied)*constants.PercentageMultiplier, alloc[equityAsset]*constants.PercentageMultiplier),
			Magnitude:   applied,
			Goal:        modified,
		})
	}
	return out
}

// taxCandidates route the existing contribution through a deduction section
// and reinvest the tax saved into the goal.
func taxCandidates(base *simulation.Request, profile goal.Profile) []Candidate {
	g := base.Goal
	annual := g.MonthlyContribution * constants.MonthsPerYear
	var out []Candidate
	for _, section := range TaxSections {
		if !section.Applies(g.Category, base.HorizonMonths) {
			continue
		}
		impact := EstimateTaxImpact(section, profile, annual)
		if !impact.Eligible {
			continue
		}
		monthly := mathutil.Round(g.MonthlyContribution + impact.AnnualSavings/constants.MonthsPerYear)
		tax := impact
		out = append(out, Candidate{
			Type: AdjustTax,
			Description: fmt.Sprintf("Invest via %s under section %s and reinvest %s a year of tax saved",
				section.Instrument, section.Code, format.Currency(impact.AnnualSavings)),
			Magnitude: impact.AnnualSavings,
			Goal:      withContribution(g, monthly),
			Tax:       &tax,
		})
	}
	return out
}
