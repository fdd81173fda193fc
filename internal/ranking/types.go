package ranking

import (
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/pkg/optimization"
)

// AdjustmentType names the single change a candidate applies to a goal.
type AdjustmentType string

const (
	AdjustContribution AdjustmentType = "contribution"
	AdjustTimeframe    AdjustmentType = "timeframe"
	AdjustTarget       AdjustmentType = "target"
	AdjustAllocation   AdjustmentType = "allocation"
	AdjustTax          AdjustmentType = "tax"
)

var typeOrder = map[AdjustmentType]int{
	AdjustContribution: 0,
	AdjustTimeframe:    1,
	AdjustTarget:       2,
	AdjustAllocation:   3,
	AdjustTax:          4,
}

// Difficulty is a qualitative estimate of how hard a change is to make.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyModerate  Difficulty = "moderate"
	DifficultyDifficult Difficulty = "difficult"
)

// Ease maps difficulty onto [0, 1], easy being 1.
func (d Difficulty) Ease() float64 {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyModerate:
		return 0.6
	default:
		return 0.2
	}
}

func (d Difficulty) harder() Difficulty {
	if d == DifficultyEasy {
		return DifficultyModerate
	}
	return DifficultyDifficult
}

func (d Difficulty) easier() Difficulty {
	if d == DifficultyDifficult {
		return DifficultyModerate
	}
	return DifficultyEasy
}

// Candidate is one proposed modification of a goal.
type Candidate struct {
	Type        AdjustmentType `json:"type"`
	Description string         `json:"description"`
	// Magnitude is the size of the change in the type's natural unit: a
	// fraction for contribution and target changes, months for timeframe,
	// weight points for allocation and rupees per year for tax.
	Magnitude float64    `json:"magnitude"`
	Goal      goal.Goal  `json:"goal"`
	Tax       *TaxImpact `json:"-"`
}

// FinancialImpact describes the cash-flow consequences of a candidate.
type FinancialImpact struct {
	MonthlyChange           float64 `json:"monthly_change"`
	AnnualChange            float64 `json:"annual_change"`
	TotalContributionChange float64 `json:"total_contribution_change"`
	OutOfPocketChange       float64 `json:"out_of_pocket_change"`
	ProjectedCorpusChange   float64 `json:"projected_corpus_change"`
	ExpectedReturnChange    float64 `json:"expected_return_change"`
	TimeframeChangeMonths   int     `json:"timeframe_change_months"`
	TargetChange            float64 `json:"target_change"`
}

// Burden is the extra money the user gives up: out-of-pocket contributions
// plus any reduction of the target.
func (f FinancialImpact) Burden() float64 {
	burden := 0.0
	if f.OutOfPocketChange > 0 {
		burden += f.OutOfPocketChange
	}
	if f.TargetChange < 0 {
		burden -= f.TargetChange
	}
	return burden
}

// TaxImpact describes a tax-advantaged variant under Indian income tax rules.
type TaxImpact struct {
	Section       string  `json:"section"`
	Instrument    string  `json:"instrument"`
	Regime        string  `json:"regime"`
	Eligible      bool    `json:"eligible"`
	Deduction     float64 `json:"deduction"`
	MarginalRate  float64 `json:"marginal_rate"`
	AnnualSavings float64 `json:"annual_savings"`
	Note          string  `json:"note,omitempty"`
}

// Scores holds the normalized sub-scores behind a priority score.
type Scores struct {
	Impact float64 `json:"impact"`
	Ease   float64 `json:"ease"`
	Burden float64 `json:"burden"`
	Tax    float64 `json:"tax"`
}

// Recommendation is a scored candidate.
type Recommendation struct {
	Candidate           Candidate       `json:"candidate"`
	BaselineProbability float64         `json:"baseline_probability"`
	NewProbability      float64         `json:"new_probability"`
	ProbabilityIncrease float64         `json:"probability_increase"`
	FinancialImpact     FinancialImpact `json:"financial_impact"`
	TaxImpact           *TaxImpact      `json:"tax_impact,omitempty"`
	Difficulty          Difficulty      `json:"implementation_difficulty"`
	Scores              Scores          `json:"scores"`
	PriorityScore       float64         `json:"priority_score"`
}

// Result is the outcome of one ranking run.
type Result struct {
	Summary         optimization.Summary `json:"summary"`
	Recommendations []Recommendation     `json:"recommendations"`
}
