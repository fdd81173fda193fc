package goal

// RiskProfile selects the parameter row used for asset-class returns.
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// Valid reports whether r is a known risk profile.
func (r RiskProfile) Valid() bool {
	switch r {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

// OrDefault returns r, or moderate when r is unset or unknown.
func (r RiskProfile) OrDefault() RiskProfile {
	if r.Valid() {
		return r
	}
	return RiskModerate
}

// TaxRegime is the Indian income tax regime the user files under.
type TaxRegime string

const (
	TaxRegimeOld TaxRegime = "old"
	TaxRegimeNew TaxRegime = "new"
)

// Profile is user-level context used to resolve defaults. It is read-only input.
type Profile struct {
	Age          int         `json:"age,omitempty"`
	AnnualIncome float64     `json:"annual_income,omitempty"`
	RiskProfile  RiskProfile `json:"risk_profile,omitempty"`
	Dependents   int         `json:"dependents,omitempty"`
	TaxRegime    TaxRegime   `json:"tax_regime,omitempty"`
}

// MonthlyIncome returns AnnualIncome / 12 and whether income is known.
func (p Profile) MonthlyIncome() (float64, bool) {
	if p.AnnualIncome <= 0 {
		return 0, false
	}
	return p.AnnualIncome / 12, true
}

// Regime returns the tax regime, defaulting to the new regime.
func (p Profile) Regime() TaxRegime {
	if p.TaxRegime == TaxRegimeOld {
		return TaxRegimeOld
	}
	return TaxRegimeNew
}
