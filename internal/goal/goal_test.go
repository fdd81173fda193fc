package goal

import (
	"math"
	"testing"
	"time"

	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGoal() Goal {
	return Goal{
		ID:                  "g-1",
		Category:            CategoryRetirement,
		CurrentAmount:       100000,
		TargetAmount:        500000,
		MonthlyContribution: 5000,
		TargetDate:          time.Date(2035, time.January, 1, 0, 0, 0, 0, time.UTC),
		Allocation:          Allocation{"equity": 0.6, "debt": 0.4},
		GlidePath:           &GlidePath{Target: Allocation{"equity": 0.3, "debt": 0.7}, Years: 5},
		Scheduled:           []ScheduledContribution{{Month: 12, Amount: 50000}},
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := sampleGoal()
	c := g.Clone()

	c.Allocation["equity"] = 0.9
	c.GlidePath.Target["debt"] = 0.1
	c.Scheduled[0].Amount = 1

	assert.Equal(t, 0.6, g.Allocation["equity"])
	assert.Equal(t, 0.7, g.GlidePath.Target["debt"])
	assert.Equal(t, 50000.0, g.Scheduled[0].Amount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Goal)
		field  string
	}{
		{"valid goal", func(*Goal) {}, ""},
		{"negative target", func(g *Goal) { g.TargetAmount = -1 }, "target_amount"},
		{"NaN current", func(g *Goal) { g.CurrentAmount = math.NaN() }, "current_amount"},
		{"negative contribution", func(g *Goal) { g.MonthlyContribution = -10 }, "monthly_contribution"},
		{"unknown category", func(g *Goal) { g.Category = "yacht" }, "category"},
		{"missing date", func(g *Goal) { g.TargetDate = time.Time{} }, "target_date"},
		{"threshold above one", func(g *Goal) { g.SuccessThreshold = 1.5 }, "success_threshold"},
		{"weights off", func(g *Goal) { g.Allocation = Allocation{"equity": 0.7, "debt": 0.4} }, "allocation"},
		{"glide years", func(g *Goal) { g.GlidePath.Years = 0 }, "glide_path.years"},
		{"bad schedule", func(g *Goal) { g.Scheduled[0].Month = 0 }, "scheduled"},
		{"risk profile", func(g *Goal) { g.RiskProfile = "reckless" }, "risk_profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sampleGoal()
			tt.mutate(&g)
			err := g.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *simerr.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestHorizonMonths(t *testing.T) {
	g := sampleGoal()
	asOf := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 120, g.HorizonMonths(asOf))

	g.TargetDate = asOf.AddDate(-1, 0, 0)
	assert.Equal(t, 1, g.HorizonMonths(asOf))
}

func TestThresholdDefault(t *testing.T) {
	g := sampleGoal()
	assert.Equal(t, 0.8, g.Threshold())
	g.SuccessThreshold = 0.9
	assert.Equal(t, 0.9, g.Threshold())
}

func TestShiftTowards(t *testing.T) {
	base := Allocation{"equity": 0.6, "debt": 0.3, "gold": 0.1}

	up, applied := base.ShiftTowards("equity", 0.2)
	assert.InDelta(t, 0.2, applied, 1e-12)
	assert.InDelta(t, 0.8, up["equity"], 1e-12)
	assert.InDelta(t, 0.15, up["debt"], 1e-12)
	assert.InDelta(t, 0.05, up["gold"], 1e-12)
	assert.InDelta(t, 1.0, up.Total(), 1e-12)
	assert.Equal(t, 0.6, base["equity"], "original allocation must not change")

	down, applied := base.ShiftTowards("equity", -0.8)
	assert.InDelta(t, -0.6, applied, 1e-12)
	assert.InDelta(t, 0.0, down["equity"], 1e-12)
	assert.InDelta(t, 1.0, down.Total(), 1e-12)

	full, applied := Allocation{"equity": 1.0, "debt": 0}.ShiftTowards("equity", 0.1)
	assert.Equal(t, 0.0, applied)
	assert.Equal(t, 1.0, full["equity"])

	fromFull, applied := Allocation{"equity": 1.0, "debt": 0}.ShiftTowards("equity", -0.2)
	assert.InDelta(t, -0.2, applied, 1e-12)
	assert.InDelta(t, 0.2, fromFull["debt"], 1e-12)
}

func TestProfileDefaults(t *testing.T) {
	var p Profile
	_, ok := p.MonthlyIncome()
	assert.False(t, ok)
	assert.Equal(t, TaxRegimeNew, p.Regime())
	assert.Equal(t, RiskModerate, p.RiskProfile.OrDefault())

	p = Profile{AnnualIncome: 1200000, TaxRegime: TaxRegimeOld, RiskProfile: RiskAggressive}
	monthly, ok := p.MonthlyIncome()
	assert.True(t, ok)
	assert.Equal(t, 100000.0, monthly)
	assert.Equal(t, TaxRegimeOld, p.Regime())
	assert.Equal(t, RiskAggressive, p.RiskProfile.OrDefault())
}
