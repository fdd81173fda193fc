package config

import (
	"fmt"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/pkg/datetime"
)

// GoalConfig describes a goal as written in a config file. Dates use
// DateTimeLayout.
type GoalConfig struct {
	ID                  string             `yaml:"id" mapstructure:"id"`
	Title               string             `yaml:"title,omitempty" mapstructure:"title"`
	Category            string             `yaml:"category" mapstructure:"category"`
	CurrentAmount       float64            `yaml:"currentAmount" mapstructure:"currentAmount"`
	TargetAmount        float64            `yaml:"targetAmount" mapstructure:"targetAmount"`
	MonthlyContribution float64            `yaml:"monthlyContribution" mapstructure:"monthlyContribution"`
	ContributionGrowth  float64            `yaml:"contributionGrowth,omitempty" mapstructure:"contributionGrowth"`
	Scheduled           []ScheduledConfig  `yaml:"scheduled,omitempty" mapstructure:"scheduled"`
	TargetDate          string             `yaml:"targetDate" mapstructure:"targetDate"`
	Allocation          map[string]float64 `yaml:"allocation,omitempty" mapstructure:"allocation"`
	GlidePath           *GlidePathConfig   `yaml:"glidePath,omitempty" mapstructure:"glidePath"`
	Importance          string             `yaml:"importance,omitempty" mapstructure:"importance"`
	Flexibility         string             `yaml:"flexibility,omitempty" mapstructure:"flexibility"`
	SuccessThreshold    float64            `yaml:"successThreshold,omitempty" mapstructure:"successThreshold"`
	RiskProfile         string             `yaml:"riskProfile,omitempty" mapstructure:"riskProfile"`
}

// ScheduledConfig is a lump sum paid at a month offset.
type ScheduledConfig struct {
	Month  int     `yaml:"month" mapstructure:"month"`
	Amount float64 `yaml:"amount" mapstructure:"amount"`
}

// GlidePathConfig moves the allocation towards Target over Years.
type GlidePathConfig struct {
	Target map[string]float64 `yaml:"target" mapstructure:"target"`
	Years  int                `yaml:"years" mapstructure:"years"`
}

// ProfileConfig holds the user context used to resolve defaults.
type ProfileConfig struct {
	Age          int     `yaml:"age,omitempty" mapstructure:"age"`
	AnnualIncome float64 `yaml:"annualIncome,omitempty" mapstructure:"annualIncome"`
	RiskProfile  string  `yaml:"riskProfile,omitempty" mapstructure:"riskProfile"`
	Dependents   int     `yaml:"dependents,omitempty" mapstructure:"dependents"`
	TaxRegime    string  `yaml:"taxRegime,omitempty" mapstructure:"taxRegime"`
}

// ToGoal converts the config representation into a goal snapshot. The
// profile's risk profile applies when the goal does not set one.
func (gc GoalConfig) ToGoal(profile ProfileConfig) (goal.Goal, error) {
	if gc.ID == "" {
		return goal.Goal{}, fmt.Errorf("goal.id is required")
	}
	target, err := datetime.ParseMonth(gc.TargetDate)
	if err != nil {
		return goal.Goal{}, fmt.Errorf("goal %s: invalid targetDate %q: %w", gc.ID, gc.TargetDate, err)
	}

	category := goal.Category(gc.Category)
	if category == "" {
		category = goal.CategoryCustom
	}
	risk := goal.RiskProfile(gc.RiskProfile)
	if risk == "" {
		risk = goal.RiskProfile(profile.RiskProfile)
	}

	g := goal.Goal{
		ID:                  gc.ID,
		Title:               gc.Title,
		Category:            category,
		CurrentAmount:       gc.CurrentAmount,
		TargetAmount:        gc.TargetAmount,
		MonthlyContribution: gc.MonthlyContribution,
		ContributionGrowth:  gc.ContributionGrowth,
		TargetDate:          target,
		Importance:          goal.Importance(gc.Importance),
		Flexibility:         goal.Flexibility(gc.Flexibility),
		SuccessThreshold:    gc.SuccessThreshold,
		RiskProfile:         risk,
	}
	if len(gc.Allocation) > 0 {
		g.Allocation = goal.Allocation(gc.Allocation).Clone()
	}
	for _, s := range gc.Scheduled {
		g.Scheduled = append(g.Scheduled, goal.ScheduledContribution{Month: s.Month, Amount: s.Amount})
	}
	if gc.GlidePath != nil {
		g.GlidePath = &goal.GlidePath{
			Target: goal.Allocation(gc.GlidePath.Target).Clone(),
			Years:  gc.GlidePath.Years,
		}
	}

	if err := g.Validate(); err != nil {
		return goal.Goal{}, err
	}
	return g, nil
}

// ToProfile converts the config representation into a profile snapshot.
func (pc ProfileConfig) ToProfile() goal.Profile {
	return goal.Profile{
		Age:          pc.Age,
		AnnualIncome: pc.AnnualIncome,
		RiskProfile:  goal.RiskProfile(pc.RiskProfile).OrDefault(),
		Dependents:   pc.Dependents,
		TaxRegime:    goal.TaxRegime(pc.TaxRegime),
	}
}

// Params builds the parameter set: the built-in defaults overlaid with the
// parameters tree from the config.
func (c *Configuration) Params() (params.Set, error) {
	defaults := params.Defaults()
	if len(c.Parameters) == 0 {
		return defaults, nil
	}
	custom, err := params.FromTree(c.Parameters)
	if err != nil {
		return params.Set{}, err
	}
	entries := defaults.Entries()
	for k, v := range custom.Entries() {
		entries[k] = v
	}
	return params.NewSet(entries), nil
}
