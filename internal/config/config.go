// Package config defines the data structures related to configuration and
// includes functions for loading, parsing and validating the config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/ranking"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/datetime"
	"github.com/iwvelando/goal-probability/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DateTimeLayout is the format expected in config files and is also the output
// date format.
const DateTimeLayout = constants.DateTimeLayout

// keepPathsWarnIterations is the iteration count above which retaining every
// trajectory is worth a warning.
const keepPathsWarnIterations = 10000

// Configuration holds all configuration for goal-probability.
type Configuration struct {
	Logging    LoggingConfig          `yaml:"logging,omitempty" mapstructure:"logging"`
	Output     OutputConfig           `yaml:"output,omitempty" mapstructure:"output"`
	Simulation SimulationConfig       `yaml:"simulation,omitempty" mapstructure:"simulation"`
	Scoring    analyzer.Thresholds    `yaml:"scoring,omitempty" mapstructure:"scoring"`
	Cache      CacheConfig            `yaml:"cache,omitempty" mapstructure:"cache"`
	Ranking    RankingConfig          `yaml:"ranking,omitempty" mapstructure:"ranking"`
	Goal       GoalConfig             `yaml:"goal,omitempty" mapstructure:"goal"`
	Profile    ProfileConfig          `yaml:"profile,omitempty" mapstructure:"profile"`
	Parameters map[string]interface{} `yaml:"parameters,omitempty" mapstructure:"parameters"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, csv, json
}

// SimulationConfig controls the Monte Carlo engine.
type SimulationConfig struct {
	Iterations        int   `yaml:"iterations,omitempty" mapstructure:"iterations"`
	Seed              int64 `yaml:"seed,omitempty" mapstructure:"seed"`
	Workers           int   `yaml:"workers,omitempty" mapstructure:"workers"`
	ParallelThreshold int   `yaml:"parallelThreshold,omitempty" mapstructure:"parallelThreshold"`
	FatTails          bool  `yaml:"fatTails,omitempty" mapstructure:"fatTails"`
	DegreesOfFreedom  int   `yaml:"degreesOfFreedom,omitempty" mapstructure:"degreesOfFreedom"`
	KeepPaths         bool  `yaml:"keepPaths,omitempty" mapstructure:"keepPaths"`
	// AsOf pins the evaluation month (YYYY-MM); empty means the current month.
	AsOf string `yaml:"asOf,omitempty" mapstructure:"asOf"`
}

// CacheConfig controls the result cache and its optional Redis tier.
type CacheConfig struct {
	MaxEntries int               `yaml:"maxEntries,omitempty" mapstructure:"maxEntries"`
	TTL        time.Duration     `yaml:"ttl,omitempty" mapstructure:"ttl"`
	Janitor    string            `yaml:"janitor,omitempty" mapstructure:"janitor"`
	Redis      cache.RedisConfig `yaml:"redis,omitempty" mapstructure:"redis"`
}

// RankingConfig controls the adjustment ranking engine.
type RankingConfig struct {
	MaxCandidates int             `yaml:"maxCandidates,omitempty" mapstructure:"maxCandidates"`
	Concurrency   int             `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	Weights       ranking.Weights `yaml:"weights,omitempty" mapstructure:"weights"`
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. A .env file next to the config or in the working
// directory is loaded first so GOALPROB_* overrides can live there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	loadEnvFile(configPath)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	err := v.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

// loadEnvFile loads the first .env found. Variables already set win.
func loadEnvFile(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." {
		candidates = append([]string{filepath.Join(dir, ".env")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("output.format", constants.OutputFormatPretty)

	v.SetDefault("simulation.iterations", constants.DefaultIterations)
	v.SetDefault("simulation.seed", constants.DefaultSeed)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.parallelThreshold", constants.DefaultParallelThreshold)
	v.SetDefault("simulation.fatTails", false)
	v.SetDefault("simulation.keepPaths", true)
	v.SetDefault("simulation.asOf", "")

	th := analyzer.DefaultThresholds()
	v.SetDefault("scoring.excessBonus", th.ExcessBonus)
	v.SetDefault("scoring.excessFull", th.ExcessFull)
	v.SetDefault("scoring.nearBand", th.NearBand)
	v.SetDefault("scoring.nearLow", th.NearLow)
	v.SetDefault("scoring.nearHigh", th.NearHigh)
	v.SetDefault("scoring.farBand", th.FarBand)
	v.SetDefault("scoring.farLow", th.FarLow)
	v.SetDefault("scoring.floor", th.Floor)

	v.SetDefault("cache.maxEntries", constants.DefaultCacheEntries)
	v.SetDefault("cache.ttl", constants.DefaultCacheTTL)
	v.SetDefault("cache.janitor", constants.DefaultJanitorSchedule)
	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", constants.DefaultRedisPrefix)

	w := ranking.DefaultWeights()
	v.SetDefault("ranking.maxCandidates", constants.DefaultMaxCandidates)
	v.SetDefault("ranking.concurrency", constants.DefaultRankingConcurrency)
	v.SetDefault("ranking.weights.impact", w.Impact)
	v.SetDefault("ranking.weights.ease", w.Ease)
	v.SetDefault("ranking.weights.burden", w.Burden)
	v.SetDefault("ranking.weights.tax", w.Tax)
}

// Now returns the clock the engines should use: the pinned AsOf month when
// set, otherwise time.Now.
func (s SimulationConfig) Now() (func() time.Time, error) {
	if s.AsOf == "" {
		return time.Now, nil
	}
	asOf, err := datetime.ParseMonth(s.AsOf)
	if err != nil {
		return nil, fmt.Errorf("simulation.asOf: %w", err)
	}
	return func() time.Time { return asOf }, nil
}

// EngineOptions converts the simulation and scoring sections into engine options.
func (c *Configuration) EngineOptions() (simulation.Options, error) {
	now, err := c.Simulation.Now()
	if err != nil {
		return simulation.Options{}, err
	}
	return simulation.Options{
		Workers:           c.Simulation.Workers,
		ParallelThreshold: c.Simulation.ParallelThreshold,
		FatTails:          c.Simulation.FatTails,
		DegreesOfFreedom:  c.Simulation.DegreesOfFreedom,
		DropPaths:         !c.Simulation.KeepPaths,
		Thresholds:        c.Scoring.WithDefaults(),
		Now:               now,
	}, nil
}

// CacheOptions converts the cache section into cache options backed by store.
func (c *Configuration) CacheOptions(store cache.Store) cache.Options {
	return cache.Options{
		MaxEntries: c.Cache.MaxEntries,
		TTL:        c.Cache.TTL,
		Store:      store,
	}
}

// RankingOptions converts the ranking section into ranking engine options.
func (c *Configuration) RankingOptions() ranking.Config {
	return ranking.Config{
		MaxCandidates: c.Ranking.MaxCandidates,
		Concurrency:   c.Ranking.Concurrency,
		Weights:       c.Ranking.Weights,
		Iterations:    c.Simulation.Iterations,
		Seed:          c.Simulation.Seed,
	}
}

// Validate returns an error for settings the engines cannot run with.
func (c *Configuration) Validate() error {
	var errs []error

	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Simulation.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("simulation.iterations must be positive, got %d", c.Simulation.Iterations))
	}
	if c.Simulation.Workers < 0 {
		errs = append(errs, fmt.Errorf("simulation.workers must not be negative, got %d", c.Simulation.Workers))
	}
	if _, err := c.Simulation.Now(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Scoring.WithDefaults().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.maxEntries must not be negative, got %d", c.Cache.MaxEntries))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Address == "" {
		errs = append(errs, errors.New("cache.redis.address is required when redis is enabled"))
	}
	if err := c.Ranking.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Params(); err != nil {
		errs = append(errs, fmt.Errorf("parameters: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	asOf := c.Simulation.AsOf
	if asOf == "" {
		asOf = time.Now().Format(DateTimeLayout)
	}

	validator := validation.ConfigValidator{
		AsOf:                asOf,
		Iterations:          c.Simulation.Iterations,
		MinStableIterations: constants.MinStableIterations,
	}
	if c.Goal.ID != "" {
		validator.Goals = append(validator.Goals, validation.GoalConfig{
			ID:                  c.Goal.ID,
			TargetDate:          c.Goal.TargetDate,
			CurrentAmount:       c.Goal.CurrentAmount,
			TargetAmount:        c.Goal.TargetAmount,
			MonthlyContribution: c.Goal.MonthlyContribution,
		})
	}

	warnings := validator.ValidateAll()
	if c.Simulation.KeepPaths && c.Simulation.Iterations > keepPathsWarnIterations {
		warnings = append(warnings, fmt.Sprintf("simulation.keepPaths retains all %d trajectories in memory",
			c.Simulation.Iterations))
	}
	return warnings
}
