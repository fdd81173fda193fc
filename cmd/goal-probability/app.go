package main

import (
	"context"
	"fmt"

	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/config"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/ranking"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/iwvelando/goal-probability/pkg/validation"
	"go.uber.org/zap"
)

// app holds the engines assembled from one configuration file.
type app struct {
	conf         *config.Configuration
	logger       *zap.Logger
	outputFormat string
	params       params.Set
	cache        *cache.Cache
	store        *cache.RedisStore
	janitor      *cache.Janitor
	sim          *simulation.Engine
	ranker       *ranking.Engine
}

// newApp loads the configuration and wires the cache, simulation engine and
// ranking engine. logging overrides the config file's logging section field
// by field when non-empty.
func newApp(ctx context.Context, opts *rootOptions, logging config.LoggingConfig) (*app, error) {
	conf, err := config.LoadConfiguration(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at %s: %w", opts.configPath, err)
	}

	loggingConfig := conf.Logging
	if logging.Level != "" {
		loggingConfig.Level = logging.Level
	}
	if logging.Format != "" {
		loggingConfig.Format = logging.Format
	}
	if logging.OutputFile != "" {
		loggingConfig.OutputFile = logging.OutputFile
	}
	logger, err := initializeLogger(loggingConfig, opts.logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{conf: conf, logger: logger}

	// Determine output format (CLI override takes precedence over config)
	a.outputFormat = conf.Output.Format
	if opts.outputFormat != "" {
		a.outputFormat = opts.outputFormat
	}
	if a.outputFormat == "" {
		a.outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(a.outputFormat); err != nil {
		a.Close()
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	a.params, err = conf.Params()
	if err != nil {
		a.Close()
		return nil, err
	}

	var store cache.Store
	if conf.Cache.Redis.Enabled {
		a.store, err = cache.NewRedisStore(ctx, conf.Cache.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = a.store
		logger.Info("redis cache tier enabled",
			zap.String("op", "main"),
			zap.String("address", conf.Cache.Redis.Address),
		)
	}
	a.cache = cache.New(logger, conf.CacheOptions(store))

	engineOpts, err := conf.EngineOptions()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sim = simulation.NewEngine(logger, a.cache, engineOpts)
	a.ranker = ranking.NewEngine(logger, a.sim, conf.RankingOptions())
	return a, nil
}

// goalAndProfile converts the configured goal and profile.
func (a *app) goalAndProfile() (goal.Goal, goal.Profile, error) {
	g, err := a.conf.Goal.ToGoal(a.conf.Profile)
	if err != nil {
		return goal.Goal{}, goal.Profile{}, err
	}
	return g, a.conf.Profile.ToProfile(), nil
}

// startJanitor schedules purging of expired cache entries.
func (a *app) startJanitor() error {
	j, err := cache.StartJanitor(a.logger, a.cache, a.conf.Cache.Janitor)
	if err != nil {
		return err
	}
	a.janitor = j
	return nil
}

// Close stops background work and releases connections.
func (a *app) Close() {
	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close redis store", zap.String("op", "main"), zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
