// Package simulation is the public entry point for goal probability
// evaluation. It resolves a goal and parameter snapshot into a simulation
// request, answers from the result cache when it can and otherwise runs the
// batch runner and analyzer.
package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/batch"
	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/simerr"
	"go.uber.org/zap"
)

// Options configures an Engine.
type Options struct {
	Workers           int
	ParallelThreshold int
	FatTails          bool
	DegreesOfFreedom  int
	// DropPaths discards per-month series. Results then carry no percentile
	// paths and no drawdown.
	DropPaths  bool
	Thresholds analyzer.Thresholds
	// Now supplies the evaluation date used to compute horizons.
	Now func() time.Time
}

// Evaluator is the evaluation surface other components depend on.
type Evaluator interface {
	Evaluate(ctx context.Context, g goal.Goal, p params.Set, iterations int, seed int64) (*analyzer.Result, error)
}

type batchRunner interface {
	Run(ctx context.Context, job batch.Job) (*batch.Output, error)
}

// Engine evaluates goals. It is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
	cache  *cache.Cache
	runner batchRunner
	opts   Options
}

var _ Evaluator = (*Engine)(nil)

// NewEngine creates an Engine. A nil cache disables caching.
func NewEngine(logger *zap.Logger, c *cache.Cache, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Thresholds = opts.Thresholds.WithDefaults()
	return &Engine{
		logger: logger,
		cache:  c,
		runner: batch.NewRunner(logger, batch.Config{
			Workers:           opts.Workers,
			ParallelThreshold: opts.ParallelThreshold,
			FatTails:          opts.FatTails,
			DegreesOfFreedom:  opts.DegreesOfFreedom,
		}),
		opts: opts,
	}
}

// Cache returns the engine's result cache, which may be nil.
func (e *Engine) Cache() *cache.Cache {
	return e.cache
}

// AsOf returns the engine's current evaluation date.
func (e *Engine) AsOf() time.Time {
	return e.opts.Now()
}

// Evaluate returns the simulation result for g under p. Bad input yields a
// ConfigurationError and is never cached; a failed batch yields a
// SimulationError rather than a zero probability.
func (e *Engine) Evaluate(ctx context.Context, g goal.Goal, p params.Set, iterations int, seed int64) (*analyzer.Result, error) {
	req, err := e.Resolve(g, p, iterations, seed)
	if err != nil {
		return nil, err
	}

	key, fpErr := req.Fingerprint()
	if fpErr != nil {
		e.logger.Warn("cannot fingerprint request, bypassing cache",
			zap.String("op", "simulation.Evaluate"),
			zap.String("goal", g.ID),
			zap.Error(fpErr),
		)
	}
	useCache := e.cache != nil && fpErr == nil

	if useCache {
		if res, ok := e.cache.Get(ctx, key); ok {
			e.logger.Debug("cache hit",
				zap.String("op", "simulation.Evaluate"),
				zap.String("goal", g.ID),
				zap.String("fingerprint", key),
			)
			return res, nil
		}
	}

	res, err := e.compute(ctx, req)
	if err != nil {
		level := e.logger.Error
		if simerr.IsConfiguration(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			level = e.logger.Warn
		}
		level("evaluation failed",
			zap.String("op", "simulation.Evaluate"),
			zap.String("goal", g.ID),
			zap.Error(err),
		)
		return nil, err
	}
	res.Fingerprint = key

	if useCache {
		e.cache.Set(ctx, key, res)
	}
	e.logger.Debug("evaluated goal",
		zap.String("op", "simulation.Evaluate"),
		zap.String("goal", g.ID),
		zap.Int("iterations", req.Iterations),
		zap.Int("horizon_months", req.HorizonMonths),
		zap.Float64("success_probability", res.SuccessProbability),
	)
	return res.Clone(), nil
}

func (e *Engine) compute(ctx context.Context, req *Request) (*analyzer.Result, error) {
	out, err := e.runner.Run(ctx, req.Job())
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(analyzer.Input{
		Finals:           out.Finals,
		Series:           out.Series,
		TargetAmount:     req.Goal.TargetAmount,
		SuccessThreshold: req.Goal.Threshold(),
		Seed:             req.Seed,
		HorizonMonths:    req.HorizonMonths,
		ComputedAt:       e.opts.Now(),
	}, req.Thresholds)
}
