// Package batch runs many independent trajectories for one simulation request,
// fanning chunks of iterations out to a bounded set of workers.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/iwvelando/goal-probability/internal/projector"
	"github.com/iwvelando/goal-probability/internal/sampler"
	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config controls batch execution.
type Config struct {
	// Workers bounds concurrent chunks; zero means runtime.NumCPU().
	Workers int
	// ParallelThreshold is the iteration count above which chunks fan out.
	ParallelThreshold int
	// FatTails draws Student-t shocks instead of normal ones.
	FatTails         bool
	DegreesOfFreedom int
}

// Job is one batch of trajectories.
type Job struct {
	Plan       projector.Plan
	Assets     []sampler.AssetParams
	Iterations int
	Seed       int64
	KeepSeries bool
}

// Output holds the merged trajectories in iteration order.
type Output struct {
	Finals []float64
	Series [][]float64
	Chunks int
}

type chunkFunc func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error)

// Runner executes Jobs.
type Runner struct {
	logger   *zap.Logger
	cfg      Config
	runChunk chunkFunc
}

// NewRunner creates a Runner, filling unset config fields with defaults.
func NewRunner(logger *zap.Logger, cfg Config) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = constants.DefaultParallelThreshold
	}
	if cfg.DegreesOfFreedom <= 0 {
		cfg.DegreesOfFreedom = sampler.DefaultDegreesOfFreedom
	}
	r := &Runner{logger: logger, cfg: cfg}
	r.runChunk = r.simulateChunk
	return r
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run simulates job.Iterations trajectories. Input problems are returned as
// ConfigurationErrors; a failing chunk aborts the batch with a SimulationError
// naming it.
func (r *Runner) Run(ctx context.Context, job Job) (*Output, error) {
	if job.Iterations <= 0 {
		return nil, simerr.Configf("simulation_iterations", "must be positive, got %d", job.Iterations)
	}
	if err := sampler.Validate(job.Assets); err != nil {
		return nil, err
	}
	if err := job.Plan.Validate(); err != nil {
		return nil, simerr.Configf("plan", "%v", err)
	}
	if len(job.Assets) != len(job.Plan.Assets) {
		return nil, simerr.Configf("plan", "%d asset parameter rows for %d asset classes", len(job.Assets), len(job.Plan.Assets))
	}

	workers := 1
	if job.Iterations > r.cfg.ParallelThreshold {
		workers = r.cfg.Workers
	}
	chunks := Partition(job.Iterations, workers)
	results := make([][]projector.Trajectory, len(chunks))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = &simerr.SimulationError{Chunk: chunk.Index, Err: fmt.Errorf("panic: %v", rec)}
				}
			}()
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			trajectories, runErr := r.runChunk(gctx, chunk, job)
			if runErr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return &simerr.SimulationError{Chunk: chunk.Index, Err: runErr}
			}
			if len(trajectories) != chunk.Count {
				return &simerr.SimulationError{Chunk: chunk.Index, Err: fmt.Errorf("produced %d of %d trajectories", len(trajectories), chunk.Count)}
			}
			results[chunk.Index] = trajectories
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("simulation batch failed",
			zap.String("op", "batch.Run"),
			zap.Int("iterations", job.Iterations),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return nil, err
	}

	out := &Output{Finals: make([]float64, 0, job.Iterations), Chunks: len(chunks)}
	if job.KeepSeries {
		out.Series = make([][]float64, 0, job.Iterations)
	}
	for _, trajectories := range results {
		for _, traj := range trajectories {
			out.Finals = append(out.Finals, traj.Final)
			if job.KeepSeries {
				out.Series = append(out.Series, traj.Series)
			}
		}
	}

	r.logger.Debug("simulation batch complete",
		zap.String("op", "batch.Run"),
		zap.Int("iterations", job.Iterations),
		zap.Int("chunks", len(chunks)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func (r *Runner) simulateChunk(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
	var opts []sampler.Option
	if r.cfg.FatTails {
		opts = append(opts, sampler.WithFatTails(r.cfg.DegreesOfFreedom))
	}
	out := make([]projector.Trajectory, 0, chunk.Count)
	for i := chunk.Start; i < chunk.End(); i++ {
		if (i-chunk.Start)%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		returns, err := sampler.New(TrajectorySeed(job.Seed, i), opts...).Sample(job.Assets, job.Plan.Periods)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		traj, err := projector.Project(job.Plan, returns, job.KeepSeries)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
		out = append(out, traj)
	}
	return out, nil
}
