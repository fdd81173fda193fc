package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/projector"
	"github.com/iwvelando/goal-probability/internal/sampler"
	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testJob(iterations int) Job {
	return Job{
		Plan: projector.Plan{
			StartingCapital: 100000,
			Contributions:   projector.Schedule{Monthly: 5000},
			Assets:          []string{"debt", "equity"},
			Allocation:      goal.Allocation{"equity": 0.6, "debt": 0.4},
			Periods:         60,
		},
		Assets: []sampler.AssetParams{
			{Name: "debt", ExpectedReturn: 0.07, Volatility: 0.05},
			{Name: "equity", ExpectedReturn: 0.12, Volatility: 0.18},
		},
		Iterations: iterations,
		Seed:       42,
		KeepSeries: true,
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
		workers    int
		counts     []int
	}{
		{"even split", 500, 4, []int{125, 125, 125, 125}},
		{"remainder goes first", 10, 3, []int{4, 3, 3}},
		{"more workers than iterations", 2, 8, []int{1, 1}},
		{"zero workers means one", 7, 0, []int{7}},
		{"no iterations", 0, 4, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Partition(tt.iterations, tt.workers)
			require.Len(t, chunks, len(tt.counts))
			next := 0
			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, next, c.Start, "chunks must be contiguous")
				assert.Equal(t, tt.counts[i], c.Count)
				next = c.End()
			}
			if tt.iterations > 0 {
				assert.Equal(t, tt.iterations, next)
			}
		})
	}
}

func TestTrajectorySeedIsStableAndDistinct(t *testing.T) {
	assert.Equal(t, TrajectorySeed(42, 7), TrajectorySeed(42, 7))
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		s := TrajectorySeed(42, i)
		assert.False(t, seen[s], "duplicate seed at %d", i)
		seen[s] = true
	}
	assert.NotEqual(t, TrajectorySeed(42, 0), TrajectorySeed(43, 0))
}

func TestRunIsIndependentOfWorkerCount(t *testing.T) {
	job := testJob(500)

	serial := NewRunner(zap.NewNop(), Config{Workers: 1, ParallelThreshold: 10000})
	parallel := NewRunner(zap.NewNop(), Config{Workers: 7, ParallelThreshold: 200})

	a, err := serial.Run(context.Background(), job)
	require.NoError(t, err)
	b, err := parallel.Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, 1, a.Chunks)
	assert.Equal(t, 7, b.Chunks)
	assert.Equal(t, a.Finals, b.Finals)
	assert.Equal(t, a.Series, b.Series)
	require.Len(t, a.Finals, 500)
	require.Len(t, a.Series, 500)
	assert.Len(t, a.Series[0], 61)
}

func TestRunMergesByChunkIndexNotArrival(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{Workers: 4, ParallelThreshold: 1})
	runner.runChunk = func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
		// Later chunks finish first.
		time.Sleep(time.Duration(4-chunk.Index) * 5 * time.Millisecond)
		out := make([]projector.Trajectory, chunk.Count)
		for i := range out {
			out[i] = projector.Trajectory{Final: float64(chunk.Start + i)}
		}
		return out, nil
	}

	out, err := runner.Run(context.Background(), testJob(40))
	require.NoError(t, err)
	for i, v := range out.Finals {
		assert.Equal(t, float64(i), v)
	}
}

func TestRunWorkerFailureAbortsBatch(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{Workers: 4, ParallelThreshold: 1})
	boom := errors.New("boom")
	runner.runChunk = func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
		if chunk.Index == 2 {
			return nil, boom
		}
		return make([]projector.Trajectory, chunk.Count), nil
	}

	out, err := runner.Run(context.Background(), testJob(400))
	require.Error(t, err)
	assert.Nil(t, out)

	var simErr *simerr.SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, 2, simErr.Chunk)
	assert.ErrorIs(t, err, boom)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{Workers: 2, ParallelThreshold: 1})
	runner.runChunk = func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
		if chunk.Index == 1 {
			panic("index out of range")
		}
		return make([]projector.Trajectory, chunk.Count), nil
	}

	_, err := runner.Run(context.Background(), testJob(10))
	var simErr *simerr.SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, 1, simErr.Chunk)
}

func TestRunDetectsShortChunk(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{Workers: 2, ParallelThreshold: 1})
	runner.runChunk = func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
		return make([]projector.Trajectory, chunk.Count-1), nil
	}
	_, err := runner.Run(context.Background(), testJob(10))
	assert.True(t, simerr.IsSimulation(err))
}

func TestRunRejectsBadInput(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{})

	_, err := runner.Run(context.Background(), testJob(0))
	assert.True(t, simerr.IsConfiguration(err))

	job := testJob(10)
	job.Assets[1].Volatility = -0.1
	_, err = runner.Run(context.Background(), job)
	assert.True(t, simerr.IsConfiguration(err))

	job = testJob(10)
	job.Assets = job.Assets[:1]
	_, err = runner.Run(context.Background(), job)
	assert.True(t, simerr.IsConfiguration(err))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	runner := NewRunner(zap.NewNop(), Config{Workers: 2, ParallelThreshold: 1})
	var calls int32
	runner.runChunk = func(ctx context.Context, chunk Chunk, job Job) ([]projector.Trajectory, error) {
		atomic.AddInt32(&calls, 1)
		return make([]projector.Trajectory, chunk.Count), nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, testJob(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, simerr.IsSimulation(err))
}
