package batch

// Chunk is a contiguous range of iterations handled by one worker.
type Chunk struct {
	Index int
	Start int
	Count int
}

// End returns the exclusive end of the chunk's iteration range.
func (c Chunk) End() int {
	return c.Start + c.Count
}

// Partition splits iterations into at most workers near-equal, ordered chunks.
// The first iterations%workers chunks carry one extra iteration. It returns nil
// when iterations is not positive.
func Partition(iterations, workers int) []Chunk {
	if iterations <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > iterations {
		workers = iterations
	}
	base := iterations / workers
	rem := iterations % workers

	chunks := make([]Chunk, workers)
	start := 0
	for i := range chunks {
		count := base
		if i < rem {
			count++
		}
		chunks[i] = Chunk{Index: i, Start: start, Count: count}
		start += count
	}
	return chunks
}

// TrajectorySeed derives the seed of the trajectory at index from the base
// seed with a splitmix64 step, so each trajectory's draws depend only on
// (base, index) and never on how iterations were partitioned.
func TrajectorySeed(base int64, index int) int64 {
	z := uint64(base) + uint64(index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
