package lineage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lineage/internal/arena"
)

// ReadTrajectory reconstructs the trajectory of live particle p into out.
//
// out must hold at least Width()*Size() values. The state at time t is
// written to out[t*Width():(t+1)*Width()]. ReadTrajectory does not modify
// the cache and may run concurrently with other reads.
func (c *Cache) ReadTrajectory(p int, out []float64) {
	const op = "ReadTrajectory"

	if c.size == 0 {
		panic(violation(op, ErrEmpty, "no state written"))
	}
	if p < 0 || p >= len(c.current) {
		panic(violation(op, ErrIndexOutOfRange, "p=%d, particles=%d", p, len(c.current)))
	}
	width := c.slots.Width()
	if len(out) < width*c.size {
		panic(violation(op, ErrBufferTooSmall, "len=%d, need %d", len(out), width*c.size))
	}

	t := c.size - 1
	for slot := c.current[p]; slot != arena.NoAncestor; slot = c.slots.Ancestor(int(slot)) {
		if t < 0 {
			panic(violation(op, ErrCorruptChain, "chain of particle %d longer than %d", p, c.size))
		}
		copy(out[t*width:(t+1)*width], c.slots.Row(int(slot)))
		t--
	}
	if t != -1 {
		panic(violation(op, ErrCorruptChain, "chain of particle %d ended %d steps early", p, t+1))
	}
}

// ReadState copies the most recent state of live particle p into out, which
// must hold at least Width() values. It costs one row copy regardless of
// Size().
func (c *Cache) ReadState(p int, out []float64) {
	const op = "ReadState"

	if c.size == 0 {
		panic(violation(op, ErrEmpty, "no state written"))
	}
	if p < 0 || p >= len(c.current) {
		panic(violation(op, ErrIndexOutOfRange, "p=%d, particles=%d", p, len(c.current)))
	}
	if len(out) < c.slots.Width() {
		panic(violation(op, ErrBufferTooSmall, "len=%d, need %d", len(out), c.slots.Width()))
	}
	copy(out, c.slots.Row(int(c.current[p])))
}

// Trajectory returns a newly allocated trajectory of live particle p.
func (c *Cache) Trajectory(p int) []float64 {
	out := make([]float64, c.slots.Width()*c.size)
	c.ReadTrajectory(p, out)
	return out
}

// ExportTrajectories reads the trajectories of the given particles using up
// to workers goroutines. Result i belongs to indices[i].
//
// Unlike ReadTrajectory, invalid indices are reported as an error wrapping
// ErrIndexOutOfRange or ErrEmpty. The cache must not be mutated while the
// export runs.
func (c *Cache) ExportTrajectories(ctx context.Context, indices []int, workers int) (_ [][]float64, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordExport(len(indices), time.Since(start), err)
	}()

	if len(indices) == 0 {
		return nil, nil
	}
	if c.size == 0 {
		return nil, fmt.Errorf("lineage: export: %w", ErrEmpty)
	}
	for _, p := range indices {
		if p < 0 || p >= len(c.current) {
			return nil, fmt.Errorf("lineage: export: %w: p=%d, particles=%d", ErrIndexOutOfRange, p, len(c.current))
		}
	}

	if workers <= 0 {
		workers = 1
	}

	out := make([][]float64, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, p := range indices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.Trajectory(p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
