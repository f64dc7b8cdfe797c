package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/lineage/internal/arena"
)

// WriteState records the particle states of time step t.
//
// states holds P rows of Width() values each, row-major. ancestors[i] is the
// index, within the previous batch, of the parent of particle i; it is ignored
// (and may be nil) for the first batch. resampled reports whether the driver
// resampled since the previous batch.
//
// t must equal Size(). Violations panic with a *ContractError.
func (c *Cache) WriteState(t int, states []float64, ancestors []int, resampled bool) {
	start := time.Now()

	n := c.validateWrite(t, states, ancestors)

	c.prune(n, ancestors, resampled)
	c.enlarge(n)
	c.write(states, ancestors, n)

	c.lastWrite = time.Since(start)
	c.metrics.RecordWrite(n, c.lastWrite)
	c.logger.LogWrite(context.Background(), t, n, c.lastWrite)
}

func (c *Cache) validateWrite(t int, states []float64, ancestors []int) int {
	const op = "WriteState"

	if t != c.size {
		panic(violation(op, ErrNonSequential, "t=%d, size=%d", t, c.size))
	}

	width := c.slots.Width()
	if len(states) == 0 {
		panic(violation(op, ErrEmptyBatch, "t=%d", t))
	}
	if len(states)%width != 0 {
		panic(violation(op, ErrBatchMismatch, "%d values is not a multiple of width %d", len(states), width))
	}
	n := len(states) / width

	if len(c.current) == 0 {
		if len(ancestors) != 0 && len(ancestors) != n {
			panic(violation(op, ErrBatchMismatch, "%d particles, %d ancestors", n, len(ancestors)))
		}
		return n
	}

	if len(ancestors) != n {
		panic(violation(op, ErrBatchMismatch, "%d particles, %d ancestors", n, len(ancestors)))
	}
	for i, a := range ancestors {
		if a < 0 || a >= len(c.current) {
			panic(violation(op, ErrAncestorOutOfRange, "ancestors[%d]=%d, previous batch has %d particles", i, a, len(c.current)))
		}
	}
	return n
}

// enlarge grows slot storage so that at least n slots are free.
func (c *Cache) enlarge(n int) {
	old := c.slots.Len()
	if c.occupied+n <= old {
		return
	}

	size := 2 * max(old, n)
	if size > arena.MaxSlots {
		size = arena.MaxSlots
	}

	err := c.slots.Grow(context.Background(), size)
	c.metrics.RecordGrow(old, size, err)
	c.logger.LogGrow(context.Background(), old, size, err)
	if err == nil && c.occupied+n > c.slots.Len() {
		err = fmt.Errorf("need %d slots, limit is %d", c.occupied+n, arena.MaxSlots)
	}
	if err != nil {
		panic(fmt.Errorf("%w: grow from %d to %d slots: %w", ErrMemoryExhausted, old, size, err))
	}
}

// write places the batch in runs of free slots starting at the cursor.
func (c *Cache) write(states []float64, ancestors []int, n int) {
	width := c.slots.Width()

	if cap(c.scratch) < n {
		c.scratch = make([]int32, n)
	}
	remapped := c.scratch[:n]
	if len(c.current) == 0 {
		for i := range remapped {
			remapped[i] = arena.NoAncestor
		}
	} else {
		for i, a := range ancestors {
			remapped[i] = c.current[a]
		}
	}

	current := make([]int32, n)
	gen := c.generation
	free := c.freeBelow()

	for p := 0; p < n; {
		q := c.slots.NextFree(c.cursor, free)
		if q < 0 {
			panic(violation("WriteState", ErrMemoryExhausted, "no free slot for particle %d of %d", p, n))
		}
		run := c.slots.FreeRunLen(q, n-p, free)

		c.slots.WriteRun(q, states[p*width:(p+run)*width], remapped[p:p+run], gen)
		for i := 0; i < run; i++ {
			current[p+i] = int32(q + i) // q+run <= MaxSlots
		}

		p += run
		c.occupied += run
		c.cursor = q + run
	}

	c.current = current
	c.size++
}
