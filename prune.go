package lineage

import (
	"context"
	"time"

	"github.com/hupe1980/lineage/internal/arena"
)

// prune runs a reachability sweep if one is due before writing a batch of n
// particles with the given ancestors.
//
// A sweep is due on the first write, and after resampling when the free
// slots cannot hold the batch. Without resampling every lineage is still
// represented, so the stamps of the last sweep stay valid.
func (c *Cache) prune(n int, ancestors []int, resampled bool) {
	if c.generation != 0 && (!resampled || c.slots.Len()-c.occupied >= n) {
		return
	}

	start := time.Now()

	c.generation++
	c.occupied = 0

	if len(c.current) > 0 {
		for _, a := range ancestors {
			c.mark(c.current[a])
		}
	}

	c.metrics.RecordPrune(c.occupied, c.slots.Len(), time.Since(start))
	c.logger.LogPrune(context.Background(), c.generation, c.occupied, c.slots.Len())
}

// mark stamps the chain ending at slot with the current generation, stopping
// at the root or at the first slot this sweep already reached. Repeated
// ancestors therefore cost one comparison each.
func (c *Cache) mark(slot int32) {
	for slot != arena.NoAncestor && c.slots.Stamp(int(slot)) < c.generation {
		c.slots.SetStamp(int(slot), c.generation)
		c.occupied++
		slot = c.slots.Ancestor(int(slot))
	}
}

// freeBelow returns the stamp below which a slot counts as free.
// Before the first sweep every slot is free.
func (c *Cache) freeBelow() uint32 {
	if c.generation == 0 {
		return 1
	}
	return c.generation
}
