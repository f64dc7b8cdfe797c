package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Stats is a point-in-time summary of the cache.
type Stats struct {
	Size             int           // Time steps recorded
	Width            int           // Values per particle
	Particles        int           // Size of the current set
	Slots            int           // Total slots
	Nodes            int           // Occupied slots
	FreeBlocks       int           // Maximal runs of free slots
	LargestFreeBlock int           // Length of the longest free run
	Generation       uint32        // Sweep counter
	Cursor           int           // Allocator position
	BytesReserved    int64         // Slot storage in bytes
	Grows            uint64        // Historical: number of growth steps
	LastWrite        time.Duration // Duration of the last WriteState
}

// NumSlots returns the total number of slots.
func (c *Cache) NumSlots() int {
	return c.slots.Len()
}

// NumNodes returns the number of occupied slots.
func (c *Cache) NumNodes() int {
	return c.occupied
}

// NumFreeBlocks returns the number of maximal runs of free slots.
func (c *Cache) NumFreeBlocks() int {
	blocks := 0
	c.slots.FreeRuns(c.freeBelow(), func(int, int) bool {
		blocks++
		return true
	})
	return blocks
}

// LargestFreeBlock returns the length of the longest run of free slots.
func (c *Cache) LargestFreeBlock() int {
	largest := 0
	c.slots.FreeRuns(c.freeBelow(), func(_, length int) bool {
		largest = max(largest, length)
		return true
	})
	return largest
}

// LiveSlots returns the set of occupied slots.
func (c *Cache) LiveSlots() *roaring.Bitmap {
	live := roaring.New()
	if c.generation == 0 {
		return live
	}
	for i := 0; i < c.slots.Len(); i++ {
		if c.slots.Stamp(i) == c.generation {
			live.Add(uint32(i))
		}
	}
	return live
}

// Stats returns the current statistics.
func (c *Cache) Stats() Stats {
	st := Stats{
		Size:       c.size,
		Width:      c.slots.Width(),
		Particles:  len(c.current),
		Slots:      c.slots.Len(),
		Nodes:      c.occupied,
		Generation: c.generation,
		Cursor:     c.cursor,
		LastWrite:  c.lastWrite,
	}

	c.slots.FreeRuns(c.freeBelow(), func(_, length int) bool {
		st.FreeBlocks++
		st.LargestFreeBlock = max(st.LargestFreeBlock, length)
		return true
	})

	as := c.slots.Stats()
	st.BytesReserved = as.BytesReserved
	st.Grows = as.Grows
	return st
}

// Report logs the current statistics at info level and returns them as a
// single line.
func (c *Cache) Report() string {
	st := c.Stats()

	c.logger.InfoContext(context.Background(), "ancestry cache",
		"t", st.Size,
		"slots", st.Slots,
		"nodes", st.Nodes,
		"free_blocks", st.FreeBlocks,
		"largest_free_block", st.LargestFreeBlock,
		"usecs", st.LastWrite.Microseconds(),
	)

	return fmt.Sprintf("t=%d slots=%d nodes=%d freeBlocks=%d largestFreeBlock=%d usecs=%d",
		st.Size, st.Slots, st.Nodes, st.FreeBlocks, st.LargestFreeBlock, st.LastWrite.Microseconds())
}
