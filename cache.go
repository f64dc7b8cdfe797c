package lineage

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/lineage/internal/arena"
)

// Cache stores the ancestry of a particle population.
//
// The zero value is not usable; create caches with New.
type Cache struct {
	slots *arena.Slots

	// current maps live particle index to slot for the last written batch.
	current []int32
	// scratch holds remapped ancestors during a write.
	scratch []int32

	generation uint32
	size       int
	occupied   int
	cursor     int
	lastWrite  time.Duration

	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// New creates an empty cache holding width values per particle.
func New(width int, optFns ...Option) (*Cache, error) {
	if width <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	opts := applyOptions(optFns)

	var arenaOpts []arena.Option
	if opts.controller != nil {
		arenaOpts = append(arenaOpts, arena.WithMemoryAcquirer(opts.controller))
	}

	slots, err := arena.New(width, arenaOpts...)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		slots:   slots,
		opts:    opts,
		logger:  opts.logger.WithWidth(width),
		metrics: opts.metricsCollector,
	}

	if opts.initialCapacity > 0 {
		if err := slots.Grow(context.Background(), opts.initialCapacity); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMemoryExhausted, err)
		}
	}

	return c, nil
}

// Width returns the number of values per particle.
func (c *Cache) Width() int {
	return c.slots.Width()
}

// Size returns the number of time steps recorded.
func (c *Cache) Size() int {
	return c.size
}

// Particles returns the number of particles in the current set.
func (c *Cache) Particles() int {
	return len(c.current)
}

// Generation returns the generation counter. It advances only when a
// reachability sweep runs.
func (c *Cache) Generation() uint32 {
	return c.generation
}

// Clear discards all particles and resets the cache to its initial state.
// Slot storage is kept for reuse.
func (c *Cache) Clear() {
	c.slots.ClearStamps()
	c.current = nil
	c.generation = 0
	c.size = 0
	c.occupied = 0
	c.cursor = 0
	c.lastWrite = 0
}

// Empty clears the cache and releases its slot storage.
func (c *Cache) Empty() {
	c.Clear()
	c.slots.Free()
	c.scratch = nil
}

// View returns a shallow copy sharing the same slot storage.
//
// The view is only valid for reads while neither cache is mutated; writing
// through either one invalidates the other.
func (c *Cache) View() *Cache {
	v := *c
	return &v
}

// Clone returns a deep copy of the cache. The copy can be mutated
// independently. Clone panics with ErrMemoryExhausted if the memory
// budget refuses the copy.
func (c *Cache) Clone() *Cache {
	slots, err := c.slots.Clone(context.Background())
	if err != nil {
		panic(fmt.Errorf("%w: clone: %w", ErrMemoryExhausted, err))
	}

	d := *c
	d.slots = slots
	d.current = append([]int32(nil), c.current...)
	d.scratch = nil
	return &d
}

// Assign replaces the contents of c with a deep copy of src.
// Storage previously held by c is released first.
func (c *Cache) Assign(src *Cache) {
	if c == src {
		return
	}

	slots, err := src.slots.Clone(context.Background())
	if err != nil {
		panic(fmt.Errorf("%w: assign: %w", ErrMemoryExhausted, err))
	}

	c.slots.Free()
	c.slots = slots
	c.current = append(c.current[:0:0], src.current...)
	c.scratch = nil
	c.generation = src.generation
	c.size = src.size
	c.occupied = src.occupied
	c.cursor = src.cursor
	c.lastWrite = src.lastWrite
	c.logger = c.opts.logger.WithWidth(src.Width())
}

// Swap exchanges the complete state of c and o.
func (c *Cache) Swap(o *Cache) {
	*c, *o = *o, *c
}

func (c *Cache) String() string {
	return fmt.Sprintf("Cache{t: %d, particles: %d, slots: %d, nodes: %d, generation: %d}",
		c.size, len(c.current), c.slots.Len(), c.occupied, c.generation)
}
