package arena

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NoAncestor marks a slot that is the root of its lineage.
const NoAncestor int32 = -1

// FreeStamp is the stamp carried by slots that have never been written.
const FreeStamp uint32 = 0

// slotOverhead is the per-slot metadata size in bytes (ancestor + stamp).
const slotOverhead = 4 + 4

// MaxSlots limits the slot count so that indices fit in an int32 ancestor reference.
const MaxSlots = 1<<31 - 1

var (
	// ErrInvalidWidth is returned when the slot width is negative.
	ErrInvalidWidth = errors.New("arena: invalid width")
	// ErrMaxSlotsExceeded is returned when growth would exceed MaxSlots.
	ErrMaxSlotsExceeded = errors.New("arena: max slots exceeded")
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

// Stats tracks slot storage usage.
type Stats struct {
	Slots         int    // Current slot count
	Width         int    // Values per slot
	BytesReserved int64  // Bytes held by values and metadata
	Grows         uint64 // Historical: number of growth steps
}

// Slots is a growable block of fixed-width slots with per-slot metadata.
type Slots struct {
	width     int
	values    []float64
	ancestors []int32
	stamps    []uint32
	grows     uint64
	reserved  int64
	acquirer  MemoryAcquirer
}

// Option is a configuration option for Slots.
type Option func(*Slots)

// WithMemoryAcquirer sets the memory acquirer consulted on growth.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(s *Slots) {
		s.acquirer = acquirer
	}
}

// New creates an empty Slots holding width values per slot.
func New(width int, opts ...Option) (*Slots, error) {
	if width < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}

	s := &Slots{width: width}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Width returns the number of values per slot.
func (s *Slots) Width() int {
	return s.width
}

// Len returns the number of slots.
func (s *Slots) Len() int {
	return len(s.stamps)
}

// BytesPerSlot returns the storage cost of a single slot.
func (s *Slots) BytesPerSlot() int64 {
	return int64(s.width)*8 + slotOverhead
}

// Grow extends the storage to n slots, preserving all existing contents.
// New slots are free (FreeStamp) and have no ancestor. Grow never shrinks.
func (s *Slots) Grow(ctx context.Context, n int) error {
	old := len(s.stamps)
	if n <= old {
		return nil
	}
	if n > MaxSlots {
		return fmt.Errorf("%w: %d", ErrMaxSlotsExceeded, n)
	}

	delta := int64(n-old) * s.BytesPerSlot()
	if s.acquirer != nil {
		var cancel context.CancelFunc
		if _, ok := ctx.Deadline(); !ok {
			ctx, cancel = context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
		}
		if err := s.acquirer.AcquireMemory(ctx, delta); err != nil {
			return err
		}
	}

	values := make([]float64, n*s.width)
	copy(values, s.values)

	ancestors := make([]int32, n)
	copy(ancestors, s.ancestors)
	for i := old; i < n; i++ {
		ancestors[i] = NoAncestor
	}

	// make zeroes the tail, which is FreeStamp.
	stamps := make([]uint32, n)
	copy(stamps, s.stamps)

	s.values = values
	s.ancestors = ancestors
	s.stamps = stamps
	s.reserved += delta
	s.grows++
	return nil
}

// Row returns the values of slot i. The returned slice aliases the storage.
func (s *Slots) Row(i int) []float64 {
	off := i * s.width
	return s.values[off : off+s.width : off+s.width]
}

// WriteRun copies len(src)/Width consecutive rows into the slots starting at
// start, setting each slot's ancestor from ancestors and its stamp to stamp.
func (s *Slots) WriteRun(start int, src []float64, ancestors []int32, stamp uint32) {
	n := len(ancestors)
	copy(s.values[start*s.width:(start+n)*s.width], src)
	copy(s.ancestors[start:start+n], ancestors)
	stamps := s.stamps[start : start+n]
	for i := range stamps {
		stamps[i] = stamp
	}
}

// Ancestor returns the ancestor of slot i, or NoAncestor.
func (s *Slots) Ancestor(i int) int32 {
	return s.ancestors[i]
}

// Stamp returns the liveness stamp of slot i.
func (s *Slots) Stamp(i int) uint32 {
	return s.stamps[i]
}

// SetStamp sets the liveness stamp of slot i.
func (s *Slots) SetStamp(i int, stamp uint32) {
	s.stamps[i] = stamp
}

// NextFree returns the first slot at or after from, wrapping around, whose
// stamp is below gen. It returns -1 if no such slot exists.
func (s *Slots) NextFree(from int, gen uint32) int {
	n := len(s.stamps)
	if n == 0 {
		return -1
	}
	if from >= n || from < 0 {
		from = 0
	}
	for i := 0; i < n; i++ {
		q := from + i
		if q >= n {
			q -= n
		}
		if s.stamps[q] < gen {
			return q
		}
	}
	return -1
}

// FreeRunLen returns the length of the run of free slots starting at start,
// capped at limit. The run does not wrap around the end of the storage.
func (s *Slots) FreeRunLen(start, limit int, gen uint32) int {
	n := 0
	for start+n < len(s.stamps) && n < limit && s.stamps[start+n] < gen {
		n++
	}
	return n
}

// FreeRuns calls fn for every maximal run of slots whose stamp is below gen,
// in slot order. Iteration stops early if fn returns false.
func (s *Slots) FreeRuns(gen uint32, fn func(start, length int) bool) {
	start := -1
	for i, st := range s.stamps {
		if st < gen {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if !fn(start, i-start) {
				return
			}
			start = -1
		}
	}
	if start >= 0 {
		fn(start, len(s.stamps)-start)
	}
}

// ClearStamps marks every slot free.
func (s *Slots) ClearStamps() {
	clear(s.stamps)
}

// Clone returns a deep copy. The clone shares the memory acquirer and is
// charged for its own storage.
func (s *Slots) Clone(ctx context.Context) (*Slots, error) {
	c := &Slots{
		width:    s.width,
		acquirer: s.acquirer,
		grows:    s.grows,
	}
	if len(s.stamps) == 0 {
		return c, nil
	}
	if err := c.Grow(ctx, len(s.stamps)); err != nil {
		return nil, err
	}
	copy(c.values, s.values)
	copy(c.ancestors, s.ancestors)
	copy(c.stamps, s.stamps)
	c.grows = s.grows
	return c, nil
}

// Raw exposes the backing arrays for serialization. Callers must not retain
// them across mutations.
func (s *Slots) Raw() (values []float64, ancestors []int32, stamps []uint32) {
	return s.values, s.ancestors, s.stamps
}

// Load replaces the contents with the given arrays, which must describe
// len(stamps) slots of the configured width.
func (s *Slots) Load(ctx context.Context, values []float64, ancestors []int32, stamps []uint32) error {
	n := len(stamps)
	if len(ancestors) != n || len(values) != n*s.width {
		return fmt.Errorf("arena: inconsistent arrays: %d values, %d ancestors, %d stamps (width %d)",
			len(values), len(ancestors), len(stamps), s.width)
	}
	s.Free()
	if err := s.Grow(ctx, n); err != nil {
		return err
	}
	copy(s.values, values)
	copy(s.ancestors, ancestors)
	copy(s.stamps, stamps)
	return nil
}

// Free releases all storage. The Slots can be grown again afterwards.
func (s *Slots) Free() {
	if s.acquirer != nil && s.reserved > 0 {
		s.acquirer.ReleaseMemory(s.reserved)
	}
	s.values = nil
	s.ancestors = nil
	s.stamps = nil
	s.reserved = 0
}

// Stats returns the current storage statistics.
func (s *Slots) Stats() Stats {
	return Stats{
		Slots:         len(s.stamps),
		Width:         s.width,
		BytesReserved: s.reserved,
		Grows:         s.grows,
	}
}

func (s *Slots) String() string {
	return fmt.Sprintf("Slots{slots: %d, width: %d, reserved: %.2f MB, grows: %d}",
		len(s.stamps), s.width, float64(s.reserved)/(1024*1024), s.grows)
}
