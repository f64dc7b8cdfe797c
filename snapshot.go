package lineage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/bits"
	"time"

	"github.com/hupe1980/lineage/internal/arena"
	"github.com/hupe1980/lineage/internal/conv"
	"github.com/hupe1980/lineage/persistence"
)

// WriteTo writes a snapshot of the complete cache state to w.
// It implements io.WriterTo.
func (c *Cache) WriteTo(w io.Writer) (int64, error) {
	return c.writeSnapshot(w, "stream")
}

// ReadFrom replaces the cache state with the snapshot read from r.
// It implements io.ReaderFrom.
//
// The snapshot must have been written by a cache of the same width. On error
// the cache is left unchanged.
func (c *Cache) ReadFrom(r io.Reader) (int64, error) {
	return c.readSnapshot(r, "stream")
}

// SaveFile atomically writes a snapshot to path.
func (c *Cache) SaveFile(path string) error {
	return persistence.SaveToFile(path, func(w io.Writer) error {
		_, err := c.writeSnapshot(w, path)
		return err
	})
}

// Load creates a cache from the snapshot read from r. The width is taken from
// the snapshot.
func Load(r io.Reader, optFns ...Option) (*Cache, error) {
	header, err := persistence.ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("lineage: load: %w", err)
	}

	c, err := New(int(header.Width), optFns...)
	if err != nil {
		return nil, fmt.Errorf("lineage: load: %w", err)
	}
	if _, err := c.restore(r, header, "stream"); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile creates a cache from the snapshot file at path.
func LoadFile(path string, optFns ...Option) (*Cache, error) {
	var c *Cache
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var err error
		c, err = Load(r, optFns...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) writeSnapshot(w io.Writer, target string) (n int64, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordSnapshot(n, time.Since(start), err)
		c.logger.LogSnapshot(context.Background(), target, n, err)
	}()

	values, ancestors, stamps := c.slots.Raw()

	var payload bytes.Buffer
	payload.Grow(int(persistence.PayloadSizeFor(uint64(len(stamps)), uint64(c.slots.Width()), uint64(len(c.current)))))
	if err := persistence.WriteSlice(&payload, values); err != nil {
		return 0, err
	}
	if err := persistence.WriteSlice(&payload, ancestors); err != nil {
		return 0, err
	}
	if err := persistence.WriteSlice(&payload, stamps); err != nil {
		return 0, err
	}
	if err := persistence.WriteSlice(&payload, c.current); err != nil {
		return 0, err
	}

	block, err := persistence.CompressBlock(payload.Bytes(), c.opts.compression)
	if err != nil {
		return 0, fmt.Errorf("lineage: snapshot: %w", err)
	}

	width, err := conv.Narrow[uint32](c.slots.Width())
	if err != nil {
		return 0, err
	}

	header := &persistence.FileHeader{
		Compression: uint8(c.opts.compression),
		Width:       width,
		Slots:       uint64(c.slots.Len()),
		Particles:   uint64(len(c.current)),
		Steps:       uint64(c.size),
		Occupied:    uint64(c.occupied),
		Cursor:      uint64(c.cursor),
		Generation:  c.generation,
		Checksum:    persistence.ComputeChecksum(block),
		PayloadLen:  uint64(len(block)),
		LastWrite:   int64(c.lastWrite),
	}

	if err := persistence.WriteHeader(w, header); err != nil {
		return 0, fmt.Errorf("lineage: snapshot: %w", err)
	}
	n = persistence.HeaderSize

	written, err := w.Write(block)
	n += int64(written)
	if err != nil {
		return n, fmt.Errorf("lineage: snapshot: %w", err)
	}
	return n, nil
}

func (c *Cache) readSnapshot(r io.Reader, source string) (int64, error) {
	header, err := persistence.ReadHeader(r)
	if err != nil {
		c.logger.LogRestore(context.Background(), source, 0, err)
		return 0, fmt.Errorf("lineage: restore: %w", err)
	}
	if int(header.Width) != c.slots.Width() {
		err := fmt.Errorf("lineage: restore: %w: snapshot %d, cache %d", ErrWidthMismatch, header.Width, c.slots.Width())
		c.logger.LogRestore(context.Background(), source, 0, err)
		return persistence.HeaderSize, err
	}
	return c.restore(r, header, source)
}

// snapshotState is the decoded payload of a snapshot.
type snapshotState struct {
	values    []float64
	ancestors []int32
	stamps    []uint32
	current   []int32
}

func (c *Cache) restore(r io.Reader, header *persistence.FileHeader, source string) (n int64, err error) {
	n = persistence.HeaderSize
	defer func() {
		c.logger.LogRestore(context.Background(), source, int(header.Steps), err)
	}()

	if err := validateHeader(header); err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}

	block, err := io.ReadAll(io.LimitReader(r, int64(header.PayloadLen)))
	n += int64(len(block))
	if err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}
	if uint64(len(block)) != header.PayloadLen {
		return n, fmt.Errorf("lineage: restore: %w: payload truncated at %d of %d bytes",
			persistence.ErrCorrupt, len(block), header.PayloadLen)
	}
	if err := persistence.Verify(block, header.Checksum); err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}

	payload, err := persistence.DecompressBlock(block, persistence.CompressionType(header.Compression), header.PayloadSize())
	if err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}
	if uint64(len(payload)) != header.PayloadSize() {
		return n, fmt.Errorf("lineage: restore: %w: payload is %d bytes, header implies %d",
			persistence.ErrCorrupt, len(payload), header.PayloadSize())
	}

	st, err := decodePayload(payload, header)
	if err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}
	if err := validateState(st, header); err != nil {
		return n, fmt.Errorf("lineage: restore: %w", err)
	}

	slots, err := arena.New(int(header.Width), c.arenaOptions()...)
	if err != nil {
		return n, err
	}
	if err := slots.Load(context.Background(), st.values, st.ancestors, st.stamps); err != nil {
		return n, fmt.Errorf("lineage: restore: %w: %w", ErrMemoryExhausted, err)
	}

	c.slots.Free()
	c.slots = slots
	c.current = st.current
	c.scratch = nil
	c.generation = header.Generation
	c.size = int(header.Steps)
	c.occupied = int(header.Occupied)
	c.cursor = int(header.Cursor)
	c.lastWrite = time.Duration(header.LastWrite)
	return n, nil
}

func (c *Cache) arenaOptions() []arena.Option {
	if c.opts.controller == nil {
		return nil
	}
	return []arena.Option{arena.WithMemoryAcquirer(c.opts.controller)}
}

func validateHeader(h *persistence.FileHeader) error {
	if h.Width == 0 {
		return fmt.Errorf("%w: zero width", persistence.ErrCorrupt)
	}
	if h.Slots > arena.MaxSlots {
		return fmt.Errorf("%w: %d slots", persistence.ErrCorrupt, h.Slots)
	}
	if h.Particles > h.Slots || h.Occupied > h.Slots || h.Cursor > h.Slots {
		return fmt.Errorf("%w: counters exceed %d slots", persistence.ErrCorrupt, h.Slots)
	}
	if (h.Steps == 0) != (h.Particles == 0) {
		return fmt.Errorf("%w: %d steps with %d particles", persistence.ErrCorrupt, h.Steps, h.Particles)
	}
	if h.Particles > 0 && h.Generation == 0 {
		return fmt.Errorf("%w: %d particles before the first sweep", persistence.ErrCorrupt, h.Particles)
	}
	if h.Particles > 0 && h.Steps > h.Slots {
		return fmt.Errorf("%w: %d steps cannot be chained through %d slots", persistence.ErrCorrupt, h.Steps, h.Slots)
	}
	if _, err := conv.Narrow[int](h.Steps); err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrCorrupt, err)
	}
	if !payloadFits(h) {
		return fmt.Errorf("%w: %d slots of width %d overflow the payload size", persistence.ErrCorrupt, h.Slots, h.Width)
	}
	if h.PayloadLen > h.PayloadSize()+16 {
		return fmt.Errorf("%w: payload length %d exceeds %d", persistence.ErrCorrupt, h.PayloadLen, h.PayloadSize()+16)
	}
	return nil
}

// payloadFits reports whether the payload size implied by h is representable
// as an int.
func payloadFits(h *persistence.FileHeader) bool {
	hi, size := bits.Mul64(h.Slots, uint64(h.Width)*8)
	size, c1 := bits.Add64(size, h.Slots*8, 0)
	size, c2 := bits.Add64(size, h.Particles*4, 0)
	return hi == 0 && c1 == 0 && c2 == 0 && size <= math.MaxInt
}

func decodePayload(payload []byte, h *persistence.FileHeader) (*snapshotState, error) {
	slots := int(h.Slots)
	r := bytes.NewReader(payload)

	var (
		st  snapshotState
		err error
	)
	if st.values, err = persistence.ReadSlice[float64](r, slots*int(h.Width)); err != nil {
		return nil, err
	}
	if st.ancestors, err = persistence.ReadSlice[int32](r, slots); err != nil {
		return nil, err
	}
	if st.stamps, err = persistence.ReadSlice[uint32](r, slots); err != nil {
		return nil, err
	}
	if st.current, err = persistence.ReadSlice[int32](r, int(h.Particles)); err != nil {
		return nil, err
	}
	return &st, nil
}

// validateState rejects snapshots whose slots or chains disagree with the
// header, so that every trajectory read after a restore succeeds.
func validateState(st *snapshotState, h *persistence.FileHeader) error {
	slots := int32(h.Slots) //nolint:gosec // bounded by MaxSlots

	live := 0
	for i, a := range st.ancestors {
		if a < arena.NoAncestor || a >= slots {
			return fmt.Errorf("%w: slot %d has ancestor %d", persistence.ErrCorrupt, i, a)
		}
		if st.stamps[i] > h.Generation {
			return fmt.Errorf("%w: slot %d stamped %d after generation %d", persistence.ErrCorrupt, i, st.stamps[i], h.Generation)
		}
		if h.Generation > 0 && st.stamps[i] == h.Generation {
			live++
		}
	}
	if uint64(live) != h.Occupied {
		return fmt.Errorf("%w: %d live slots, header records %d", persistence.ErrCorrupt, live, h.Occupied)
	}

	// Every chain must be live and reach a root after exactly Steps slots.
	// depth memoizes the chain length below each slot so shared prefixes
	// are walked once.
	steps := int32(h.Steps) //nolint:gosec // Steps <= Slots <= MaxSlots
	depth := make([]int32, len(st.ancestors))
	var path []int32
	for p, slot := range st.current {
		if slot < 0 || slot >= slots {
			return fmt.Errorf("%w: particle %d maps to slot %d", persistence.ErrCorrupt, p, slot)
		}

		path = path[:0]
		s := slot
		for s != arena.NoAncestor && depth[s] == 0 {
			if st.stamps[s] != h.Generation {
				return fmt.Errorf("%w: chain of particle %d passes free slot %d", persistence.ErrCorrupt, p, s)
			}
			if int32(len(path)) == steps { //nolint:gosec // bounded by steps
				return fmt.Errorf("%w: chain of particle %d longer than %d steps", persistence.ErrCorrupt, p, steps)
			}
			path = append(path, s)
			s = st.ancestors[s]
		}

		d := int32(0)
		if s != arena.NoAncestor {
			d = depth[s]
		}
		for i := len(path) - 1; i >= 0; i-- {
			d++
			depth[path[i]] = d
		}
		if depth[slot] != steps {
			return fmt.Errorf("%w: chain of particle %d has %d steps, header records %d", persistence.ErrCorrupt, p, depth[slot], steps)
		}
	}
	return nil
}
