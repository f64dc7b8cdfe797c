package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// Record is one exported trajectory.
type Record struct {
	Particle int         `json:"particle"`
	States   [][]float64 `json:"states"` // States[t] is the state at time t
}

// NewRecord splits a time-major trajectory into per-step rows.
func NewRecord(particle, width int, trajectory []float64) Record {
	steps := len(trajectory) / width
	states := make([][]float64, steps)
	for t := range states {
		states[t] = trajectory[t*width : (t+1)*width : (t+1)*width]
	}
	return Record{Particle: particle, States: states}
}

// LineWriter writes values as newline-delimited encodings.
type LineWriter struct {
	w     *bufio.Writer
	codec Codec
	n     int
}

// NewLineWriter returns a LineWriter using c, or Default if c is nil.
func NewLineWriter(w io.Writer, c Codec) *LineWriter {
	if c == nil {
		c = Default
	}
	return &LineWriter{w: bufio.NewWriter(w), codec: c}
}

// Write encodes v as one line.
func (lw *LineWriter) Write(v any) error {
	b, err := lw.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("codec %s: line %d: %w", lw.codec.Name(), lw.n+1, err)
	}
	if bytes.IndexByte(b, '\n') >= 0 {
		return fmt.Errorf("codec %s: line %d: encoding spans lines", lw.codec.Name(), lw.n+1)
	}
	if _, err := lw.w.Write(b); err != nil {
		return err
	}
	if err := lw.w.WriteByte('\n'); err != nil {
		return err
	}
	lw.n++
	return nil
}

// Lines returns the number of lines written.
func (lw *LineWriter) Lines() int {
	return lw.n
}

// Flush writes buffered lines to the underlying writer.
func (lw *LineWriter) Flush() error {
	return lw.w.Flush()
}

// ReadLines decodes every line of r into a fresh T and calls fn with it.
func ReadLines[T any](r io.Reader, c Codec, fn func(T) error) error {
	if c == nil {
		c = Default
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)

	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var v T
		if err := c.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("codec %s: line %d: %w", c.Name(), line, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}
