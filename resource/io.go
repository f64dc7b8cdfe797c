package resource

import (
	"context"
	"io"
)

// ThrottleWriter returns a writer that waits for IO budget before each write.
// With a nil controller or no IO limit, w is returned unchanged.
func (c *Controller) ThrottleWriter(ctx context.Context, w io.Writer) io.Writer {
	if c == nil || c.ioLimiter == nil {
		return w
	}
	return &throttledWriter{ctx: ctx, w: w, c: c}
}

// ThrottleReader returns a reader that charges the IO budget for every byte
// it delivers. With a nil controller or no IO limit, r is returned unchanged.
func (c *Controller) ThrottleReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, c: c}
}

type throttledWriter struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

func (t *throttledWriter) Write(p []byte) (int, error) {
	if err := t.c.AcquireIO(t.ctx, len(p)); err != nil {
		return 0, err
	}
	return t.w.Write(p)
}

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// Read charges after the fact; the size of a read is not known up front.
func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.c.AcquireIO(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
