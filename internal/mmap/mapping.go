package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// Hint tells the kernel how a region will be read.
type Hint uint8

const (
	HintNone       Hint = iota
	HintSequential      // read once, front to back
	HintWillNeed        // prefetch the whole file now
)

var (
	ErrClosed    = errors.New("mmap: region closed")
	ErrTooLarge  = errors.New("mmap: file does not fit the address space")
	ErrBadOffset = errors.New("mmap: negative offset")
)

// Region is a read-only view of a whole file. Reads are safe for concurrent
// use; Bytes must not be used after Close.
type Region struct {
	data   []byte
	unmap  func([]byte) error
	closed atomic.Bool
}

// Map maps the file at path and applies the given hints.
func Map(path string, hints ...Hint) (*Region, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if int64(int(size)) != size {
		return nil, ErrTooLarge
	}
	if size == 0 {
		return &Region{}, nil
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	r := &Region{data: data, unmap: unmap}
	for _, h := range hints {
		if err := osAdvise(data, h); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Close releases the mapping. Subsequent calls return nil.
func (r *Region) Close() error {
	if r.closed.Swap(true) || r.data == nil {
		return nil
	}
	return r.unmap(r.data)
}

// Bytes returns the mapped file, or nil once closed.
func (r *Region) Bytes() []byte {
	if r.closed.Load() {
		return nil
	}
	return r.data
}

// Len returns the file size in bytes.
func (r *Region) Len() int {
	return len(r.data)
}

// ReadAt implements io.ReaderAt.
func (r *Region) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case r.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrBadOffset
	case off >= int64(len(r.data)):
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
