package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound reports a missing blob. Backends return errors that match it
// under errors.Is; it is os.ErrNotExist so file system errors match too.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable blobs such as cache
// snapshots. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a blob for streaming writes. The blob becomes visible
	// under name when the returned WritableBlob is closed successfully.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at off, with io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser

	// Sync flushes buffered data to stable storage where supported.
	Sync() error
}

// Mappable is implemented by blobs whose whole content is already in memory.
// The returned slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// Aborter is an optional interface for WritableBlobs whose partial content
// can be discarded instead of committed.
type Aborter interface {
	Abort(ctx context.Context) error
}
