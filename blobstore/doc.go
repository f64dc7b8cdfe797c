// Package blobstore provides storage abstraction for lineage snapshots.
//
// BlobStore is the interface for reading and writing immutable blobs
// (checkpoints and their CURRENT pointer).
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral runs
//   - LocalStore: local filesystem with mmap reads and atomic writes
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB for an atomic CURRENT pointer
//   - minio.Store: MinIO and other S3-compatible services
//   - badger.Store: embedded BadgerDB key-value store
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs are read through ReadAt or ReadRange; NewReader adapts a Blob to
// io.Reader for streaming decoders.
package blobstore
