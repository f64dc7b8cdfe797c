// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("runs/exp-42/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	mgr := checkpoint.NewManager(store)
//	name, err := mgr.Save(ctx, cache)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large snapshots
//   - CRC32C integrity checks on upload
//   - Conditional writes (If-None-Match) so checkpoints are never overwritten
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//
// DDBCommitStore layers a DynamoDB commit log over any BlobStore to give the
// CURRENT pointer compare-and-swap semantics.
package s3
