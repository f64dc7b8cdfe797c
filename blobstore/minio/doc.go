// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object store. This package uses the MinIO Go
// client, so it also works against Ceph, SeaweedFS, Garage, and other
// S3-compatible systems without pulling in the AWS SDK.
//
// # Basic Usage
//
//	store, err := minioblob.New(minioblob.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "checkpoints",
//	    Prefix:    "runs/exp-42/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr := checkpoint.NewManager(store)
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
