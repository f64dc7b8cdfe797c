// Package checkpoint saves and restores ancestry caches through a
// blobstore.BlobStore.
//
// Each Save streams a snapshot to a new blob named
// ckpt-<sequence>.lin and then points the CURRENT blob at it. A crash
// between the two steps leaves the previous checkpoint current; the
// orphaned blob is removed by the next Prune.
//
//	store := blobstore.NewLocalStore("/var/lib/lineage/run-42")
//	mgr := checkpoint.NewManager(store, checkpoint.WithRetain(3))
//
//	name, err := mgr.Save(ctx, cache)
//	...
//	cache, err = mgr.Restore(ctx)
//
// Throughput and concurrency can be bounded with a resource.Controller.
package checkpoint
