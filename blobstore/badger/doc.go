// Package badger provides a BlobStore backed by an embedded BadgerDB.
//
// Each blob is stored as a single value under its name. This suits
// single-host runs that want crash-safe checkpoints without a filesystem
// layout of their own, and tests that want a real store without disk I/O
// (see InMemoryConfig).
//
//	store, err := badger.Open(badger.DefaultConfig("/var/lib/lineage"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	mgr := checkpoint.NewManager(store)
package badger
