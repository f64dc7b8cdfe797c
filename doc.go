// Package lineage provides an ancestry cache for sequential Monte Carlo
// particle filters.
//
// A particle filter carries P trajectories through T time steps. Resampling
// collapses most lineages onto a few common ancestors, so storing the full
// P×T history wastes memory. Cache stores only the particle states that are
// still reachable from the current population and reclaims the slots of
// extinct lineages, while any live trajectory can still be reconstructed
// exactly back to its root.
//
// # Quick Start
//
//	c, _ := lineage.New(2) // two state variables per particle
//
//	// t=0: three roots, no ancestors
//	c.WriteState(0, []float64{0, 0, 1, 1, 2, 2}, nil, false)
//
//	// t=1: every particle descends from particle 0 of t=0
//	c.WriteState(1, []float64{3, 3, 4, 4, 5, 5}, []int{0, 0, 0}, true)
//
//	traj := c.Trajectory(2) // [0 0 5 5], time-major
//
// # Storage Model
//
// Slots live in a single growable arena. Each slot holds Width() values, the
// index of its ancestor slot and a liveness stamp. A slot is live iff its
// stamp equals the current generation. The generation only advances when a
// reachability sweep runs, which happens on the first write and on writes
// after resampling when the free slots cannot hold the incoming batch.
// Storage grows by doubling and slots never move once written.
//
// New particles are placed by a rotating cursor that scans circularly for
// runs of free slots and fills each run in one copy.
//
// # Errors
//
// Misuse by the driver (non-sequential time index, mismatched batch lengths,
// out-of-range particle index, undersized output buffer, reading an empty
// cache) panics with a *ContractError. Storage exhaustion during growth
// panics with an error wrapping ErrMemoryExhausted. Snapshot I/O returns
// ordinary errors.
//
// # Concurrency
//
// A Cache is not safe for concurrent mutation. Trajectory reads against a
// cache that is not being written are safe to run concurrently; see
// ExportTrajectories.
//
// # Persistence
//
// WriteTo and ReadFrom serialize the complete durable state, so a restored
// cache reproduces every subsequent trajectory read. Package checkpoint
// stores snapshots in any blobstore.BlobStore.
package lineage
