// Package testutil provides testing utilities for lineage.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random particle batches and ancestor
// vectors, and a naive full-history oracle to check trajectory reads against.
//
// # Random Batches
//
//	rng := testutil.NewRNG(seed)
//	states := rng.Batch(particles, width)   // uniform [0, 1)
//	ancestors := rng.Ancestors(particles, previous)
//
// # Oracle
//
//	h := testutil.NewHistory(width)
//	h.Append(states, ancestors)
//	want := h.Trajectory(p)
package testutil
