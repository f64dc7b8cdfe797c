// Package arena provides the slot storage behind the ancestry cache.
//
// Slots are stored as a structure of arrays: one contiguous block of float64
// values (Width values per slot), one int32 ancestor reference per slot and one
// uint32 liveness stamp per slot. Slot indices are stable: growth appends new
// slots at the end and never moves existing ones.
//
// # Generations
//
// A slot is live if its stamp equals the caller's current generation. Slots
// added by growth carry stamp 0, which is below every generation the cache
// ever uses, so they start out free.
//
// # Concurrency
//
// Slots is not safe for concurrent mutation. Concurrent reads of a Slots that
// is not being mutated are safe.
package arena
