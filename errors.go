package lineage

import (
	"errors"
	"fmt"
)

// Contract violations. These indicate a bug in the calling driver and are
// raised as panics carrying a *ContractError that wraps one of them.
var (
	// ErrBatchMismatch indicates the particle count does not match the ancestor count.
	ErrBatchMismatch = errors.New("batch size does not match ancestor count")

	// ErrEmptyBatch indicates a write with no particles.
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrAncestorOutOfRange indicates an ancestor index outside the previous current set.
	ErrAncestorOutOfRange = errors.New("ancestor index out of range")

	// ErrNonSequential indicates a write at a time index other than Size().
	ErrNonSequential = errors.New("time index is not sequential")

	// ErrIndexOutOfRange indicates a particle index outside the current set.
	ErrIndexOutOfRange = errors.New("particle index out of range")

	// ErrBufferTooSmall indicates a trajectory buffer shorter than Width()*Size().
	ErrBufferTooSmall = errors.New("trajectory buffer too small")

	// ErrEmpty indicates a read before any write.
	ErrEmpty = errors.New("cache is empty")

	// ErrCorruptChain indicates an ancestor chain whose length differs from Size().
	ErrCorruptChain = errors.New("ancestor chain length does not match cache size")
)

var (
	// ErrInvalidWidth is returned when a cache is created with a non-positive width.
	ErrInvalidWidth = errors.New("width must be positive")

	// ErrWidthMismatch is returned when a snapshot's width differs from the cache's.
	ErrWidthMismatch = errors.New("width mismatch")

	// ErrMemoryExhausted is raised as a panic when slot storage cannot grow.
	// There is no degraded mode: a cache that cannot grow cannot accept the batch.
	ErrMemoryExhausted = errors.New("slot storage exhausted")
)

// ContractError describes a violated precondition of a cache operation.
//
// The violated condition can be matched with errors.Is against the sentinel
// errors above.
type ContractError struct {
	Op     string
	Err    error
	Detail string
}

func (e *ContractError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("lineage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("lineage: %s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *ContractError) Unwrap() error { return e.Err }

func violation(op string, err error, format string, args ...any) *ContractError {
	return &ContractError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)}
}
