package persistence

import (
	"errors"
	"fmt"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ComputeChecksum returns the CRC-32C of a stored payload block.
func ComputeChecksum(block []byte) uint32 {
	return crc32.Checksum(block, castagnoli)
}

// Verify returns a *ChecksumMismatchError if block does not hash to want.
func Verify(block []byte, want uint32) error {
	if got := ComputeChecksum(block); got != want {
		return &ChecksumMismatchError{Expected: want, Actual: got}
	}
	return nil
}

// ChecksumMismatchError reports a payload whose CRC-32C differs from the one
// recorded in its header. It matches ErrCorrupt under errors.Is.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("persistence: payload checksum 0x%08x, header records 0x%08x", e.Actual, e.Expected)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrCorrupt }

// IsChecksumMismatch reports whether err wraps a *ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var target *ChecksumMismatchError
	return errors.As(err, &target)
}
