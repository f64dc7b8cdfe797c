// Package persistence provides the binary snapshot format for the ancestry cache.
//
// A snapshot is a fixed-size little-endian FileHeader followed by one payload
// block. The payload holds the slot values, ancestor references, liveness
// stamps and the current-set mapping, in that order, and may be compressed
// with LZ4 or ZSTD. The header carries a CRC-32C of the stored block.
//
// On little-endian platforms slices are written and read without per-element
// conversion; other platforms fall back to encoding/binary.
package persistence
