package persistence

import "errors"

const (
	// MagicNumber identifies lineage snapshot files (ASCII: "LIN1").
	MagicNumber = 0x4C494E31
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// HeaderSize is the encoded size of FileHeader in bytes.
	HeaderSize = 80
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrCorrupt        = errors.New("corrupt snapshot")
)

// FileHeader is the 80-byte header at the start of every snapshot.
type FileHeader struct {
	Magic       uint32 // 0x4C494E31 ("LIN1")
	Version     uint32 // File format version
	Compression uint8  // CompressionType of the payload block
	Padding1    [3]byte
	Width       uint32 // Values per slot
	Slots       uint64 // Slot count (arena capacity)
	Particles   uint64 // Length of the current set
	Steps       uint64 // Recorded time steps
	Occupied    uint64 // Live slot count
	Cursor      uint64 // Allocator cursor
	Generation  uint32 // Current generation
	Checksum    uint32 // CRC-32C of the stored payload block
	PayloadLen  uint64 // Stored payload block length in bytes
	LastWrite   int64  // Duration of the last write in nanoseconds
}

// PayloadSize returns the uncompressed payload size implied by the header.
func (h *FileHeader) PayloadSize() uint64 {
	return PayloadSizeFor(h.Slots, uint64(h.Width), h.Particles)
}

// PayloadSizeFor returns the uncompressed payload size of a cache with the
// given shape: values, ancestors and stamps per slot, then the current set.
func PayloadSizeFor(slots, width, particles uint64) uint64 {
	return slots*width*8 + slots*4 + slots*4 + particles*4
}
