package persistence

import (
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"
)

// Scalar is an element type of a snapshot section.
type Scalar interface {
	~float64 | ~int32 | ~uint32
}

// nativeLE is true when sections can be copied to and from memory as is.
var nativeLE = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// WriteHeader stamps magic and version into h and writes it.
func WriteHeader(w io.Writer, h *FileHeader) error {
	h.Magic = MagicNumber
	h.Version = Version
	return binary.Write(w, binary.LittleEndian, h)
}

// ReadHeader reads a header and rejects foreign or future files.
func ReadHeader(r io.Reader) (*FileHeader, error) {
	var h FileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if h.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	return &h, nil
}

// WriteSlice writes s as a little-endian section with no length prefix; the
// header carries the counts.
func WriteSlice[T Scalar](w io.Writer, s []T) error {
	if len(s) == 0 {
		return nil
	}
	if !nativeLE {
		return binary.Write(w, binary.LittleEndian, s)
	}
	_, err := w.Write(asBytes(s))
	return err
}

// ReadSlice reads a section of n elements. It returns nil for n == 0 and
// io.EOF or io.ErrUnexpectedEOF when the section is short.
func ReadSlice[T Scalar](r io.Reader, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]T, n)
	if !nativeLE {
		if err := binary.Read(r, binary.LittleEndian, s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if _, err := io.ReadFull(r, asBytes(s)); err != nil {
		return nil, err
	}
	return s, nil
}

func asBytes[T Scalar](s []T) []byte {
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero)))
}
