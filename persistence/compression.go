package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the compression algorithm used for the payload block.
type CompressionType uint8

const (
	// CompressionNone stores the payload as is.
	CompressionNone CompressionType = 0
	// CompressionLZ4 uses LZ4 block compression (fast, the default for checkpoints).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD uses ZSTD (better ratio, slower).
	CompressionZSTD CompressionType = 2
)

// ErrUnknownCompression is returned for an unrecognized compression type or name.
var ErrUnknownCompression = errors.New("unknown compression")

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block format: [UncompressedSize uint64][CompressedSize uint64][Data...].
// CompressedSize == 0 means the data is stored uncompressed.
const blockHeaderSize = 16

// CompressBlock frames data as a block, compressed with the given algorithm
// unless compression does not reduce the size by at least 10%.
func CompressBlock(data []byte, compression CompressionType) ([]byte, error) {
	var compressed []byte

	switch compression {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, compression)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		result := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint64(result[0:], uint64(len(data)))
		binary.LittleEndian.PutUint64(result[8:], 0)
		copy(result[blockHeaderSize:], data)
		return result, nil
	}

	result := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint64(result[0:], uint64(len(data)))
	binary.LittleEndian.PutUint64(result[8:], uint64(len(compressed)))
	copy(result[blockHeaderSize:], compressed)
	return result, nil
}

// maxLZ4Ratio bounds how far an LZ4 block can expand.
const maxLZ4Ratio = 255

// zstdPrealloc caps the buffer reserved up front for a ZSTD block; larger
// payloads grow while decoding.
const zstdPrealloc = 64 << 20

// DecompressBlock reverses CompressBlock. The block must decode to exactly
// expected bytes; a block that claims any other size is rejected before
// anything is allocated.
func DecompressBlock(block []byte, compression CompressionType, expected uint64) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: block too small for header", ErrCorrupt)
	}

	uncompressedSize := binary.LittleEndian.Uint64(block[0:])
	compressedSize := binary.LittleEndian.Uint64(block[8:])
	body := block[blockHeaderSize:]

	if uncompressedSize != expected {
		return nil, fmt.Errorf("%w: block holds %d bytes, want %d", ErrCorrupt, uncompressedSize, expected)
	}

	if compressedSize == 0 {
		if uint64(len(body)) < uncompressedSize {
			return nil, fmt.Errorf("%w: block data too small", ErrCorrupt)
		}
		return body[:uncompressedSize], nil
	}

	if uint64(len(body)) < compressedSize {
		return nil, fmt.Errorf("%w: compressed block data too small", ErrCorrupt)
	}
	body = body[:compressedSize]

	switch compression {
	case CompressionLZ4:
		if uncompressedSize > compressedSize*maxLZ4Ratio {
			return nil, fmt.Errorf("%w: %d lz4 bytes cannot hold %d", ErrCorrupt, compressedSize, uncompressedSize)
		}
		result := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, result)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint64(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return result, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(body, make([]byte, 0, min(uncompressedSize, zstdPrealloc)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint64(len(decoded)) != uncompressedSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, compression)
	}
}
