//go:build unix

package mmap

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osAdvise(data []byte, h Hint) error {
	var advice int
	switch h {
	case HintSequential:
		advice = unix.MADV_SEQUENTIAL
	case HintWillNeed:
		advice = unix.MADV_WILLNEED
	default:
		return nil
	}
	// EINVAL only means the kernel rejected the hint.
	if err := unix.Madvise(data, advice); err != nil && !errors.Is(err, unix.EINVAL) {
		return err
	}
	return nil
}
