//go:build linux || darwin

package journalfile

import (
	"os"
	"syscall"
)

// mappedRange is a page-aligned mmap plus the caller-visible window into
// it; raw is kept around purely so munmapRange can hand the exact
// address/length back to the kernel.
type mappedRange struct {
	raw  []byte
	data []byte
}

// mmapRange maps [offset, offset+length) of f, page-aligning the start
// down and adjusting the returned slice so callers see exactly the
// requested bytes.
func mmapRange(f *os.File, offset, length int64) (mappedRange, error) {
	if length == 0 {
		return mappedRange{}, nil
	}
	pageSize := int64(os.Getpagesize())
	alignedOffset := (offset / pageSize) * pageSize
	pad := offset - alignedOffset
	raw, err := syscall.Mmap(int(f.Fd()), alignedOffset, int(length+pad), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return mappedRange{}, err
	}
	return mappedRange{raw: raw, data: raw[pad : pad+length]}, nil
}

// munmapRange unmaps a mappedRange previously returned by mmapRange.
func munmapRange(m mappedRange) error {
	if len(m.raw) == 0 {
		return nil
	}
	return syscall.Munmap(m.raw)
}
