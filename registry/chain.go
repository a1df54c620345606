package registry

import (
	"math"
	"sort"
)

const usecPerSec = uint64(1_000_000)

// Chain holds every known file for one (directory, Origin) grouping,
// always sorted: disposed files first, then archived files by ascending
// head_realtime, then the single active file (if any) last.
type Chain struct {
	files []*File
}

// insert adds f in sorted position, ignoring a duplicate path.
func (c *Chain) insert(f *File) {
	pos := sort.Search(len(c.files), func(i int) bool { return !fileLess(c.files[i], f) })
	if pos < len(c.files) && c.files[pos].Path == f.Path {
		c.files[pos] = f
		return
	}
	c.files = append(c.files, nil)
	copy(c.files[pos+1:], c.files[pos:])
	c.files[pos] = f
}

// remove drops the file at path, if present.
func (c *Chain) remove(path string) {
	for i, f := range c.files {
		if f.Path == path {
			c.files = append(c.files[:i], c.files[i+1:]...)
			return
		}
	}
}

func (c *Chain) isEmpty() bool { return len(c.files) == 0 }

// activeFile returns the chain's active file, if its last entry is one.
func (c *Chain) activeFile() *File {
	if n := len(c.files); n > 0 && c.files[n-1].Status.Kind == StatusActive {
		return c.files[n-1]
	}
	return nil
}

// appendFilesInRange appends the paths of every file in c whose
// [head_realtime, tail_realtime) window overlaps [startSec, endSec) to
// out, returning the extended slice. The tail of an archived file is its
// successor's head_realtime (or infinity if it's the chain's last file);
// the active file's tail is always infinity and its head is its
// predecessor's head_realtime (or zero, if there is no archived
// predecessor).
func (c *Chain) appendFilesInRange(startSec, endSec uint32, out []string) []string {
	if len(c.files) == 0 || startSec >= endSec {
		return out
	}

	start := uint64(startSec) * usecPerSec
	end := uint64(endSec) * usecPerSec

	pos := sort.Search(len(c.files), func(i int) bool {
		switch c.files[i].Status.Kind {
		case StatusArchived:
			return c.files[i].Status.HeadRealtimeUsec >= start
		case StatusDisposed:
			return false
		default: // Active
			return true
		}
	})
	if pos > 0 {
		pos--
	}

	var prevHeadRealtime uint64
	havePrev := false
	if pos < len(c.files) && c.files[pos].Status.Kind == StatusArchived {
		prevHeadRealtime = c.files[pos].Status.HeadRealtimeUsec
		havePrev = true
	}

	for i := pos; i < len(c.files); i++ {
		f := c.files[i]
		switch f.Status.Kind {
		case StatusDisposed:
			continue

		case StatusArchived:
			head := f.Status.HeadRealtimeUsec
			if head >= end {
				return out
			}
			tail := uint64(math.MaxUint64)
			if i+1 < len(c.files) {
				switch next := c.files[i+1]; next.Status.Kind {
				case StatusArchived:
					tail = next.Status.HeadRealtimeUsec
				default: // Active, or (shouldn't happen) Disposed
					tail = math.MaxUint64
				}
			}
			if head < end && tail > start {
				out = append(out, f.Path)
			}
			prevHeadRealtime, havePrev = head, true

		case StatusActive:
			head := uint64(0)
			if havePrev {
				head = prevHeadRealtime
			}
			if head < end { // tail is always infinity, so tail > start always holds
				out = append(out, f.Path)
			}
			return out
		}
	}
	return out
}
