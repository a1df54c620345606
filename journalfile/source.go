package journalfile

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	expmmap "golang.org/x/exp/mmap"
)

// DefaultWindowSize is the sliding-map budget per §4.2: files larger than
// this are accessed through a rotating set of fixed-size mmap windows
// instead of one mapping spanning the whole address space.
const DefaultWindowSize = 32 * 1024 * 1024

// Source is the random-access, reference-counted handle C2 reads objects
// through. Small files are backed by a single whole-file mapping
// (golang.org/x/exp/mmap); files larger than the window budget are
// accessed through on-demand, evictable windows.
type Source interface {
	// Slice returns length bytes starting at off. The returned Guard must
	// be released once the caller is done reading from it; the backing
	// bytes are only valid until Release.
	Slice(off int64, length int64) (Guard, error)
	Size() int64
	Close() error
}

// Guard borrows bytes from a Source's mapping. It must not outlive the
// Source, and must be released exactly once.
type Guard struct {
	Bytes   []byte
	release func()
}

func (g Guard) Release() {
	if g.release != nil {
		g.release()
	}
}

// OpenSource opens path as a Source, choosing the single-mapping fast
// path for files under windowSize and the sliding-window path above it.
// windowSize <= 0 selects DefaultWindowSize.
func OpenSource(path string, windowSize int64) (Source, error) {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size <= windowSize {
		m, err := expmmap.Open(path)
		if err != nil {
			return nil, err
		}
		return &wholeFileSource{m: m, size: size}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newWindowedSource(f, size, windowSize)
}

// wholeFileSource wraps golang.org/x/exp/mmap.ReaderAt for files that fit
// entirely within the window budget.
type wholeFileSource struct {
	m    *expmmap.ReaderAt
	size int64
}

func (s *wholeFileSource) Slice(off, length int64) (Guard, error) {
	if off < 0 || length < 0 || off+length > s.size {
		return Guard{}, ErrOffsetOutOfBounds
	}
	buf := make([]byte, length)
	if _, err := s.m.ReadAt(buf, off); err != nil {
		return Guard{}, err
	}
	return Guard{Bytes: buf}, nil
}

func (s *wholeFileSource) Size() int64 { return s.size }
func (s *wholeFileSource) Close() error { return s.m.Close() }

// windowedSource maps fixed-size, page-aligned windows of a large file on
// demand and evicts least-recently-used windows once the open count
// exceeds maxWindows, waiting for outstanding guards to drop first.
type windowedSource struct {
	file       *os.File
	size       int64
	windowSize int64
	maxWindows int

	mu      sync.Mutex
	windows map[int64]*mmapWindow
	lru     *list.List // front = most recently used
}

type mmapWindow struct {
	index    int64
	mapped   mappedRange
	data     []byte
	refCount int
	elem     *list.Element
}

const defaultMaxWindows = 8

func newWindowedSource(f *os.File, size, windowSize int64) (*windowedSource, error) {
	return &windowedSource{
		file:       f,
		size:       size,
		windowSize: windowSize,
		maxWindows: defaultMaxWindows,
		windows:    make(map[int64]*mmapWindow),
		lru:        list.New(),
	}, nil
}

func (s *windowedSource) windowIndexFor(off int64) int64 {
	return off / s.windowSize
}

// Slice returns a guard over [off, off+length). A range inside a single
// window borrows that window's bytes; a range spanning a window boundary
// is copied into an owned buffer by sliceAcrossWindows.
func (s *windowedSource) Slice(off, length int64) (Guard, error) {
	if off < 0 || length < 0 || off+length > s.size {
		return Guard{}, ErrOffsetOutOfBounds
	}
	widx := s.windowIndexFor(off)
	if s.windowIndexFor(off+length-1) != widx && length > 0 {
		return s.sliceAcrossWindows(off, length)
	}
	w, err := s.acquireWindow(widx)
	if err != nil {
		return Guard{}, err
	}
	base := off - widx*s.windowSize
	released := false
	return Guard{
		Bytes: w.data[base : base+length],
		release: func() {
			if released {
				return
			}
			released = true
			s.releaseWindow(w)
		},
	}, nil
}

// sliceAcrossWindows copies bytes spanning a window boundary into an
// owned buffer rather than returning a borrowed slice.
func (s *windowedSource) sliceAcrossWindows(off, length int64) (Guard, error) {
	buf := make([]byte, length)
	remaining := length
	cur := off
	dst := int64(0)
	for remaining > 0 {
		widx := s.windowIndexFor(cur)
		w, err := s.acquireWindow(widx)
		if err != nil {
			return Guard{}, err
		}
		base := cur - widx*s.windowSize
		avail := s.windowSize - base
		if avail > remaining {
			avail = remaining
		}
		copy(buf[dst:dst+avail], w.data[base:base+avail])
		s.releaseWindow(w)
		cur += avail
		dst += avail
		remaining -= avail
	}
	return Guard{Bytes: buf}, nil
}

func (s *windowedSource) acquireWindow(widx int64) (*mmapWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[widx]; ok {
		w.refCount++
		s.lru.MoveToFront(w.elem)
		return w, nil
	}
	start := widx * s.windowSize
	end := start + s.windowSize
	if end > s.size {
		end = s.size
	}
	mapped, err := mmapRange(s.file, start, end-start)
	if err != nil {
		return nil, fmt.Errorf("journalfile: mmap window %d: %w", widx, err)
	}
	w := &mmapWindow{index: widx, mapped: mapped, data: mapped.data, refCount: 1}
	w.elem = s.lru.PushFront(w)
	s.windows[widx] = w
	s.evictLocked()
	return w, nil
}

func (s *windowedSource) releaseWindow(w *mmapWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.refCount--
	s.evictLocked()
}

// evictLocked drops least-recently-used, unreferenced windows until the
// open count is back within budget. A window still borrowed by a live
// Guard is skipped and retried on the next release.
func (s *windowedSource) evictLocked() {
	for len(s.windows) > s.maxWindows {
		evicted := false
		for e := s.lru.Back(); e != nil; e = e.Prev() {
			w := e.Value.(*mmapWindow)
			if w.refCount > 0 {
				continue
			}
			s.lru.Remove(e)
			delete(s.windows, w.index)
			munmapRange(w.mapped)
			evicted = true
			break
		}
		if !evicted {
			return
		}
	}
}

func (s *windowedSource) Size() int64 { return s.size }

func (s *windowedSource) Close() error {
	s.mu.Lock()
	for _, w := range s.windows {
		munmapRange(w.mapped)
	}
	s.windows = nil
	s.mu.Unlock()
	return s.file.Close()
}
