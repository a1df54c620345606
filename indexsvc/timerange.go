package indexsvc

import (
	"container/list"
	"sync"
)

// timeRangeCache is the file -> TimeRange side cache: an LRU recording
// each file's earliest/latest entry time whenever an indexing job builds
// its FileIndex or finds a reusable one already cached, so overlap tests
// against a query window never require
// loading the FileIndex itself. Shaped after range-cache's doubly-linked
// list plus map, with entries keyed by file path instead of byte range.
type timeRangeCache struct {
	mu       sync.Mutex
	capacity int
	ranges   map[string]TimeRange
	lru      *list.List
	elems    map[string]*list.Element
}

func newTimeRangeCache(capacity int) *timeRangeCache {
	return &timeRangeCache{
		capacity: capacity,
		ranges:   make(map[string]TimeRange),
		lru:      list.New(),
		elems:    make(map[string]*list.Element),
	}
}

func (c *timeRangeCache) set(file string, r TimeRange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ranges[file] = r
	if elem, ok := c.elems[file]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	c.elems[file] = c.lru.PushFront(file)
	c.evict()
}

func (c *timeRangeCache) get(file string) (TimeRange, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.ranges[file]
	if !ok {
		return TimeRange{}, false
	}
	if elem, ok := c.elems[file]; ok {
		c.lru.MoveToFront(elem)
	}
	return r, true
}

// overlapping returns the subset of files whose recorded range overlaps
// [startSec, endSec), plus the files with no recorded range at all
// (unknown overlap, so the caller must still poll them).
func (c *timeRangeCache) overlapping(files []string, startSec, endSec uint32) (overlap, unknown []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range files {
		r, ok := c.ranges[f]
		switch {
		case !ok:
			unknown = append(unknown, f)
		case r.overlaps(startSec, endSec):
			overlap = append(overlap, f)
		}
	}
	return overlap, unknown
}

func (c *timeRangeCache) evict() {
	for c.capacity > 0 && c.lru.Len() > c.capacity {
		back := c.lru.Back()
		if back == nil {
			return
		}
		file := back.Value.(string)
		c.lru.Remove(back)
		delete(c.elems, file)
		delete(c.ranges, file)
	}
}
