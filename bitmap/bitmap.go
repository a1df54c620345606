package bitmap

// Bitmap is a set of ordinals in [0, universe) backed by a compressed
// tree. The inverted flag stores the complement instead of the set
// itself, so both very sparse and very dense sets stay small.
type Bitmap struct {
	raw      *rawTree
	inverted bool
	universe uint64
}

// FromSortedIter builds a Bitmap from a sorted, duplicate-tolerant slice
// of ordinals less than universe.
func FromSortedIter(ordinals []uint64, universe uint64) *Bitmap {
	return &Bitmap{raw: fromSortedIter(ordinals, universe), universe: universe}
}

// Empty returns a bitmap with no members over the given universe.
func Empty(universe uint64) *Bitmap {
	return &Bitmap{raw: emptyRawTree(universe), universe: universe}
}

// Full returns a bitmap with every ordinal in [0, universe) set.
func Full(universe uint64) *Bitmap {
	return &Bitmap{raw: emptyRawTree(universe), inverted: true, universe: universe}
}

func (b *Bitmap) Universe() uint64 { return b.universe }

func (b *Bitmap) Contains(v uint64) bool {
	if v >= b.universe {
		return false
	}
	return b.raw.contains(v) != b.inverted
}

func (b *Bitmap) Len() int {
	if !b.inverted {
		return b.raw.len()
	}
	return int(b.universe) - b.raw.len()
}

func (b *Bitmap) IsEmpty() bool { return b.Len() == 0 }

// Min returns the smallest member ordinal, if any.
func (b *Bitmap) Min() (uint64, bool) {
	if !b.inverted {
		return b.raw.firstSet()
	}
	return b.firstAbsentFromRaw(0)
}

// Max returns the largest member ordinal, if any.
func (b *Bitmap) Max() (uint64, bool) {
	if !b.inverted {
		return b.raw.lastSet()
	}
	for v := b.universe; v > 0; v-- {
		if !b.raw.contains(v - 1) {
			return v - 1, true
		}
	}
	return 0, false
}

// firstAbsentFromRaw scans the universe linearly for the first ordinal
// not present in the raw tree; used for Min() on inverted bitmaps.
func (b *Bitmap) firstAbsentFromRaw(from uint64) (uint64, bool) {
	for v := from; v < b.universe; v++ {
		if !b.raw.contains(v) {
			return v, true
		}
	}
	return 0, false
}

func (b *Bitmap) Insert(v uint64) {
	if v >= b.universe {
		return
	}
	if b.inverted {
		b.raw = b.raw.remove(v)
	} else {
		b.raw = b.raw.insert(v)
	}
}

func (b *Bitmap) Remove(v uint64) {
	if v >= b.universe {
		return
	}
	if b.inverted {
		b.raw = b.raw.insert(v)
	} else {
		b.raw = b.raw.remove(v)
	}
}

func (b *Bitmap) RemoveRange(lo, hi uint64) {
	if hi > b.universe {
		hi = b.universe
	}
	if lo >= hi {
		return
	}
	if b.inverted {
		// members of the complement in [lo,hi) become present in raw.
		for v := lo; v < hi; v++ {
			b.raw = b.raw.insert(v)
		}
	} else {
		b.raw = b.raw.removeRange(lo, hi)
	}
}

// Iter returns an ascending iterator over the bitmap's logical members.
// For inverted bitmaps this walks the complement of the raw tree, which
// is O(universe); callers iterating a known-dense inverted bitmap should
// prefer RangeCardinality where only a count is needed.
func (b *Bitmap) Iter() *MemberIterator {
	if !b.inverted {
		return &MemberIterator{inner: newIterator(b.raw)}
	}
	return &MemberIterator{complement: b.raw, universe: b.universe}
}

type MemberIterator struct {
	inner      *Iterator
	complement *rawTree
	universe   uint64
	cursor     uint64
}

func (m *MemberIterator) Next() (uint64, bool) {
	if m.inner != nil {
		return m.inner.next()
	}
	for m.cursor < m.universe {
		v := m.cursor
		m.cursor++
		if !m.complement.contains(v) {
			return v, true
		}
	}
	return 0, false
}

// RangeCardinality counts members in [lo, hi).
func (b *Bitmap) RangeCardinality(lo, hi uint64) int {
	if hi > b.universe {
		hi = b.universe
	}
	if lo >= hi {
		return 0
	}
	raw := b.raw.rangeCardinality(lo, hi)
	if !b.inverted {
		return raw
	}
	return int(hi-lo) - raw
}

// Optimize re-derives the cheaper of the normal/inverted representations
// for the current member set, without changing Len()/Contains() results.
func (b *Bitmap) Optimize() {
	n := b.Len()
	if b.universe == 0 {
		return
	}
	wantInverted := uint64(n)*2 > b.universe
	if wantInverted == b.inverted {
		return
	}
	// Rebuild the raw tree holding the opposite logical set: flip it by
	// materializing the current membership and rebuilding from scratch.
	members := make([]uint64, 0, n)
	it := b.Iter()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		members = append(members, v)
	}
	if wantInverted {
		nonMembers := make([]uint64, 0, int(b.universe)-n)
		set := make(map[uint64]struct{}, n)
		for _, v := range members {
			set[v] = struct{}{}
		}
		for v := uint64(0); v < b.universe; v++ {
			if _, ok := set[v]; !ok {
				nonMembers = append(nonMembers, v)
			}
		}
		b.raw = fromSortedIter(nonMembers, b.universe)
	} else {
		b.raw = fromSortedIter(members, b.universe)
	}
	b.inverted = wantInverted
}
