// Package bitmap implements a compressed, tree-encoded bitmap over a
// bounded ordinal universe, used to index field=value membership within a
// single journal file.
package bitmap

import (
	"math/bits"
	"slices"
)

// rawTree is the depth-first pre-order byte stream described by the
// 8-ary bit-tree encoding: internal nodes are one byte marking which of
// their 8 children are present, leaves are one byte marking membership of
// 8 consecutive ordinals. The stream IS the in-memory form.
type rawTree struct {
	bytes    []byte
	levels   int // depth of the tree, including the leaf level; 0 means no tree (universe == 0)
	universe uint64
}

func pow8(n int) uint64 {
	v := uint64(1)
	for i := 0; i < n; i++ {
		v *= 8
	}
	return v
}

func levelsForUniverse(universe uint64) int {
	if universe == 0 {
		return 0
	}
	levels := 1
	cap := uint64(8)
	for cap < universe {
		cap *= 8
		levels++
	}
	return levels
}

func emptyRawTree(universe uint64) *rawTree {
	return &rawTree{levels: levelsForUniverse(universe), universe: universe}
}

// fromSortedIter builds a raw tree from a sorted (duplicates tolerated)
// slice of ordinals, all less than universe.
func fromSortedIter(vals []uint64, universe uint64) *rawTree {
	t := &rawTree{levels: levelsForUniverse(universe), universe: universe}
	if t.levels == 0 {
		return t
	}
	filtered := vals[:0:0]
	for _, v := range vals {
		if v < universe {
			filtered = append(filtered, v)
		}
	}
	t.bytes = buildLevel(filtered, t.levels)
	return t
}

func buildLevel(vals []uint64, remaining int) []byte {
	if remaining == 1 {
		var b byte
		for _, v := range vals {
			b |= 1 << uint(v)
		}
		return []byte{b}
	}
	groupSize := pow8(remaining - 1)
	var buckets [8][]uint64
	var mask byte
	for _, v := range vals {
		idx := v / groupSize
		buckets[idx] = append(buckets[idx], v%groupSize)
		mask |= 1 << idx
	}
	out := []byte{mask}
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			out = append(out, buildLevel(buckets[i], remaining-1)...)
		}
	}
	return out
}

// subtreeSize returns the number of bytes occupied by the subtree rooted
// at pos, which spans levelsRemaining levels (including its own byte).
func subtreeSize(data []byte, pos int, levelsRemaining int) int {
	if levelsRemaining <= 1 {
		return 1
	}
	mask := data[pos]
	total := 1
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			total += subtreeSize(data, pos+total, levelsRemaining-1)
		}
	}
	return total
}

// childPos returns the byte offset of child idx of the node at nodePos,
// assuming that bit is set in the node's mask.
func childPos(data []byte, nodePos int, remaining int, idx byte) int {
	mask := data[nodePos]
	p := nodePos + 1
	for i := byte(0); i < idx; i++ {
		if mask&(1<<i) != 0 {
			p += subtreeSize(data, p, remaining-1)
		}
	}
	return p
}

func (t *rawTree) contains(v uint64) bool {
	if t.levels == 0 || v >= t.universe || len(t.bytes) == 0 {
		return false
	}
	pos := 0
	remaining := t.levels
	rel := v
	for remaining > 1 {
		groupSize := pow8(remaining - 1)
		idx := byte(rel / groupSize)
		mask := t.bytes[pos]
		if mask&(1<<idx) == 0 {
			return false
		}
		pos = childPos(t.bytes, pos, remaining, idx)
		rel = rel % groupSize
		remaining--
	}
	return t.bytes[pos]&(1<<uint(rel)) != 0
}

func (t *rawTree) walkCount(pos int, remaining int) (consumed int, count int) {
	if remaining <= 1 {
		return 1, bits.OnesCount8(t.bytes[pos])
	}
	mask := t.bytes[pos]
	consumed = 1
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) != 0 {
			c, cnt := t.walkCount(pos+consumed, remaining-1)
			consumed += c
			count += cnt
		}
	}
	return
}

func (t *rawTree) len() int {
	if t.levels == 0 || len(t.bytes) == 0 {
		return 0
	}
	_, count := t.walkCount(0, t.levels)
	return count
}

// firstSet walks the leftmost present path to the smallest member;
// lastSet walks the rightmost to the largest.
func (t *rawTree) firstSet() (uint64, bool) {
	if t.levels == 0 || len(t.bytes) == 0 {
		return 0, false
	}
	pos := 0
	remaining := t.levels
	base := uint64(0)
	for remaining > 1 {
		mask := t.bytes[pos]
		if mask == 0 {
			return 0, false
		}
		idx := byte(bits.TrailingZeros8(mask))
		groupSize := pow8(remaining - 1)
		base += uint64(idx) * groupSize
		pos = childPos(t.bytes, pos, remaining, idx)
		remaining--
	}
	leaf := t.bytes[pos]
	if leaf == 0 {
		return 0, false
	}
	return base + uint64(bits.TrailingZeros8(leaf)), true
}

func (t *rawTree) lastSet() (uint64, bool) {
	if t.levels == 0 || len(t.bytes) == 0 {
		return 0, false
	}
	pos := 0
	remaining := t.levels
	base := uint64(0)
	for remaining > 1 {
		mask := t.bytes[pos]
		if mask == 0 {
			return 0, false
		}
		idx := byte(7 - bits.LeadingZeros8(mask))
		groupSize := pow8(remaining - 1)
		base += uint64(idx) * groupSize
		pos = childPos(t.bytes, pos, remaining, idx)
		remaining--
	}
	leaf := t.bytes[pos]
	if leaf == 0 {
		return 0, false
	}
	return base + uint64(7-bits.LeadingZeros8(leaf)), true
}

func (t *rawTree) rangeCardinality(lo, hi uint64) int {
	if t.levels == 0 || len(t.bytes) == 0 || hi <= lo {
		return 0
	}
	return t.countRange(0, t.levels, 0, pow8(t.levels), lo, hi)
}

func (t *rawTree) countRange(pos int, remaining int, nodeBase, nodeSize, lo, hi uint64) int {
	nodeEnd := nodeBase + nodeSize
	if hi <= nodeBase || lo >= nodeEnd {
		return 0
	}
	if lo <= nodeBase && hi >= nodeEnd {
		_, count := t.walkCount(pos, remaining)
		return count
	}
	if remaining == 1 {
		leaf := t.bytes[pos]
		count := 0
		for i := 0; i < 8; i++ {
			if leaf&(1<<uint(i)) == 0 {
				continue
			}
			v := nodeBase + uint64(i)
			if v >= lo && v < hi {
				count++
			}
		}
		return count
	}
	mask := t.bytes[pos]
	groupSize := nodeSize / 8
	p := pos + 1
	count := 0
	for i := 0; i < 8; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		childBase := nodeBase + uint64(i)*groupSize
		size := subtreeSize(t.bytes, p, remaining-1)
		count += t.countRange(p, remaining-1, childBase, groupSize, lo, hi)
		p += size
	}
	return count
}

// toSlice materializes all set ordinals in ascending order. Used by
// insert/remove, which rebuild the tree from scratch rather than
// splicing in place.
func (t *rawTree) toSlice() []uint64 {
	out := make([]uint64, 0, t.len())
	it := newIterator(t)
	for {
		v, ok := it.next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func (t *rawTree) insert(v uint64) *rawTree {
	if v >= t.universe {
		return t
	}
	vals := t.toSlice()
	for _, x := range vals {
		if x == v {
			return t
		}
	}
	vals = append(vals, v)
	slices.Sort(vals)
	return fromSortedIter(vals, t.universe)
}

func (t *rawTree) remove(v uint64) *rawTree {
	if v >= t.universe {
		return t
	}
	vals := t.toSlice()
	out := vals[:0]
	for _, x := range vals {
		if x != v {
			out = append(out, x)
		}
	}
	return fromSortedIter(out, t.universe)
}

func (t *rawTree) removeRange(lo, hi uint64) *rawTree {
	vals := t.toSlice()
	out := vals[:0]
	for _, x := range vals {
		if x < lo || x >= hi {
			out = append(out, x)
		}
	}
	return fromSortedIter(out, t.universe)
}

