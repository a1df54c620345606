package bitmap

// Iterator yields the ordinals of a Bitmap's underlying raw tree in
// ascending order via a lazy, stack-based depth-first walk.
type Iterator struct {
	t     *rawTree
	stack []iterFrame
}

type iterFrame struct {
	remaining int
	base      uint64
	mask      byte
	nextBit   int
	childPos  int
}

func newIterator(t *rawTree) *Iterator {
	it := &Iterator{t: t}
	if t.levels > 0 && len(t.bytes) > 0 {
		it.stack = append(it.stack, iterFrame{
			remaining: t.levels,
			base:      0,
			mask:      t.bytes[0],
			nextBit:   0,
			childPos:  1,
		})
	}
	return it
}

func (it *Iterator) next() (uint64, bool) {
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.remaining == 1 {
			for top.nextBit < 8 {
				i := top.nextBit
				top.nextBit++
				if top.mask&(1<<uint(i)) != 0 {
					return top.base + uint64(i), true
				}
			}
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		advanced := false
		for top.nextBit < 8 {
			i := top.nextBit
			top.nextBit++
			if top.mask&(1<<uint(i)) == 0 {
				continue
			}
			groupSize := pow8(top.remaining - 1)
			childBase := top.base + uint64(i)*groupSize
			pos := top.childPos
			size := subtreeSize(it.t.bytes, pos, top.remaining-1)
			top.childPos = pos + size
			it.stack = append(it.stack, iterFrame{
				remaining: top.remaining - 1,
				base:      childBase,
				mask:      it.t.bytes[pos],
				nextBit:   0,
				childPos:  pos + 1,
			})
			advanced = true
			break
		}
		if advanced {
			continue
		}
		it.stack = it.stack[:len(it.stack)-1]
	}
	return 0, false
}

// Next advances the iterator and reports whether a value was produced.
func (it *Iterator) Next() (uint64, bool) {
	return it.next()
}
