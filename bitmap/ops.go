package bitmap

import "fmt"

// And, Or, Sub and Xor implement the boolean algebra over two bitmaps
// sharing the same universe. The inverted flag on each operand is
// resolved via De Morgan dispatch before any tree walk: mixing
// normal/inverted operands always reduces to the cheaper underlying raw
// operation rather than materializing a dense complement first.
func And(a, b *Bitmap) *Bitmap {
	mustSameUniverse(a, b)
	if a.IsEmpty() || b.IsEmpty() {
		return Empty(a.universe)
	}
	switch {
	case !a.inverted && !b.inverted:
		return wrap(rawAnd(a.raw, b.raw), false, a.universe)
	case a.inverted && !b.inverted:
		return wrap(rawSub(b.raw, a.raw), false, a.universe)
	case !a.inverted && b.inverted:
		return wrap(rawSub(a.raw, b.raw), false, a.universe)
	default: // both inverted: NOT(a') AND NOT(b') = NOT(a' OR b')
		return wrap(rawOr(a.raw, b.raw), true, a.universe)
	}
}

func Or(a, b *Bitmap) *Bitmap {
	mustSameUniverse(a, b)
	if a.Len() == int(a.universe) || b.Len() == int(b.universe) {
		return Full(a.universe)
	}
	switch {
	case !a.inverted && !b.inverted:
		return wrap(rawOr(a.raw, b.raw), false, a.universe)
	case a.inverted && !b.inverted:
		return wrap(rawSub(a.raw, b.raw), true, a.universe)
	case !a.inverted && b.inverted:
		return wrap(rawSub(b.raw, a.raw), true, a.universe)
	default: // both inverted: NOT(a') OR NOT(b') = NOT(a' AND b')
		return wrap(rawAnd(a.raw, b.raw), true, a.universe)
	}
}

// Sub returns a AND NOT b.
func Sub(a, b *Bitmap) *Bitmap {
	mustSameUniverse(a, b)
	return And(a, Not(b))
}

func Xor(a, b *Bitmap) *Bitmap {
	mustSameUniverse(a, b)
	return Or(Sub(a, b), Sub(b, a))
}

// Not returns the logical complement of a over its universe.
func Not(a *Bitmap) *Bitmap {
	return &Bitmap{raw: a.raw, inverted: !a.inverted, universe: a.universe}
}

func wrap(raw *rawTree, inverted bool, universe uint64) *Bitmap {
	return &Bitmap{raw: raw, inverted: inverted, universe: universe}
}

func mustSameUniverse(a, b *Bitmap) {
	if a.universe != b.universe {
		panic(fmt.Sprintf("bitmap: universe mismatch %d != %d", a.universe, b.universe))
	}
}

// rawAnd, rawOr and rawSub merge two ascending member streams with a
// two-pointer walk and rebuild a canonical tree from the result. Set
// identities (empty/full short circuits) are checked by the caller at
// the Bitmap level before any of these run.
func rawAnd(a, b *rawTree) *rawTree {
	out := mergeSorted(a, b, func(inA, inB bool) bool { return inA && inB })
	return fromSortedIter(out, a.universe)
}

func rawOr(a, b *rawTree) *rawTree {
	out := mergeSorted(a, b, func(inA, inB bool) bool { return inA || inB })
	return fromSortedIter(out, a.universe)
}

func rawSub(a, b *rawTree) *rawTree {
	out := mergeSorted(a, b, func(inA, inB bool) bool { return inA && !inB })
	return fromSortedIter(out, a.universe)
}

func mergeSorted(a, b *rawTree, keep func(inA, inB bool) bool) []uint64 {
	ai, bi := newIterator(a), newIterator(b)
	av, aok := ai.next()
	bv, bok := bi.next()
	out := make([]uint64, 0)
	for aok || bok {
		switch {
		case aok && (!bok || av < bv):
			if keep(true, false) {
				out = append(out, av)
			}
			av, aok = ai.next()
		case bok && (!aok || bv < av):
			if keep(false, true) {
				out = append(out, bv)
			}
			bv, bok = bi.next()
		default: // av == bv
			if keep(true, true) {
				out = append(out, av)
			}
			av, aok = ai.next()
			bv, bok = bi.next()
		}
	}
	return out
}
