package filter

import (
	"github.com/netdata/journal-query/bitmap"
	"github.com/netdata/journal-query/indexer"
)

// Resolve lowers expr over a single file's index into a concrete
// bitmap: each Match becomes its stored bitmap, or an empty bitmap if
// the field=value pair was never observed or the field was not
// indexed in this file; Not/And/Or fold with the matching bitmap
// operator; None resolves to the full universe. A nil expr (an
// unset filter) resolves the same way, since callers may legitimately
// hand Resolve a zero-valued filter.Expr field.
func Resolve(expr Expr, fi *indexer.FileIndex) *bitmap.Bitmap {
	switch e := expr.(type) {
	case noneExpr:
		return bitmap.Full(fi.Universe)
	case MatchExpr:
		if bm, ok := fi.Bitmaps[e.Field+"="+e.Value]; ok {
			return bm
		}
		return bitmap.Empty(fi.Universe)
	case NotExpr:
		return bitmap.Not(Resolve(e.Inner, fi))
	case AndExpr:
		acc := bitmap.Full(fi.Universe)
		for _, c := range e.Exprs {
			acc = bitmap.And(acc, Resolve(c, fi))
		}
		return acc
	case OrExpr:
		acc := bitmap.Empty(fi.Universe)
		for _, c := range e.Exprs {
			acc = bitmap.Or(acc, Resolve(c, fi))
		}
		return acc
	default:
		return bitmap.Full(fi.Universe)
	}
}
