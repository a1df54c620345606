package filter

import (
	"sort"
	"strings"
)

// Fingerprint renders expr as a canonical string: equal-meaning
// expressions produce equal fingerprints regardless of the order And/Or
// operands were constructed in, since both operators are commutative.
// This backs BucketRequest's cache-key equality in the histogram
// service — two HistogramRequests with differently-ordered filters must
// still share a cached bucket response.
func Fingerprint(expr Expr) string {
	var b strings.Builder
	writeFingerprint(&b, expr)
	return b.String()
}

func writeFingerprint(b *strings.Builder, expr Expr) {
	switch e := expr.(type) {
	case noneExpr:
		b.WriteString("*")
	case MatchExpr:
		b.WriteString(e.Field)
		b.WriteByte('=')
		b.WriteString(e.Value)
	case NotExpr:
		b.WriteString("!(")
		writeFingerprint(b, e.Inner)
		b.WriteByte(')')
	case AndExpr:
		writeCommutative(b, '&', e.Exprs)
	case OrExpr:
		writeCommutative(b, '|', e.Exprs)
	default:
		b.WriteString("?")
	}
}

func writeCommutative(b *strings.Builder, op byte, exprs []Expr) {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = Fingerprint(e)
	}
	sort.Strings(parts)
	b.WriteByte('(')
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(op)
		}
		b.WriteString(p)
	}
	b.WriteByte(')')
}
