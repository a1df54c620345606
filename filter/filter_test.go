package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/journalfile/journaltest"
	"github.com/netdata/journal-query/offsetarray"
)

// buildTwoFacetJournal lays out 6 entries over PRIORITY in {1,2,3} and
// MESSAGE in {hello,world}, ordinals 0..5 in add order, timestamps equal
// to the add index so ordinal order matches add order exactly.
func buildTwoFacetJournal(t *testing.T) (*journalfile.Reader, *indexer.FileIndex) {
	t.Helper()
	b := journaltest.NewBuilder()
	rows := []struct {
		priority, message string
	}{
		{"1", "hello"}, // 0
		{"2", "world"}, // 1
		{"1", "world"}, // 2
		{"3", "hello"}, // 3
		{"2", "hello"}, // 4
		{"1", "hello"}, // 5
	}
	for i, row := range rows {
		b.AddEntry(uint64(i), map[string]string{"PRIORITY": row.priority, "MESSAGE": row.message})
	}
	dir := t.TempDir()
	path, err := b.Build(dir)
	require.NoError(t, err)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	ix := indexer.New()
	fi, err := ix.Build(r, "", []string{"PRIORITY", "MESSAGE"}, 60)
	require.NoError(t, err)
	return r, fi
}

func TestResolveMatchAndNone(t *testing.T) {
	_, fi := buildTwoFacetJournal(t)

	bm := filter.Resolve(filter.Match("PRIORITY", "1"), fi)
	require.Equal(t, 3, bm.Len())
	require.True(t, bm.Contains(0))
	require.True(t, bm.Contains(2))
	require.True(t, bm.Contains(5))

	none := filter.Resolve(filter.None(), fi)
	require.Equal(t, int(fi.Universe), none.Len())

	missing := filter.Resolve(filter.Match("PRIORITY", "9"), fi)
	require.True(t, missing.IsEmpty())
}

func TestResolveAndOrNot(t *testing.T) {
	_, fi := buildTwoFacetJournal(t)

	and := filter.Resolve(filter.And(filter.Match("PRIORITY", "1"), filter.Match("MESSAGE", "hello")), fi)
	require.Equal(t, 2, and.Len())
	require.True(t, and.Contains(0))
	require.True(t, and.Contains(5))

	or := filter.Resolve(filter.Or(filter.Match("PRIORITY", "2"), filter.Match("PRIORITY", "3")), fi)
	require.Equal(t, 3, or.Len())
	require.True(t, or.Contains(1))
	require.True(t, or.Contains(3))
	require.True(t, or.Contains(4))

	not := filter.Resolve(filter.Not(filter.Match("PRIORITY", "1")), fi)
	require.Equal(t, int(fi.Universe)-3, not.Len())
	require.False(t, not.Contains(0))
	require.True(t, not.Contains(1))
}

func TestCanonicalizationFlattensAndDropsIdentities(t *testing.T) {
	m1 := filter.Match("PRIORITY", "1")
	m2 := filter.Match("PRIORITY", "2")
	m3 := filter.Match("PRIORITY", "3")

	nested := filter.And(filter.And(m1, m2), m3)
	flat, ok := nested.(filter.AndExpr)
	require.True(t, ok)
	require.Len(t, flat.Exprs, 3)

	withIdentity := filter.And(m1, filter.None())
	require.Equal(t, m1, withIdentity)

	allIdentity := filter.And(filter.None(), filter.None())
	require.Equal(t, filter.None(), allIdentity)

	single := filter.And(m1)
	require.Equal(t, m1, single)

	absorbed := filter.Or(m1, filter.None(), m2)
	require.Equal(t, filter.None(), absorbed)

	doubleNeg := filter.Not(filter.Not(m1))
	require.Equal(t, m1, doubleNeg)
}

func TestLookupMatchForwardAndBackward(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	expr := filter.Match("PRIORITY", "1") // entries at ordinal 0, 2, 5

	off0 := entryOffsetAt(t, r, 0)
	off2 := entryOffsetAt(t, r, 2)
	off5 := entryOffsetAt(t, r, 5)

	got, ok, err := filter.Lookup(expr, r, off0, offsetarray.Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off0, got)

	got, ok, err = filter.Lookup(expr, r, off0+1, offsetarray.Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off2, got)

	got, ok, err = filter.Lookup(expr, r, off5+1, offsetarray.Forward)
	require.NoError(t, err)
	require.False(t, ok)

	got, ok, err = filter.Lookup(expr, r, off5, offsetarray.Backward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off2, got)

	got, ok, err = filter.Lookup(expr, r, off0, offsetarray.Backward)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLookupAndConvergesToFixedPoint(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	// PRIORITY=1 at {0,2,5}; MESSAGE=hello at {0,3,4,5}; intersection {0,5}.
	expr := filter.And(filter.Match("PRIORITY", "1"), filter.Match("MESSAGE", "hello"))

	off0 := entryOffsetAt(t, r, 0)
	off5 := entryOffsetAt(t, r, 5)

	got, ok, err := filter.Lookup(expr, r, off0, offsetarray.Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off0, got)

	got, ok, err = filter.Lookup(expr, r, off0+1, offsetarray.Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off5, got)
}

func TestLookupOrTakesClosest(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	// PRIORITY=2 at {1,4}; PRIORITY=3 at {3}.
	expr := filter.Or(filter.Match("PRIORITY", "2"), filter.Match("PRIORITY", "3"))

	off0 := entryOffsetAt(t, r, 0)
	off1 := entryOffsetAt(t, r, 1)

	got, ok, err := filter.Lookup(expr, r, off0, offsetarray.Forward)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off1, got)
}

func TestCursorNextWalksMatches(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	expr := filter.Match("PRIORITY", "1")
	c, err := filter.NewCursor(r, expr)
	require.NoError(t, err)

	off0 := entryOffsetAt(t, r, 0)
	off2 := entryOffsetAt(t, r, 2)
	off5 := entryOffsetAt(t, r, 5)

	got, ok, err := c.Next(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off0, got)

	got, ok, err = c.Next(got + 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off2, got)

	got, ok, err = c.Next(got + 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off5, got)

	_, ok, err = c.Next(got + 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCursorNextOrTakesMin(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	expr := filter.Or(filter.Match("PRIORITY", "2"), filter.Match("PRIORITY", "3"))
	c, err := filter.NewCursor(r, expr)
	require.NoError(t, err)

	off1 := entryOffsetAt(t, r, 1)
	off3 := entryOffsetAt(t, r, 3)
	off4 := entryOffsetAt(t, r, 4)

	got, ok, err := c.Next(0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off1, got)

	got, ok, err = c.Next(got + 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off3, got)

	got, ok, err = c.Next(got + 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, off4, got)
}

func TestFingerprintIgnoresOperandOrder(t *testing.T) {
	a := filter.And(filter.Match("PRIORITY", "1"), filter.Match("MESSAGE", "hello"))
	b := filter.And(filter.Match("MESSAGE", "hello"), filter.Match("PRIORITY", "1"))
	require.Equal(t, filter.Fingerprint(a), filter.Fingerprint(b))

	c := filter.Or(filter.Match("PRIORITY", "1"), filter.Match("PRIORITY", "2"))
	require.NotEqual(t, filter.Fingerprint(a), filter.Fingerprint(c))
}

func TestLookupRejectsNoneAndNot(t *testing.T) {
	r, _ := buildTwoFacetJournal(t)
	_, _, err := filter.Lookup(filter.None(), r, 0, offsetarray.Forward)
	require.ErrorIs(t, err, filter.ErrUnsupportedInCursorMode)

	_, _, err = filter.Lookup(filter.Not(filter.Match("PRIORITY", "1")), r, 0, offsetarray.Forward)
	require.ErrorIs(t, err, filter.ErrUnsupportedInCursorMode)
}

// entryOffsetAt walks the global entry chain to find the offset of the
// nth added entry (0-based), since the builder doesn't return per-entry
// offsets directly.
func entryOffsetAt(t *testing.T, r *journalfile.Reader, n uint64) uint64 {
	t.Helper()
	h := r.Header()
	require.Greater(t, h.EntryCount, n)
	list := offsetarray.NewList(r, h.EntryArrayHead, h.EntryCount-1)
	ic := offsetarray.NewInlinedCursor(list, h.EntryInlineOffset, h.EntryCount)
	cur, err := ic.Head()
	require.NoError(t, err)
	for i := uint64(0); i < n; i++ {
		next, ok, err := cur.Next()
		require.NoError(t, err)
		require.True(t, ok)
		cur = next
	}
	return cur.Value()
}
