package journalfile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/journalfile/journaltest"
)

func buildSimpleJournal(t *testing.T, compress bool) string {
	t.Helper()
	b := journaltest.NewBuilder()
	b.Compress = compress
	b.AddEntry(100, map[string]string{"MESSAGE": "first", "PRIORITY": "6"})
	b.AddEntry(200, map[string]string{"MESSAGE": "second", "PRIORITY": "3"})
	b.AddEntry(300, map[string]string{"MESSAGE": "third", "PRIORITY": "6"})
	b.AddEntry(400, map[string]string{"MESSAGE": "fourth", "PRIORITY": "3"})
	b.AddEntry(500, map[string]string{"MESSAGE": "fifth", "PRIORITY": "6"})
	path, err := b.Build(t.TempDir())
	require.NoError(t, err)
	return path
}

func TestOpenReaderHeader(t *testing.T) {
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	h := r.Header()
	require.Equal(t, uint64(5), h.EntryCount)
	require.NotZero(t, h.FieldChainHead)
	require.NotZero(t, h.EntryInlineOffset)
}

func TestFieldIteration(t *testing.T) {
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	it := r.Fields()
	for f := it.Next(); f != nil; f = it.Next() {
		names = append(names, f.Name)
	}
	require.NoError(t, it.Err())
	require.ElementsMatch(t, []string{"MESSAGE", "PRIORITY"}, names)
}

func TestFindFieldAndDataChain(t *testing.T) {
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.FindField("PRIORITY")
	require.NoError(t, err)
	require.NotNil(t, f)

	var payloads []string
	it := r.DataObjectsForField(f)
	for d := it.Next(); d != nil; d = it.Next() {
		payloads = append(payloads, d.Payload)
	}
	require.NoError(t, it.Err())
	require.ElementsMatch(t, []string{"PRIORITY=6", "PRIORITY=3"}, payloads)
}

func TestFindFieldMissing(t *testing.T) {
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.FindField("NOPE")
	require.NoError(t, err)
	require.Nil(t, f)
}

func TestDataObjectInlinedCursorAcrossOffsetArrayNodes(t *testing.T) {
	// ArrayCapacity defaults to 2 in the builder, so PRIORITY=6 (which
	// appears 3 times) spills its InlinedCursor into at least one
	// offset-array node beyond the inline slot.
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.FindField("PRIORITY")
	require.NoError(t, err)
	it := r.DataObjectsForField(f)
	var six *journalfile.DataObject
	for d := it.Next(); d != nil; d = it.Next() {
		if d.Payload == "PRIORITY=6" {
			six = d
		}
	}
	require.NotNil(t, six)
	require.Equal(t, uint64(3), six.NEntries)
	require.NotZero(t, six.InlineEntryOffset)
	require.NotZero(t, six.EntryArrayHead)

	oa, err := r.OffsetArray(six.EntryArrayHead)
	require.NoError(t, err)
	require.Len(t, oa.Slots, 2)

	var timestamps []uint64
	e, err := r.Entry(six.InlineEntryOffset)
	require.NoError(t, err)
	timestamps = append(timestamps, e.Timestamp)
	for _, slot := range oa.Slots {
		e, err := r.Entry(slot)
		require.NoError(t, err)
		timestamps = append(timestamps, e.Timestamp)
	}
	require.ElementsMatch(t, []uint64{100, 300, 500}, timestamps)
}

func TestEntryDataRoundTrip(t *testing.T) {
	path := buildSimpleJournal(t, false)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	e, err := r.Entry(r.Header().EntryInlineOffset)
	require.NoError(t, err)
	require.Equal(t, uint64(2), e.NData)

	var scratch []byte
	d, err := r.Data(e.InlineDataOffset, &scratch)
	require.NoError(t, err)
	require.Contains(t, []string{"MESSAGE=first", "PRIORITY=6"}, d.Payload)
}

func TestCompressedDataPayload(t *testing.T) {
	path := buildSimpleJournal(t, true)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.FindField("MESSAGE")
	require.NoError(t, err)
	var scratch []byte
	it := r.DataObjectsForField(f)
	seen := map[string]bool{}
	for d := it.Next(); d != nil; d = it.Next() {
		// Exercise the direct Data accessor too, decompressing via the
		// shared decoder and the caller-supplied scratch buffer.
		reread, err := r.Data(d.Offset, &scratch)
		require.NoError(t, err)
		seen[reread.Payload] = true
	}
	require.NoError(t, it.Err())
	require.ElementsMatch(t, []string{"MESSAGE=first", "MESSAGE=second", "MESSAGE=third", "MESSAGE=fourth", "MESSAGE=fifth"}, keysOf(seen))
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestWindowedSourceAcrossManyEntries(t *testing.T) {
	b := journaltest.NewBuilder()
	b.ArrayCapacity = 3
	for i := 0; i < 500; i++ {
		b.AddEntry(uint64(i), map[string]string{
			"MESSAGE":  "entry",
			"PRIORITY": "6",
		})
	}
	path, err := b.Build(t.TempDir())
	require.NoError(t, err)

	// Force the sliding-window path with a tiny window budget.
	r, err := journalfile.OpenReader(path, 4096)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(500), r.Header().EntryCount)

	// One hop is enough to prove cross-window offset resolution works:
	// the entry itself and its data array head very likely fall in
	// different 4KB windows given the tiny budget.
	e, err := r.Entry(r.Header().EntryInlineOffset)
	require.NoError(t, err)
	if e.DataArrayHead != 0 {
		_, err := r.OffsetArray(e.DataArrayHead)
		require.NoError(t, err)
	}
}
