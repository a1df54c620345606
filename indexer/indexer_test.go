package indexer_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/journalfile/journaltest"
)

// buildSourceAndFallbackJournal lays out 7 entries: six carry a
// SYNTH_TS source-timestamp field, the seventh has none and must fall
// back to its own header timestamp.
func buildSourceAndFallbackJournal(t *testing.T) *journalfile.Reader {
	t.Helper()
	b := journaltest.NewBuilder()
	add := func(entryTs uint64, synthTs string, priority, message string) {
		fields := map[string]string{"PRIORITY": priority, "MESSAGE": message}
		if synthTs != "" {
			fields["SYNTH_TS"] = synthTs
		}
		b.AddEntry(entryTs, fields)
	}
	add(0, "0", "1", "hello")
	add(10_000_000, "10000000", "2", "world")
	add(60_000_000, "60000000", "1", "hello")
	add(70_000_000, "70000000", "2", "world")
	add(120_000_000, "120000000", "1", "hello")
	add(125_000_000, "", "2", "world") // no SYNTH_TS: falls back to entry timestamp
	add(130_000_000, "130000000", "1", "hello")

	dir := t.TempDir()
	path, err := b.Build(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "journal.jrnl"), path)

	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestBuildIndexesHistogramAndFacets(t *testing.T) {
	r := buildSourceAndFallbackJournal(t)

	ix := indexer.New()
	fi, err := ix.Build(r, "SYNTH_TS", []string{"PRIORITY", "MESSAGE"}, 60)
	require.NoError(t, err)

	require.Equal(t, uint32(0), fi.Histogram.StartTime())
	require.Equal(t, uint32(180), fi.Histogram.EndTime())
	require.Equal(t, 7, fi.Histogram.Count())
	require.Equal(t, uint64(7), fi.Universe)

	require.Equal(t, map[string]bool{"SYNTH_TS": true, "PRIORITY": true, "MESSAGE": true}, fi.FieldsInFile)
	require.Equal(t, map[string]bool{"PRIORITY": true, "MESSAGE": true}, fi.IndexedFields)
	require.Equal(t, []string{"SYNTH_TS"}, fi.UnindexedFields())

	requireBitmapMembers(t, fi, "PRIORITY=1", 0, 2, 4, 6)
	requireBitmapMembers(t, fi, "PRIORITY=2", 1, 3, 5)
	requireBitmapMembers(t, fi, "MESSAGE=hello", 0, 2, 4, 6)
	requireBitmapMembers(t, fi, "MESSAGE=world", 1, 3, 5)
}

func requireBitmapMembers(t *testing.T, fi *indexer.FileIndex, key string, want ...uint64) {
	t.Helper()
	bm, ok := fi.Bitmaps[key]
	require.True(t, ok, "missing bitmap for %s", key)
	require.Equal(t, len(want), bm.Len())
	for _, w := range want {
		require.True(t, bm.Contains(w), "%s should contain ordinal %d", key, w)
	}
}

func TestBuildReusesScratchAcrossCalls(t *testing.T) {
	r1 := buildSourceAndFallbackJournal(t)
	r2 := buildSourceAndFallbackJournal(t)

	ix := indexer.New()
	fi1, err := ix.Build(r1, "SYNTH_TS", []string{"PRIORITY"}, 60)
	require.NoError(t, err)
	fi2, err := ix.Build(r2, "SYNTH_TS", []string{"PRIORITY"}, 60)
	require.NoError(t, err)

	require.Equal(t, fi1.Histogram.Buckets, fi2.Histogram.Buckets)
	requireBitmapMembers(t, fi2, "PRIORITY=1", 0, 2, 4, 6)
}

func TestBuildWithoutSourceTimestampFallsBackEntirely(t *testing.T) {
	b := journaltest.NewBuilder()
	b.AddEntry(0, map[string]string{"PRIORITY": "1"})
	b.AddEntry(60_000_000, map[string]string{"PRIORITY": "2"})
	dir := t.TempDir()
	path, err := b.Build(dir)
	require.NoError(t, err)
	r, err := journalfile.OpenReader(path, 0)
	require.NoError(t, err)
	defer r.Close()

	ix := indexer.New()
	fi, err := ix.Build(r, "", []string{"PRIORITY"}, 60)
	require.NoError(t, err)

	require.Equal(t, 2, fi.Histogram.Count())
	require.Equal(t, uint32(0), fi.Histogram.StartTime())
	require.Equal(t, uint32(120), fi.Histogram.EndTime())
	requireBitmapMembers(t, fi, "PRIORITY=1", 0)
	requireBitmapMembers(t, fi, "PRIORITY=2", 1)
}
