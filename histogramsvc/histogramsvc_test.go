package histogramsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/histogramsvc"
	"github.com/netdata/journal-query/indexsvc"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/journalfile/journaltest"
)

func buildJournalFile(t *testing.T, dir string, rows []struct {
	priority string
	tsUsec   uint64
}) string {
	t.Helper()
	b := journaltest.NewBuilder()
	for _, row := range rows {
		b.AddEntry(row.tsUsec, map[string]string{"PRIORITY": row.priority})
	}
	path, err := b.Build(dir)
	require.NoError(t, err)
	return path
}

func newTestIndexer(t *testing.T) *indexsvc.Service {
	t.Helper()
	cache, err := indexsvc.NewCache(context.Background(), bigcache.DefaultConfig(time.Minute), "", 1)
	require.NoError(t, err)
	open := func(path string) (*journalfile.Reader, error) { return journalfile.OpenReader(path, 0) }
	svc := indexsvc.NewService(indexsvc.Config{Workers: 4, QueueCapacity: 16, MaxRequestAge: time.Minute}, open, cache)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestPollConvergesFromPartialToComplete(t *testing.T) {
	type row struct {
		priority string
		tsUsec   uint64
	}
	file1 := buildJournalFile(t, t.TempDir(), []row{{"1", 0}, {"2", 10_000_000}})
	file2 := buildJournalFile(t, t.TempDir(), []row{{"1", 30_000_000}})

	indexer := newTestIndexer(t)
	filesInRange := func(startSec, endSec uint32) []string { return []string{file1, file2} }
	svc := histogramsvc.NewService(indexer, filesInRange, 1, 100)

	req := histogramsvc.HistogramRequest{AfterSec: 0, BeforeSec: 60, Facets: []string{"PRIORITY"}, Filter: filter.None()}

	result := svc.Poll(req)
	require.Len(t, result, 1)
	require.Equal(t, uint32(0), result[0].Request.StartSec)
	require.Equal(t, uint32(64), result[0].Request.EndSec)

	require.Eventually(t, func() bool {
		result = svc.Poll(req)
		return result[0].Response.Complete
	}, 2*time.Second, 10*time.Millisecond)

	resp := result[0].Response
	require.True(t, resp.Complete)
	require.Equal(t, 0, resp.PendingFileCount)
	require.Equal(t, 2, resp.Counts["PRIORITY=1"].Unfiltered)
	require.Equal(t, 1, resp.Counts["PRIORITY=2"].Unfiltered)
	require.Equal(t, resp.Counts["PRIORITY=1"].Unfiltered, resp.Counts["PRIORITY=1"].Filtered)

	// A further poll of the identical request must be served entirely
	// from the complete cache and return the same counts unchanged.
	again := svc.Poll(req)
	require.Equal(t, resp, again[0].Response)
}

func TestPollReportsPendingForUnreachableFiles(t *testing.T) {
	indexer := newTestIndexer(t)
	filesInRange := func(startSec, endSec uint32) []string { return []string{"missing.journal"} }
	svc := histogramsvc.NewService(indexer, filesInRange, 1, 100)

	req := histogramsvc.HistogramRequest{AfterSec: 0, BeforeSec: 60, Facets: []string{"PRIORITY"}, Filter: filter.None()}
	result := svc.Poll(req)
	require.Len(t, result, 1)
	require.False(t, result[0].Response.Complete)
	require.Equal(t, 1, result[0].Response.PendingFileCount)
}
