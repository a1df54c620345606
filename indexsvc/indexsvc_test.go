package indexsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/indexsvc"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/journalfile/journaltest"
)

func buildJournal(t *testing.T, dir string) string {
	t.Helper()
	b := journaltest.NewBuilder()
	rows := []struct {
		priority, message string
		ts                uint64
	}{
		{"1", "hello", 0},
		{"2", "world", 60_000_000},
		{"1", "world", 120_000_000},
		{"3", "hello", 180_000_000},
	}
	for _, row := range rows {
		b.AddEntry(row.ts, map[string]string{"PRIORITY": row.priority, "MESSAGE": row.message})
	}
	path, err := b.Build(dir)
	require.NoError(t, err)
	return path
}

func newTestService(t *testing.T) (*indexsvc.Service, string) {
	t.Helper()
	dir := t.TempDir()
	file := buildJournal(t, dir)

	cache, err := indexsvc.NewCache(context.Background(), bigcache.DefaultConfig(time.Minute), "", 1)
	require.NoError(t, err)

	open := func(path string) (*journalfile.Reader, error) {
		return journalfile.OpenReader(path, 0)
	}

	svc := indexsvc.NewService(indexsvc.Config{
		Workers:       2,
		QueueCapacity: 4,
		MaxRequestAge: time.Second,
	}, open, cache)
	t.Cleanup(func() { svc.Close() })
	return svc, file
}

func TestSubmitBuildsAndCachesIndex(t *testing.T) {
	svc, file := newTestService(t)

	submitted, err := svc.Submit(indexsvc.IndexingRequest{
		File:              file,
		Facets:            []string{"PRIORITY", "MESSAGE"},
		BucketDurationSec: 60,
		SubmittedAt:       time.Now(),
	})
	require.NoError(t, err)
	require.True(t, submitted)

	require.Eventually(t, func() bool {
		_, ok := svc.TimeRange(file)
		return ok
	}, time.Second, 10*time.Millisecond)

	tr, ok := svc.TimeRange(file)
	require.True(t, ok)
	require.Equal(t, uint32(0), tr.StartSec)
	require.Equal(t, uint32(192), tr.EndSec)
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	svc, file := newTestService(t)

	req := indexsvc.IndexingRequest{File: file, Facets: []string{"PRIORITY"}, BucketDurationSec: 60, SubmittedAt: time.Now()}

	accepted := 0
	for i := 0; i < 64; i++ {
		ok, err := svc.Submit(req)
		require.NoError(t, err)
		if ok {
			accepted++
		}
	}
	// Queue capacity is 4 plus a handful of in-flight workers; not every
	// one of 64 rapid submits can have been accepted.
	require.Less(t, accepted, 64)
}

func TestSubmitFailsAfterClose(t *testing.T) {
	svc, file := newTestService(t)
	require.NoError(t, svc.Close())

	_, err := svc.Submit(indexsvc.IndexingRequest{File: file, SubmittedAt: time.Now()})
	require.ErrorIs(t, err, indexsvc.ErrClosed)
}

func TestResolveIndexRequestReturnsCountsForIndexedFiles(t *testing.T) {
	svc, file := newTestService(t)

	ok, err := svc.Submit(indexsvc.IndexingRequest{
		File:              file,
		Facets:            []string{"PRIORITY", "MESSAGE"},
		BucketDurationSec: 60,
		SubmittedAt:       time.Now(),
	})
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := svc.TimeRange(file)
		return ok
	}, time.Second, 10*time.Millisecond)

	progress, err := svc.ResolveIndexRequest(indexsvc.IndexRequest{
		Start:        0,
		End:          256,
		Facets:       []string{"PRIORITY"},
		Filter:       filter.None(),
		PendingFiles: []string{file},
	})
	require.NoError(t, err)
	require.Empty(t, progress.StillPendingFiles)
	require.Empty(t, progress.UnindexedFields)

	counts, ok := progress.ResolvedCounts[file]
	require.True(t, ok)

	total := 0
	for _, c := range counts {
		require.Equal(t, c.Unfiltered, c.Filtered) // filter.None() matches everything
		total += c.Unfiltered
	}
	require.Equal(t, 4, total) // PRIORITY=1 (x2), PRIORITY=2, PRIORITY=3
}

func TestResolveIndexRequestReportsStillPendingForUnknownFile(t *testing.T) {
	svc, _ := newTestService(t)

	progress, err := svc.ResolveIndexRequest(indexsvc.IndexRequest{
		Start:        0,
		End:          240,
		Facets:       []string{"PRIORITY"},
		Filter:       filter.None(),
		PendingFiles: []string{"never-indexed.journal"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"never-indexed.journal"}, progress.StillPendingFiles)
	require.Empty(t, progress.ResolvedCounts)
}
