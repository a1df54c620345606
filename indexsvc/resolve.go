package indexsvc

import (
	"context"
	"sort"
	"strings"

	"github.com/netdata/journal-query/bitmap"
	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/indexer"
)

// ResolveIndexRequest serves req from whatever is already cached, never
// blocking on a file that isn't: a total deadline bounds the whole call,
// a per-file deadline bounds each cache probe, and any file that misses
// either deadline or the cache itself is reported back as still pending
// so the caller (C8) knows to resubmit an IndexingRequest and poll
// again.
func (s *Service) ResolveIndexRequest(req IndexRequest) (*IndexProgress, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TotalDeadline)
	defer cancel()

	progress := &IndexProgress{ResolvedCounts: make(map[string][]FacetCounts)}
	unindexed := make(map[string]bool)

	for _, file := range req.PendingFiles {
		if ctx.Err() != nil {
			progress.StillPendingFiles = append(progress.StillPendingFiles, file)
			continue
		}

		fi, ok := s.probeWithDeadline(ctx, file, req.Facets)
		if !ok {
			progress.StillPendingFiles = append(progress.StillPendingFiles, file)
			continue
		}

		for _, field := range req.Facets {
			if !fi.IndexedFields[field] {
				unindexed[field] = true
			}
		}

		progress.ResolvedCounts[file] = countFacets(fi, req.Facets, req.Filter, req.Start, req.End)
	}

	progress.UnindexedFields = sortedKeys(unindexed)
	return progress, nil
}

// ProbeFile looks up file's cached FileIndex directly, bounded by the
// configured per-file deadline. Exposed for the histogram service,
// which probes a file's index once per poll and evaluates it against
// many bucket windows, rather than re-probing per bucket.
func (s *Service) ProbeFile(file string, facets []string) (*indexer.FileIndex, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PerFileDeadline)
	defer cancel()
	return s.probeWithDeadline(ctx, file, facets)
}

// probeWithDeadline looks up file's cache entry, bounded by the smaller
// of ctx's remaining budget and the per-file deadline.
func (s *Service) probeWithDeadline(ctx context.Context, file string, facets []string) (*indexer.FileIndex, bool) {
	if s.cache == nil {
		return nil, false
	}
	fileCtx, cancel := context.WithTimeout(ctx, s.cfg.PerFileDeadline)
	defer cancel()

	type result struct {
		fi *indexer.FileIndex
		ok bool
	}
	done := make(chan result, 1)
	go func() {
		fi, ok := s.cache.Get(file, facets)
		done <- result{fi, ok}
	}()

	select {
	case <-fileCtx.Done():
		return nil, false
	case r := <-done:
		return r.fi, r.ok
	}
}

// countFacets evaluates filter against fi, then for every observed
// field=value pair under a requested facet field computes its
// unfiltered and filtered entry counts within [startSec, endSec).
func countFacets(fi *indexer.FileIndex, facets []string, expr filter.Expr, startSec, endSec uint32) []FacetCounts {
	if expr == nil {
		expr = filter.None()
	}
	filterBitmap := filter.Resolve(expr, fi)

	wanted := make(map[string]bool, len(facets))
	for _, f := range facets {
		wanted[f] = true
	}

	var keys []string
	for key := range fi.Bitmaps {
		field, _, found := strings.Cut(key, "=")
		if found && wanted[field] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	counts := make([]FacetCounts, 0, len(keys))
	for _, key := range keys {
		bm := fi.Bitmaps[key]
		unfiltered, _ := fi.Histogram.CountBitmapEntriesInRange(bm, startSec, endSec)
		both := bitmap.And(bm, filterBitmap)
		filtered, _ := fi.Histogram.CountBitmapEntriesInRange(both, startSec, endSec)
		counts = append(counts, FacetCounts{FieldValue: key, Unfiltered: unfiltered, Filtered: filtered})
	}
	return counts
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
