package histogramsvc

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/bitmap"
	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/indexsvc"
	"github.com/netdata/journal-query/metrics"
)

// bucketState is one decomposed bucket's accumulated progress, kept in
// the partial LRU between polls until every pending file has
// contributed.
type bucketState struct {
	request      BucketRequest
	pendingFiles map[string]bool
	counts       map[string]BucketCounts
	unindexed    map[string]bool
}

func newBucketState(req BucketRequest, files []string) *bucketState {
	pending := make(map[string]bool, len(files))
	for _, f := range files {
		pending[f] = true
	}
	return &bucketState{
		request:      req,
		pendingFiles: pending,
		counts:       make(map[string]BucketCounts),
		unindexed:    make(map[string]bool),
	}
}

func (st *bucketState) response() BucketResponse {
	return BucketResponse{
		Complete:         len(st.pendingFiles) == 0,
		PendingFileCount: len(st.pendingFiles),
		Counts:           st.counts,
		UnindexedFields:  sortedKeys(st.unindexed),
	}
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

// Service is the C8 histogram query service: it decomposes requests
// into BucketRequests, asks the registry which files are relevant,
// drives C7's worker pool and cache for each, and caches per-bucket
// progress across polls in two LRUs (partial/complete) so the same
// HistogramRequest, polled again, picks up where it left off rather
// than recomputing completed buckets.
type Service struct {
	indexer           *indexsvc.Service
	filesInRange      FilesInRangeFunc
	targetBucketCount int

	partial  *lru[*bucketState]
	complete *lru[BucketResponse]
}

// NewService constructs a Service. cacheCapacity bounds both the
// partial and complete response LRUs (spec default ~1000 each); 0 means
// no eviction.
func NewService(indexer *indexsvc.Service, filesInRange FilesInRangeFunc, targetBucketCount, cacheCapacity int) *Service {
	return &Service{
		indexer:           indexer,
		filesInRange:      filesInRange,
		targetBucketCount: targetBucketCount,
		partial:           newLRU[*bucketState](cacheCapacity),
		complete:          newLRU[BucketResponse](cacheCapacity),
	}
}

// Poll runs one iteration of the per-poll procedure from spec §4.8:
// resolve any bucket not yet cached against the registry, submit
// indexing requests for every file still pending in any bucket, probe
// each such file's index once, fold its contribution into every bucket
// it's pending in, and promote buckets whose pending set has emptied.
// The result is always returned in full — never an error — with
// still-incomplete buckets reported as Partial per the service's
// never-fail propagation policy.
func (s *Service) Poll(req HistogramRequest) HistogramResult {
	started := time.Now()
	defer func() { metrics.HistogramPollLatency.Observe(time.Since(started).Seconds()) }()

	fingerprint := filter.Fingerprint(req.Filter)
	bucketRequests := decomposeBuckets(req.AfterSec, req.BeforeSec, req.Facets, fingerprint, s.targetBucketCount)
	if len(bucketRequests) == 0 {
		return nil
	}

	result := make(HistogramResult, len(bucketRequests))
	var active []*bucketState
	indexOf := make(map[string]int, len(bucketRequests))

	for i, br := range bucketRequests {
		key := br.Key()
		indexOf[key] = i
		if resp, ok := s.complete.get(key); ok {
			metrics.BucketCacheHits.WithLabelValues("complete").Inc()
			result[i] = BucketResult{Request: br, Response: resp}
			continue
		}
		st, ok := s.partial.get(key)
		if ok {
			metrics.BucketCacheHits.WithLabelValues("partial").Inc()
		} else {
			files := s.filesInRange(br.StartSec, br.EndSec)
			st = newBucketState(br, files)
			s.partial.set(key, st)
		}
		active = append(active, st)
		result[i] = BucketResult{Request: br, Response: st.response()}
	}

	filesOfInterest := make(map[string]bool)
	for _, st := range active {
		for file := range st.pendingFiles {
			filesOfInterest[file] = true
		}
	}
	if len(filesOfInterest) == 0 {
		return result
	}

	bucketDurationSec := bucketRequests[0].EndSec - bucketRequests[0].StartSec
	for file := range filesOfInterest {
		if _, err := s.indexer.Submit(indexsvc.IndexingRequest{
			TraceID:           uuid.New(),
			File:              file,
			Facets:            req.Facets,
			BucketDurationSec: bucketDurationSec,
			SubmittedAt:       time.Now(),
		}); err != nil {
			klog.V(4).Infof("histogramsvc: submit for %s failed: %v", file, err)
		}
	}

	for file := range filesOfInterest {
		fi, ok := s.indexer.ProbeFile(file, req.Facets)
		if !ok {
			continue
		}
		filterBitmap := filter.Resolve(req.Filter, fi)
		for _, st := range active {
			if !st.pendingFiles[file] {
				continue
			}
			applyFileToBucket(st, fi, filterBitmap, req.Facets)
			delete(st.pendingFiles, file)
		}
	}

	for _, st := range active {
		key := st.request.Key()
		resp := st.response()
		if resp.Complete {
			s.complete.set(key, resp)
			s.partial.delete(key)
		}
		result[indexOf[key]] = BucketResult{Request: st.request, Response: resp}
	}

	return result
}

// applyFileToBucket folds fi's contribution to st's time window into
// st's running counts: every observed field=value bitmap under a
// requested facet field is range-counted against [st.request.StartSec,
// st.request.EndSec) both unfiltered and intersected with filterBitmap.
func applyFileToBucket(st *bucketState, fi *indexer.FileIndex, filterBitmap *bitmap.Bitmap, facets []string) {
	wanted := make(map[string]bool, len(facets))
	for _, f := range facets {
		wanted[f] = true
	}
	for field := range wanted {
		if !fi.IndexedFields[field] {
			st.unindexed[field] = true
		}
	}

	for key, bm := range fi.Bitmaps {
		field, _, found := strings.Cut(key, "=")
		if !found || !wanted[field] {
			continue
		}
		unfiltered, ok1 := fi.Histogram.CountBitmapEntriesInRange(bm, st.request.StartSec, st.request.EndSec)
		both := bitmap.And(bm, filterBitmap)
		filtered, ok2 := fi.Histogram.CountBitmapEntriesInRange(both, st.request.StartSec, st.request.EndSec)
		if !ok1 || !ok2 {
			continue
		}
		prev := st.counts[key]
		st.counts[key] = BucketCounts{Unfiltered: prev.Unfiltered + unfiltered, Filtered: prev.Filtered + filtered}
	}
}

// Close delegates to the indexing service, per spec's close() = C7.close().
func (s *Service) Close() error {
	return s.indexer.Close()
}
