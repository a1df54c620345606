// Package indexsvc is the indexing service: a bounded worker pool that
// builds FileIndex values on demand, a hybrid memory+disk cache keyed by
// (file, facet-set), and the resolve_index_request path that serves C8's
// polling loop from whatever is already cached within a time budget.
package indexsvc

import (
	"time"

	"github.com/google/uuid"

	"github.com/netdata/journal-query/filter"
)

// IndexingRequest is one unit of work carried by the worker pool's
// bounded channel: build (or refresh) the index for file at
// bucketDurationSec, covering facets.
type IndexingRequest struct {
	TraceID           uuid.UUID
	File              string
	Facets            []string
	BucketDurationSec uint32
	SubmittedAt       time.Time
}

// IndexRequest is C8's query against whatever is already cached: compute
// per-facet counts over [Start, End) for every file in PendingFiles,
// honoring Filter, without blocking on any file not yet indexed.
type IndexRequest struct {
	Start        uint32
	End          uint32
	Facets       []string
	Filter       filter.Expr
	PendingFiles []string
}

// FacetCounts is one observed field=value pair's (unfiltered, filtered)
// entry count over an IndexRequest's time range, for a single file.
type FacetCounts struct {
	FieldValue string
	Unfiltered int
	Filtered   int
}

// IndexProgress is the result of resolve_index_request: the counts that
// could be resolved from cache within the deadlines, which files the
// caller must still poll for, and which requested facets are not
// indexed in at least one resolved file.
type IndexProgress struct {
	ResolvedCounts    map[string][]FacetCounts
	StillPendingFiles []string
	UnindexedFields   []string
}

// TimeRange is a file's [StartSec, EndSec) entry timestamp span, as
// recorded in the side cache whenever an indexing job builds a FileIndex
// or finds a reusable one already cached.
type TimeRange struct {
	StartSec uint32
	EndSec   uint32
}

func (r TimeRange) overlaps(startSec, endSec uint32) bool {
	return r.StartSec < endSec && r.EndSec > startSec
}
