// Package histogramsvc is the histogram query service: it decomposes an
// interactive (after, before, facets, filter) request into bucket-aligned
// sub-requests, drives C7's worker pool to fill in whatever files are
// still pending, and caches per-bucket progress across polls so repeated
// queries converge to a complete answer instead of recomputing from
// scratch.
package histogramsvc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/netdata/journal-query/filter"
)

// BucketRequest is one fixed-duration time slice of a HistogramRequest.
// Two BucketRequests with equal fields are the same cache entry — Key
// folds Facets (order-independent) and Filter into one fingerprint so
// equal-meaning requests share a cache slot regardless of how the
// caller ordered its facet list or built its filter tree.
type BucketRequest struct {
	StartSec          uint32
	EndSec            uint32
	Facets            []string
	FilterFingerprint string
}

// Key returns BucketRequest's cache key.
func (r BucketRequest) Key() string {
	sorted := append([]string(nil), r.Facets...)
	sort.Strings(sorted)
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(r.StartSec), 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(uint64(r.EndSec), 10))
	b.WriteByte(':')
	b.WriteString(strings.Join(sorted, ","))
	b.WriteByte(':')
	b.WriteString(r.FilterFingerprint)
	return b.String()
}

// BucketCounts is one field=value pair's (unfiltered, filtered) entry
// count within a bucket, summed across every file that has contributed
// so far.
type BucketCounts struct {
	Unfiltered int
	Filtered   int
}

// BucketResponse is a bucket's current answer: Complete is false while
// PendingFileCount > 0 files have not yet contributed; Counts and
// UnindexedFields only ever grow monotonically as more files complete.
type BucketResponse struct {
	Complete         bool
	PendingFileCount int
	Counts           map[string]BucketCounts
	UnindexedFields  []string
}

// HistogramRequest is the exposed interactive query: translate
// [AfterSec, BeforeSec) into bucket-aligned counts for every field=value
// seen across the touched files.
type HistogramRequest struct {
	AfterSec  uint32
	BeforeSec uint32
	Facets    []string
	Filter    filter.Expr
}

// BucketResult pairs a decomposed BucketRequest with its current
// BucketResponse, in time order.
type BucketResult struct {
	Request  BucketRequest
	Response BucketResponse
}

// HistogramResult is the ordered list of bucket results making up one
// poll's answer. The caller renders it immediately; a later poll of the
// same HistogramRequest fills in more files until every bucket is
// Complete.
type HistogramResult []BucketResult

// FilesInRangeFunc asks the registry for every file whose entries might
// overlap [startSec, endSec), including an active file whose logical
// tail extends past its archived head (spec scenario: active-file
// overlap).
type FilesInRangeFunc func(startSec, endSec uint32) []string
