// Package histogram maps between entry ordinal and wall-clock time in
// O(log B), where B is the number of occupied time buckets, and
// collapses "how many filtered entries fall in this time window" to a
// single bitmap range-cardinality call.
package histogram

import (
	"sort"

	"github.com/netdata/journal-query/bitmap"
)

// Bucket is one occupied, bucket_duration-aligned slot: its start time
// and the ordinal of the last entry this bucket holds (the running
// count of entries through this bucket, minus one).
type Bucket struct {
	StartTimeSec uint32
	RunningCount uint32
}

// Histogram is a sparse vector of bucket boundaries: only boundaries
// where the running count changes are stored.
type Histogram struct {
	BucketDurationSec uint32
	Buckets           []Bucket
}

// TimestampOffset is one (timestamp_usec, entry_offset) pair as
// produced by the indexer's timestamp collection pass. Offset is opaque
// to the histogram; only the caller's ordinal assignment (position in
// the sorted slice) matters here.
type TimestampOffset struct {
	TimestampUsec uint64
	EntryOffset   uint64
}

// FromTimestampOffsetPairs builds a Histogram from pairs already sorted
// ascending by TimestampUsec. bucketDurationSec must be positive.
func FromTimestampOffsetPairs(bucketDurationSec uint32, pairs []TimestampOffset) *Histogram {
	h := &Histogram{BucketDurationSec: bucketDurationSec}
	if len(pairs) == 0 {
		return h
	}
	bucketSizeUsec := uint64(bucketDurationSec) * 1_000_000

	var currentBucket uint64
	haveCurrent := false
	for i, p := range pairs {
		bucket := (p.TimestampUsec / bucketSizeUsec) * uint64(bucketDurationSec)
		switch {
		case !haveCurrent:
			currentBucket = bucket
			haveCurrent = true
		case bucket > currentBucket:
			h.Buckets = append(h.Buckets, Bucket{
				StartTimeSec: uint32(currentBucket),
				RunningCount: uint32(i - 1),
			})
			currentBucket = bucket
		}
	}
	h.Buckets = append(h.Buckets, Bucket{
		StartTimeSec: uint32(currentBucket),
		RunningCount: uint32(len(pairs) - 1),
	})
	return h
}

func (h *Histogram) IsEmpty() bool { return len(h.Buckets) == 0 }

func (h *Histogram) StartTime() uint32 {
	if h.IsEmpty() {
		return 0
	}
	return h.Buckets[0].StartTimeSec
}

func (h *Histogram) EndTime() uint32 {
	if h.IsEmpty() {
		return 0
	}
	return h.Buckets[len(h.Buckets)-1].StartTimeSec + h.BucketDurationSec
}

// Count is the total number of entries the histogram was built from.
func (h *Histogram) Count() int {
	if h.IsEmpty() {
		return 0
	}
	return int(h.Buckets[len(h.Buckets)-1].RunningCount) + 1
}

// CountBitmapEntriesInRange requires both endpoints to be multiples of
// BucketDurationSec; it returns ok=false otherwise. It binary-searches
// for the first bucket with start_time >= startSec and the last with
// start_time < endSec, converts that to an ordinal range, and delegates
// to bitmap.RangeCardinality.
func (h *Histogram) CountBitmapEntriesInRange(bm *bitmap.Bitmap, startSec, endSec uint32) (count int, ok bool) {
	if startSec >= endSec {
		return 0, false
	}
	if h.BucketDurationSec == 0 || startSec%h.BucketDurationSec != 0 || endSec%h.BucketDurationSec != 0 {
		return 0, false
	}
	if h.IsEmpty() || bm.IsEmpty() {
		return 0, true
	}

	startIdx := sort.Search(len(h.Buckets), func(i int) bool {
		return h.Buckets[i].StartTimeSec >= startSec
	})
	if startIdx >= len(h.Buckets) {
		return 0, true
	}
	endIdx := sort.Search(len(h.Buckets), func(i int) bool {
		return h.Buckets[i].StartTimeSec >= endSec
	}) - 1
	if endIdx < 0 || startIdx > endIdx {
		return 0, true
	}

	var startOrdinal uint64
	if startIdx > 0 {
		startOrdinal = uint64(h.Buckets[startIdx-1].RunningCount) + 1
	}
	endOrdinal := uint64(h.Buckets[endIdx].RunningCount) + 1

	return bm.RangeCardinality(startOrdinal, endOrdinal), true
}
