package histogramsvc

// defaultTargetBucketCount is the implementation-chosen bucket count
// target: large enough to resolve fine-grained activity, small enough
// that a UI can render every bucket without scrolling.
const defaultTargetBucketCount = 300

// decomposeBuckets picks a bucket_duration from the power-of-two ladder
// (so a FileIndex histogram built for one zoom level can be reused by a
// different request whose duration rounds to the same rung) such that
// ceil((beforeSec-afterSec)/duration) fits within targetCount, aligns
// afterSec down to a multiple of that duration, and emits one
// BucketRequest per resulting slice.
func decomposeBuckets(afterSec, beforeSec uint32, facets []string, filterFingerprint string, targetCount int) []BucketRequest {
	if targetCount <= 0 {
		targetCount = defaultTargetBucketCount
	}
	if beforeSec <= afterSec {
		return nil
	}
	span := beforeSec - afterSec

	duration := uint32(1)
	for ceilDiv(span, duration) > uint32(targetCount) {
		duration <<= 1
	}

	alignedAfter := (afterSec / duration) * duration
	n := ceilDiv(span, duration)

	requests := make([]BucketRequest, 0, n)
	for i := uint32(0); i < n; i++ {
		start := alignedAfter + i*duration
		requests = append(requests, BucketRequest{
			StartSec:          start,
			EndSec:            start + duration,
			Facets:            facets,
			FilterFingerprint: filterFingerprint,
		})
	}
	return requests
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
