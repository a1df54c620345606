package histogram

// NegotiateBucketDuration rounds a caller-requested bucket duration up
// to the nearest member of the fixed power-of-two ladder {1, 2, 4, 8,
// ...} seconds. Snapping every request onto a small, shared set of
// durations means a FileIndex built for one zoom level's histogram can
// often be reused by a different request that rounds to the same
// ladder rung, instead of rebuilding per exact duration requested.
func NegotiateBucketDuration(requestedSec uint32) uint32 {
	if requestedSec <= 1 {
		return 1
	}
	d := uint32(1)
	for d < requestedSec {
		d <<= 1
	}
	return d
}

// Reusable reports whether a FileIndex built with existingSec can serve
// a request for requestedSec without rebuilding: the existing histogram
// must be at least as fine-grained (a smaller or equal bucket
// duration), matching indexing_service's cache-reuse check.
func Reusable(existingSec, requestedSec uint32) bool {
	return existingSec > 0 && existingSec <= requestedSec
}
