package offsetarray

// Direction is the navigation direction for partition-point search and
// cursor stepping: Forward moves toward increasing offsets (later log
// entries), Backward toward decreasing ones.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// PartitionPoint finds the boundary in a list whose stored offsets are
// monotonically increasing, given a predicate that holds for a prefix
// of the list and false afterward (e.g. "offset < needle"). It returns:
//   - Forward: a cursor at the first index where pred is false, or
//     ok=false if pred holds everywhere (no such index, i.e. the needle
//     is past the whole list);
//   - Backward: a cursor at the last index where pred is true, or
//     ok=false if pred holds nowhere.
//
// Implemented as a single binary search over the logical index space;
// each probe resolves through List.Cursor, which internally walks the
// node chain from head. This trades the "per-node binary search plus
// linear boundary scan" shape for a simpler, still-correct O(log n)
// search with no node-adjacency bookkeeping.
func PartitionPoint(list *List, pred func(offset uint64) bool) func(Direction) (*Cursor, bool, error) {
	return func(dir Direction) (*Cursor, bool, error) {
		if list.total == 0 {
			return nil, false, nil
		}
		lo, hi := uint64(0), list.total
		for lo < hi {
			mid := lo + (hi-lo)/2
			c, err := list.Cursor(mid)
			if err != nil {
				return nil, false, err
			}
			if pred(c.Value()) {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		switch dir {
		case Forward:
			if lo >= list.total {
				return nil, false, nil
			}
			c, err := list.Cursor(lo)
			return c, err == nil, err
		case Backward:
			if lo == 0 {
				return nil, false, nil
			}
			c, err := list.Cursor(lo - 1)
			return c, err == nil, err
		default:
			return nil, false, nil
		}
	}
}

// InlinedPartitionPoint is PartitionPoint generalized to a data or entry
// object's full reference set — the inlined first reference plus its
// array-chain tail — treating the inline slot as logical index 0. It
// grounds the filter package's per-Match directed lookup, the cursor
// counterpart of a data object's directed_partition_point in the
// original object-file reader.
func InlinedPartitionPoint(inline uint64, list *List, pred func(offset uint64) bool) func(Direction) (*InlinedCursor, bool, error) {
	total := list.Total() + 1
	base := &InlinedCursor{list: list, inline: inline, total: total}
	return func(dir Direction) (*InlinedCursor, bool, error) {
		lo, hi := uint64(0), total
		for lo < hi {
			mid := lo + (hi-lo)/2
			c, err := base.at(mid)
			if err != nil {
				return nil, false, err
			}
			if pred(c.Value()) {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		switch dir {
		case Forward:
			if lo >= total {
				return nil, false, nil
			}
			c, err := base.at(lo)
			return c, err == nil, err
		case Backward:
			if lo == 0 {
				return nil, false, nil
			}
			c, err := base.at(lo - 1)
			return c, err == nil, err
		default:
			return nil, false, nil
		}
	}
}
