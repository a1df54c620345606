package offsetarray

import "errors"

var (
	// ErrOutOfRange is returned by List.Cursor for a logical index at or
	// beyond the list's declared total.
	ErrOutOfRange = errors.New("offsetarray: index out of range")
	// ErrEmpty is returned by Head/Tail on a list with no items.
	ErrEmpty = errors.New("offsetarray: list is empty")
	// ErrChainTruncated means the offset-array chain ended (a zero
	// next-link, or a zero-length node) before total items were
	// accounted for — a corrupt or truncated journal file.
	ErrChainTruncated = errors.New("offsetarray: chain truncated before declared total")
)
