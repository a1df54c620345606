// Package offsetarray presents a journal data or entry object's
// capacity-bounded offset-array chain as one positioned sequence, and
// layers a cheap rehydratable cursor and partition-point search over it.
package offsetarray

import "github.com/netdata/journal-query/journalfile"

// List is the offset-array chain belonging to one data or entry object:
// a head node offset plus the total item count it carries (normally the
// object's NEntries/NData minus the inlined first reference — see
// InlinedCursor, which wraps a List to present the full reference set
// including that inlined slot).
type List struct {
	r     *journalfile.Reader
	head  uint64
	total uint64
}

func NewList(r *journalfile.Reader, head uint64, total uint64) *List {
	return &List{r: r, head: head, total: total}
}

func (l *List) Total() uint64 { return l.total }
func (l *List) HeadOffset() uint64 { return l.head }

// locate walks the chain from head to the node holding logical index
// idx, applying the node.len = min(capacity, remaining_total) rule at
// each hop.
func (l *List) locate(idx uint64) (node *journalfile.OffsetArrayObject, nodeOffset uint64, localIndex int, remaining uint64, err error) {
	if idx >= l.total {
		return nil, 0, 0, 0, ErrOutOfRange
	}
	offset := l.head
	remaining = l.total
	for {
		if offset == 0 {
			return nil, 0, 0, 0, ErrChainTruncated
		}
		n, ferr := l.r.OffsetArray(offset)
		if ferr != nil {
			return nil, 0, 0, 0, ferr
		}
		nlen := uint64(len(n.Slots))
		if nlen == 0 {
			return nil, 0, 0, 0, ErrChainTruncated
		}
		use := nlen
		if use > remaining {
			use = remaining
		}
		if idx < use {
			return n, offset, int(idx), remaining, nil
		}
		idx -= use
		remaining -= use
		offset = n.NextOffsetArray
	}
}

// Cursor returns a positioned cursor at logical index idx, 0-based from
// the head of the array chain.
func (l *List) Cursor(idx uint64) (*Cursor, error) {
	node, nodeOffset, localIndex, remaining, err := l.locate(idx)
	if err != nil {
		return nil, err
	}
	return &Cursor{
		list:       l,
		idx:        idx,
		node:       node,
		nodeOffset: nodeOffset,
		localIndex: localIndex,
		remaining:  remaining,
	}, nil
}

func (l *List) Head() (*Cursor, error) {
	if l.total == 0 {
		return nil, ErrEmpty
	}
	return l.Cursor(0)
}

func (l *List) Tail() (*Cursor, error) {
	if l.total == 0 {
		return nil, ErrEmpty
	}
	return l.Cursor(l.total - 1)
}
