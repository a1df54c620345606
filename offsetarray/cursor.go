package offsetarray

import "github.com/netdata/journal-query/journalfile"

// Cursor is a position inside a List: the node currently borrowed, the
// slot index within it, and remaining_total (the item count from this
// node's first slot through the end of the list, used to derive each
// node's usable length without re-reading the whole chain).
type Cursor struct {
	list       *List
	idx        uint64
	node       *journalfile.OffsetArrayObject
	nodeOffset uint64
	localIndex int
	remaining  uint64
}

func (c *Cursor) Value() uint64 { return c.node.Slots[c.localIndex] }

func (c *Cursor) AtHead() bool { return c.idx == 0 }
func (c *Cursor) AtTail() bool { return c.idx+1 == c.list.total }

// Next returns the following cursor, or ok=false at the list's tail.
func (c *Cursor) Next() (next *Cursor, ok bool, err error) {
	if c.idx+1 >= c.list.total {
		return nil, false, nil
	}
	n, err := c.list.Cursor(c.idx + 1)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// Previous returns the preceding cursor, or ok=false at the list's head.
func (c *Cursor) Previous() (prev *Cursor, ok bool, err error) {
	if c.idx == 0 {
		return nil, false, nil
	}
	n, err := c.list.Cursor(c.idx - 1)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// CursorMetadata is a plain-data snapshot of a Cursor's position, safe
// to store outside the lifetime of the memory map it was read from.
// ArrayOffset/ArrayIndex/RemainingItems describe the physical position
// (matching the node currently borrowed); LogicalIndex additionally
// records the 0-based position from the list head so Rehydrate never
// needs to rescan the chain even when the saved position sits at a node
// boundary.
type CursorMetadata struct {
	HeadOffset     uint64
	TotalItems     uint64
	ArrayOffset    uint64
	ArrayIndex     int
	RemainingItems uint64
	LogicalIndex   uint64
}

func (c *Cursor) Metadata() CursorMetadata {
	return CursorMetadata{
		HeadOffset:     c.list.head,
		TotalItems:     c.list.total,
		ArrayOffset:    c.nodeOffset,
		ArrayIndex:     c.localIndex,
		RemainingItems: c.remaining,
		LogicalIndex:   c.idx,
	}
}

// Rehydrate reconstructs a Cursor from a metadata snapshot against a
// (possibly new) Reader over the same file.
func Rehydrate(r *journalfile.Reader, m CursorMetadata) (*Cursor, error) {
	l := NewList(r, m.HeadOffset, m.TotalItems)
	return l.Cursor(m.LogicalIndex)
}
