package offsetarray

// InlinedCursor is the universal "iterate all entries where this data
// object appears" primitive: logical index 0 returns the inlined
// first-entry offset carried directly in the data/entry object header,
// and indices >= 1 delegate to a Cursor over the offset-array chain.
type InlinedCursor struct {
	list   *List
	inline uint64
	total  uint64 // total including the inlined slot
	idx    uint64 // logical index, 0 == the inlined slot
	arrCur *Cursor
}

// NewInlinedCursor builds a cursor over total references, the first of
// which is inline and the rest of which live in the chain rooted at
// arrayHead.
func NewInlinedCursor(list *List, inline uint64, total uint64) *InlinedCursor {
	return &InlinedCursor{list: list, inline: inline, total: total}
}

func (ic *InlinedCursor) Total() uint64 { return ic.total }

func (ic *InlinedCursor) at(idx uint64) (*InlinedCursor, error) {
	if idx >= ic.total {
		return nil, ErrOutOfRange
	}
	n := &InlinedCursor{list: ic.list, inline: ic.inline, total: ic.total, idx: idx}
	if idx > 0 {
		c, err := ic.list.Cursor(idx - 1)
		if err != nil {
			return nil, err
		}
		n.arrCur = c
	}
	return n, nil
}

func (ic *InlinedCursor) Head() (*InlinedCursor, error) { return ic.at(0) }

func (ic *InlinedCursor) Tail() (*InlinedCursor, error) {
	if ic.total == 0 {
		return nil, ErrEmpty
	}
	return ic.at(ic.total - 1)
}

func (ic *InlinedCursor) Value() uint64 {
	if ic.idx == 0 {
		return ic.inline
	}
	return ic.arrCur.Value()
}

func (ic *InlinedCursor) AtHead() bool { return ic.idx == 0 }
func (ic *InlinedCursor) AtTail() bool { return ic.idx+1 == ic.total }

func (ic *InlinedCursor) Next() (*InlinedCursor, bool, error) {
	if ic.idx+1 >= ic.total {
		return nil, false, nil
	}
	n, err := ic.at(ic.idx + 1)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (ic *InlinedCursor) Previous() (*InlinedCursor, bool, error) {
	if ic.idx == 0 {
		return nil, false, nil
	}
	n, err := ic.at(ic.idx - 1)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// SkipUntil steps one position at a time in dir until pred holds for
// the cursor's value, returning that cursor. It is the per-Match
// primitive the filter package's cursor-based next() builds on: each
// hop is a single offset-array (or inline-slot) dereference, never a
// bulk scan.
func (ic *InlinedCursor) SkipUntil(dir Direction, pred func(offset uint64) bool) (*InlinedCursor, bool, error) {
	cur := ic
	if pred(cur.Value()) {
		return cur, true, nil
	}
	for {
		var next *InlinedCursor
		var ok bool
		var err error
		switch dir {
		case Forward:
			next, ok, err = cur.Next()
		case Backward:
			next, ok, err = cur.Previous()
		}
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		cur = next
		if pred(cur.Value()) {
			return cur, true, nil
		}
	}
}
