package filter

import (
	"errors"

	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/offsetarray"
)

// ErrUnsupportedInCursorMode is returned when Lookup or NewCursor is
// asked to evaluate a None or Not node: the cursor sequence API only
// covers Match/And/Or, matching the journal reader's own filter
// expression type, which has no None or negation variant at all.
var ErrUnsupportedInCursorMode = errors.New("filter: None and Not are not supported by cursor-mode lookup/next")

func findDataObject(r *journalfile.Reader, field, value string) (*journalfile.DataObject, error) {
	f, err := r.FindField(field)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, nil
	}
	payload := field + "=" + value
	it := r.DataObjectsForField(f)
	for d := it.Next(); d != nil; d = it.Next() {
		if d.Payload == payload {
			return d, nil
		}
	}
	return nil, it.Err()
}

// Lookup finds the entry offset nearest to needleOffset (in dir) that
// satisfies expr, without consulting any index. A Match reduces to a
// directed partition point over its data object's reference set; an
// And iterates its components, advancing needleOffset until every
// component agrees on the same offset (a fixed point, reached in at
// most len(components) rounds per distinct candidate offset); an Or
// takes the closest (min for Forward, max for Backward) of its
// components' results, skipping components with no match.
func Lookup(expr Expr, r *journalfile.Reader, needleOffset uint64, dir offsetarray.Direction) (offset uint64, ok bool, err error) {
	switch e := expr.(type) {
	case MatchExpr:
		d, err := findDataObject(r, e.Field, e.Value)
		if err != nil {
			return 0, false, err
		}
		if d == nil || d.NEntries == 0 {
			return 0, false, nil
		}
		list := offsetarray.NewList(r, d.EntryArrayHead, d.NEntries-1)
		pp := offsetarray.InlinedPartitionPoint(d.InlineEntryOffset, list, func(off uint64) bool { return off < needleOffset })
		c, ok, err := pp(dir)
		if err != nil || !ok {
			return 0, ok, err
		}
		return c.Value(), true, nil

	case AndExpr:
		current := needleOffset
		for {
			previous := current
			for _, child := range e.Exprs {
				probe := current
				if dir == offsetarray.Backward {
					// A Backward partition point returns the last offset
					// strictly before the probe; bumping the probe by one
					// keeps an offset a prior component already confirmed
					// this round from being excluded by the next one.
					probe++
				}
				off, ok, err := Lookup(child, r, probe, dir)
				if err != nil {
					return 0, false, err
				}
				if !ok {
					return 0, false, nil
				}
				current = off
			}
			if current == previous {
				return current, true, nil
			}
		}

	case OrExpr:
		var best uint64
		have := false
		for _, child := range e.Exprs {
			off, ok, err := Lookup(child, r, needleOffset, dir)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				continue
			}
			switch {
			case !have:
				best, have = off, true
			case dir == offsetarray.Forward && off < best:
				best = off
			case dir == offsetarray.Backward && off > best:
				best = off
			}
		}
		return best, have, nil

	default:
		return 0, false, ErrUnsupportedInCursorMode
	}
}

// cursorNode is the mutable per-Match position state backing Cursor,
// mirroring the reference reader's Option<InlinedCursor> embedded in
// each Match leaf of its own filter expression type.
type cursorNode interface {
	next(needleOffset uint64) (uint64, bool, error)
	reset()
}

type matchNode struct {
	list   *offsetarray.List
	inline uint64
	total  uint64
	absent bool

	cur *offsetarray.InlinedCursor
}

func (m *matchNode) reset() { m.cur = nil }

func (m *matchNode) next(needleOffset uint64) (uint64, bool, error) {
	if m.absent {
		return 0, false, nil
	}
	cur := m.cur
	if cur == nil {
		ic := offsetarray.NewInlinedCursor(m.list, m.inline, m.total)
		head, err := ic.Head()
		if err != nil {
			return 0, false, err
		}
		cur = head
	}
	found, ok, err := cur.SkipUntil(offsetarray.Forward, func(off uint64) bool { return off >= needleOffset })
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	m.cur = found
	return found.Value(), true, nil
}

type andNode struct{ children []cursorNode }

func (a *andNode) reset() {
	for _, c := range a.children {
		c.reset()
	}
}

func (a *andNode) next(needleOffset uint64) (uint64, bool, error) {
	current := needleOffset
	for {
		previous := current
		for _, child := range a.children {
			off, ok, err := child.next(current)
			if err != nil {
				return 0, false, err
			}
			if !ok {
				return 0, false, nil
			}
			current = off
		}
		if current == previous {
			return current, true, nil
		}
	}
}

type orNode struct{ children []cursorNode }

func (o *orNode) reset() {
	for _, c := range o.children {
		c.reset()
	}
}

// next steps every component forward from needleOffset and returns the
// closest result. The reference reader's own next() for Or computed
// this same best_offset and then left it as an unfinished todo!(); this
// completes it using the min convention its lookup/Or case already
// establishes.
func (o *orNode) next(needleOffset uint64) (uint64, bool, error) {
	var best uint64
	have := false
	for _, child := range o.children {
		off, ok, err := child.next(needleOffset)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			continue
		}
		if !have || off < best {
			best = off
			have = true
		}
	}
	return best, have, nil
}

func buildCursorNode(r *journalfile.Reader, expr Expr) (cursorNode, error) {
	switch e := expr.(type) {
	case MatchExpr:
		d, err := findDataObject(r, e.Field, e.Value)
		if err != nil {
			return nil, err
		}
		if d == nil || d.NEntries == 0 {
			return &matchNode{absent: true}, nil
		}
		list := offsetarray.NewList(r, d.EntryArrayHead, d.NEntries-1)
		return &matchNode{list: list, inline: d.InlineEntryOffset, total: d.NEntries}, nil

	case AndExpr:
		children := make([]cursorNode, len(e.Exprs))
		for i, c := range e.Exprs {
			n, err := buildCursorNode(r, c)
			if err != nil {
				return nil, err
			}
			children[i] = n
		}
		return &andNode{children: children}, nil

	case OrExpr:
		children := make([]cursorNode, len(e.Exprs))
		for i, c := range e.Exprs {
			n, err := buildCursorNode(r, c)
			if err != nil {
				return nil, err
			}
			children[i] = n
		}
		return &orNode{children: children}, nil

	default:
		return nil, ErrUnsupportedInCursorMode
	}
}

// Cursor is expr compiled against a reader for repeated Next calls,
// each advancing every touched Match leaf's live InlinedCursor forward.
type Cursor struct {
	node cursorNode
}

// NewCursor compiles expr (which must contain only Match/And/Or nodes)
// against r.
func NewCursor(r *journalfile.Reader, expr Expr) (*Cursor, error) {
	node, err := buildCursorNode(r, expr)
	if err != nil {
		return nil, err
	}
	return &Cursor{node: node}, nil
}

// Reset rewinds every Match leaf back to an unpositioned state so the
// next Next call starts its search from each leaf's head again.
func (c *Cursor) Reset() { c.node.reset() }

// Next returns the next entry offset >= needleOffset satisfying the
// compiled expression, advancing internal cursor state.
func (c *Cursor) Next(needleOffset uint64) (uint64, bool, error) {
	return c.node.next(needleOffset)
}
