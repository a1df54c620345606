// Package journaltest builds small, valid journal arenas on disk for
// tests across the journalfile, offsetarray, histogram, indexer and
// filter packages, the way gsfa/store/testutil builds synthetic
// key/value entries for the accumulator store's tests.
package journaltest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Entry is one caller-supplied log line: a timestamp plus a set of
// field=value pairs. Field order is irrelevant; Builder sorts fields by
// name for deterministic layout.
type Entry struct {
	Timestamp uint64
	Fields    map[string]string
}

// Builder accumulates entries and lays them out as a single journal
// file matching the binary format in journalfile/format.go.
type Builder struct {
	entries []Entry

	// ArrayCapacity bounds how many slots each offset-array node holds.
	// Small values (the default) force real chains to exercise
	// multi-node traversal in tests instead of always fitting inline.
	ArrayCapacity int

	// Compress, when true, stores every data payload zstd-compressed so
	// Reader.Data exercises the decompression path.
	Compress bool
}

func NewBuilder() *Builder {
	return &Builder{ArrayCapacity: 2}
}

func (b *Builder) AddEntry(timestamp uint64, fields map[string]string) {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	b.entries = append(b.entries, Entry{Timestamp: timestamp, Fields: cp})
}

// shell is a not-yet-positioned arena object. Its size and encode
// closure are fixed as soon as every shell it references exists; only
// the final offset map is missing, and that is filled in once every
// shell in the file has been assigned a position in the layout pass.
type shell struct {
	tag    uint64
	size   int
	encode func(off func(*shell) uint64) []byte
	offset uint64
}

func offsetOf(s *shell) uint64 {
	if s == nil {
		return 0
	}
	return s.offset
}

// buildChain wires an InlinedCursor triple (inline ref, array head,
// count) over refs, splitting refs[1:] into capacity-bounded
// offset-array shells. The returned nodes must be appended to the
// layout order; nodes is empty when len(refs) <= 1.
func buildChain(refs []*shell, capacity int) (inline, head *shell, n uint64, nodes []*shell) {
	n = uint64(len(refs))
	if n == 0 {
		return nil, nil, 0, nil
	}
	inline = refs[0]
	rest := refs[1:]
	if len(rest) == 0 {
		return inline, nil, n, nil
	}
	var chunks [][]*shell
	for i := 0; i < len(rest); i += capacity {
		end := i + capacity
		if end > len(rest) {
			end = len(rest)
		}
		chunks = append(chunks, rest[i:end])
	}
	nodes = make([]*shell, len(chunks))
	for i := range chunks {
		nodes[i] = &shell{tag: tagOffsetArray}
	}
	for i, chunk := range chunks {
		var next *shell
		if i+1 < len(nodes) {
			next = nodes[i+1]
		}
		chunk := chunk
		nodes[i].size = 12 + 8*len(chunk)
		nodes[i].encode = func(off func(*shell) uint64) []byte {
			slots := make([]uint64, len(chunk))
			for j, r := range chunk {
				slots[j] = off(r)
			}
			return encodeOffsetArrayPayload(off(next), slots)
		}
	}
	head = nodes[0]
	return inline, head, n, nodes
}

const (
	tagField       uint64 = 1
	tagData        uint64 = 2
	tagEntry       uint64 = 3
	tagOffsetArray uint64 = 4
)

const (
	compressionNone  = 0
	compressionZSTD  = 1
	fileHeaderSize   = 56
	entryPayloadSize = 32
)

// Build lays out every accumulated entry into a new journal file under
// dir and returns its path.
//
// Layout happens in three passes, since offsets are absolute file
// positions but object content references other objects regardless of
// where they end up relative to each other:
//
//  1. create a shell per field, per unique field=value pair, and per
//     entry, and wire their encode closures against each other's shell
//     pointers (no offsets known yet);
//  2. walk the shells in emission order and assign each one its offset;
//  3. invoke every encode closure now that offsetOf resolves any shell
//     to its final position, and write the bytes out.
func (b *Builder) Build(dir string) (string, error) {
	capacity := b.ArrayCapacity
	if capacity <= 0 {
		capacity = 2
	}

	fieldSet := map[string]bool{}
	for _, e := range b.entries {
		for k := range e.Fields {
			fieldSet[k] = true
		}
	}
	sortedFields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		sortedFields = append(sortedFields, k)
	}
	sort.Strings(sortedFields)

	entryShells := make([]*shell, len(b.entries))
	for i := range b.entries {
		entryShells[i] = &shell{tag: tagEntry}
	}

	var zenc *zstd.Encoder
	if b.Compress {
		var err error
		zenc, err = zstd.NewWriter(nil)
		if err != nil {
			return "", err
		}
		defer zenc.Close()
	}

	var order []*shell
	fieldShells := make([]*shell, len(sortedFields))
	dataShellFor := map[string]*shell{} // "field=value" -> its shell

	for fi, fname := range sortedFields {
		var values []string
		seen := map[string]bool{}
		refsByValue := map[string][]*shell{}
		for i, e := range b.entries {
			v, ok := e.Fields[fname]
			if !ok {
				continue
			}
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
			refsByValue[v] = append(refsByValue[v], entryShells[i])
		}

		fieldShell := &shell{tag: tagField}
		fieldShells[fi] = fieldShell
		order = append(order, fieldShell)

		dataShells := make([]*shell, len(values))
		for vi, v := range values {
			payloadStr := fname + "=" + v
			var raw []byte
			var flags uint64
			if b.Compress {
				raw = zenc.EncodeAll([]byte(payloadStr), nil)
				flags = compressionZSTD
			} else {
				raw = []byte(payloadStr)
				flags = compressionNone
			}

			ds := &shell{tag: tagData}
			dataShells[vi] = ds
			dataShellFor[payloadStr] = ds
			order = append(order, ds)

			inline, head, n, nodes := buildChain(refsByValue[v], capacity)
			order = append(order, nodes...)

			ds.size = 8 + 8 + 8 + 8 + 8 + 4 + len(raw)
			vi := vi
			ds.encode = func(off func(*shell) uint64) []byte {
				var next *shell
				if vi+1 < len(dataShells) {
					next = dataShells[vi+1]
				}
				return encodeDataPayload(off(next), flags, off(inline), off(head), n, raw)
			}
		}

		name := fname
		fi := fi
		fieldShell.size = 8 + 8 + 4 + len(name)
		fieldShell.encode = func(off func(*shell) uint64) []byte {
			var next *shell
			if fi+1 < len(fieldShells) {
				next = fieldShells[fi+1]
			}
			var first *shell
			if len(dataShells) > 0 {
				first = dataShells[0]
			}
			return encodeFieldPayload(off(next), off(first), name)
		}
	}

	for i, e := range b.entries {
		var dataRefs []*shell
		for _, fname := range sortedFields {
			if v, ok := e.Fields[fname]; ok {
				dataRefs = append(dataRefs, dataShellFor[fname+"="+v])
			}
		}

		inline, head, n, nodes := buildChain(dataRefs, capacity)
		order = append(order, entryShells[i])
		order = append(order, nodes...)

		es := entryShells[i]
		ts := e.Timestamp
		es.size = entryPayloadSize
		es.encode = func(off func(*shell) uint64) []byte {
			return encodeEntryPayload(ts, off(inline), off(head), n)
		}
	}

	globalInline, globalHead, globalN, globalNodes := buildChain(entryShells, capacity)
	order = append(order, globalNodes...)

	running := int64(fileHeaderSize)
	for _, s := range order {
		s.offset = uint64(running)
		running += objectHeaderSize + int64(s.size)
	}

	var firstField *shell
	if len(fieldShells) > 0 {
		firstField = fieldShells[0]
	}

	buf := make([]byte, running)
	copy(buf[0:fileHeaderSize], encodeFileHeader(offsetOf(firstField), offsetOf(globalInline), offsetOf(globalHead), globalN))
	for _, s := range order {
		payload := s.encode(offsetOf)
		hdr := encodeObjectHeader(s.tag, uint64(len(payload)))
		copy(buf[s.offset:], hdr)
		copy(buf[s.offset+objectHeaderSize:], payload)
	}

	path := filepath.Join(dir, "journal.jrnl")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
