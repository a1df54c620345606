// Package indexer builds a FileIndex — a histogram plus one compressed
// bitmap per observed field=value pair — from a memory-mapped journal
// file in a single bounded-memory pass.
package indexer

import (
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/bitmap"
	"github.com/netdata/journal-query/histogram"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/offsetarray"
)

// FileIndex is C5's output: a histogram over the file's entries, one
// bitmap per observed field=value pair restricted to the requested
// facet fields, and the bookkeeping needed to tell a caller which
// fields the file carries versus which were actually indexed.
type FileIndex struct {
	Histogram         *histogram.Histogram
	Bitmaps           map[string]*bitmap.Bitmap
	FieldsInFile      map[string]bool
	IndexedFields     map[string]bool
	BucketDurationSec uint32
	Universe          uint64
}

// UnindexedFields returns fields the file carries that were not in the
// caller's requested facet set.
func (fi *FileIndex) UnindexedFields() []string {
	var out []string
	for f := range fi.FieldsInFile {
		if !fi.IndexedFields[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

type tsEntryPair struct {
	ts     uint64
	offset uint64
}

// Indexer owns scratch buffers reused across Build calls so a worker
// pool can hold one Indexer per goroutine and amortize allocations
// instead of allocating fresh slices and maps per file.
type Indexer struct {
	tsEntryPairs     []tsEntryPair
	offsetScratch    []uint64
	entryOffsetIndex map[uint64]int
	ordinalScratch   []uint64
}

func New() *Indexer {
	return &Indexer{entryOffsetIndex: make(map[uint64]int)}
}

func (ix *Indexer) reset() {
	ix.tsEntryPairs = ix.tsEntryPairs[:0]
	ix.offsetScratch = ix.offsetScratch[:0]
	ix.ordinalScratch = ix.ordinalScratch[:0]
	for k := range ix.entryOffsetIndex {
		delete(ix.entryOffsetIndex, k)
	}
}

// Build produces a FileIndex for r, restricted to facetFields.
// sourceTimestampField, if non-empty, names the field whose payload is
// "FIELD=<decimal u64 microseconds>"; entries without it fall back to
// their own header timestamp. A malformed timestamp payload, a failed
// per-data-object cursor walk or an unreadable entry is logged and
// skipped; a failure walking the field chain, a field's data-object
// chain or the global entry chain is returned as an error.
func (ix *Indexer) Build(r *journalfile.Reader, sourceTimestampField string, facetFields []string, bucketDurationSec uint32) (*FileIndex, error) {
	ix.reset()

	fieldsInFile := map[string]bool{}
	fit := r.Fields()
	for f := fit.Next(); f != nil; f = fit.Next() {
		fieldsInFile[f.Name] = true
	}
	if err := fit.Err(); err != nil {
		return nil, err
	}

	if sourceTimestampField != "" {
		if err := ix.collectSourceTimestamps(r, sourceTimestampField); err != nil {
			return nil, err
		}
	}
	for _, p := range ix.tsEntryPairs {
		ix.entryOffsetIndex[p.offset] = -1
	}

	if err := ix.fillFromGlobalChain(r); err != nil {
		return nil, err
	}

	sort.Slice(ix.tsEntryPairs, func(i, j int) bool {
		if ix.tsEntryPairs[i].ts != ix.tsEntryPairs[j].ts {
			return ix.tsEntryPairs[i].ts < ix.tsEntryPairs[j].ts
		}
		return ix.tsEntryPairs[i].offset < ix.tsEntryPairs[j].offset
	})
	for k := range ix.entryOffsetIndex {
		delete(ix.entryOffsetIndex, k)
	}
	for idx, p := range ix.tsEntryPairs {
		ix.entryOffsetIndex[p.offset] = idx
	}

	universe := uint64(len(ix.tsEntryPairs))
	pairs := make([]histogram.TimestampOffset, len(ix.tsEntryPairs))
	for i, p := range ix.tsEntryPairs {
		pairs[i] = histogram.TimestampOffset{TimestampUsec: p.ts, EntryOffset: p.offset}
	}
	hist := histogram.FromTimestampOffsetPairs(bucketDurationSec, pairs)

	bitmaps, err := ix.buildFacetBitmaps(r, facetFields, universe)
	if err != nil {
		return nil, err
	}

	indexedFields := map[string]bool{}
	for _, f := range facetFields {
		indexedFields[f] = true
	}

	return &FileIndex{
		Histogram:         hist,
		Bitmaps:           bitmaps,
		FieldsInFile:      fieldsInFile,
		IndexedFields:     indexedFields,
		BucketDurationSec: bucketDurationSec,
		Universe:          universe,
	}, nil
}

// collectSourceTimestamps walks every data object of the source
// timestamp field, parses its payload, and expands its InlinedCursor
// into (timestamp, entry_offset) pairs — one pair per referencing entry,
// since several entries can share the same timestamp value.
func (ix *Indexer) collectSourceTimestamps(r *journalfile.Reader, fieldName string) error {
	field, err := r.FindField(fieldName)
	if err != nil {
		return err
	}
	if field == nil {
		return nil
	}

	it := r.DataObjectsForField(field)
	for d := it.Next(); d != nil; d = it.Next() {
		ts, ok := parseTimestampPayload(fieldName, d.Payload)
		if !ok {
			klog.Warningf("indexer: skipping malformed source timestamp payload %q", d.Payload)
			continue
		}
		offsets, err := collectInlinedOffsets(r, d.InlineEntryOffset, d.EntryArrayHead, d.NEntries, &ix.offsetScratch)
		if err != nil {
			klog.Warningf("indexer: skipping source timestamp cursor walk: %v", err)
			continue
		}
		for _, off := range offsets {
			ix.tsEntryPairs = append(ix.tsEntryPairs, tsEntryPair{ts: ts, offset: off})
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return nil
}

func parseTimestampPayload(fieldName string, payload string) (uint64, bool) {
	prefix := fieldName + "="
	if !strings.HasPrefix(payload, prefix) {
		return 0, false
	}
	v, err := strconv.ParseUint(payload[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// fillFromGlobalChain walks the journal's global entry chain and, for
// every entry offset not already covered by a source timestamp, pushes
// its own header timestamp as the fallback.
func (ix *Indexer) fillFromGlobalChain(r *journalfile.Reader) error {
	h := r.Header()
	if h.EntryCount == 0 {
		return nil
	}
	offsets, err := collectInlinedOffsets(r, h.EntryInlineOffset, h.EntryArrayHead, h.EntryCount, &ix.offsetScratch)
	if err != nil {
		return err
	}
	for _, off := range offsets {
		if _, ok := ix.entryOffsetIndex[off]; ok {
			continue
		}
		e, err := r.Entry(off)
		if err != nil {
			klog.Warningf("indexer: skipping unreadable entry at %d: %v", off, err)
			continue
		}
		ix.tsEntryPairs = append(ix.tsEntryPairs, tsEntryPair{ts: e.Timestamp, offset: off})
	}
	return nil
}

// buildFacetBitmaps iterates every requested field's data objects and
// builds one optimized bitmap per field=value payload.
func (ix *Indexer) buildFacetBitmaps(r *journalfile.Reader, facetFields []string, universe uint64) (map[string]*bitmap.Bitmap, error) {
	out := map[string]*bitmap.Bitmap{}
	for _, fieldName := range facetFields {
		field, err := r.FindField(fieldName)
		if err != nil {
			return nil, err
		}
		if field == nil {
			continue
		}
		it := r.DataObjectsForField(field)
		for d := it.Next(); d != nil; d = it.Next() {
			offsets, err := collectInlinedOffsets(r, d.InlineEntryOffset, d.EntryArrayHead, d.NEntries, &ix.offsetScratch)
			if err != nil {
				klog.Warningf("indexer: skipping facet value %q: %v", d.Payload, err)
				continue
			}
			ix.ordinalScratch = ix.ordinalScratch[:0]
			for _, off := range offsets {
				ord, ok := ix.entryOffsetIndex[off]
				if !ok {
					continue
				}
				ix.ordinalScratch = append(ix.ordinalScratch, uint64(ord))
			}
			sort.Slice(ix.ordinalScratch, func(i, j int) bool { return ix.ordinalScratch[i] < ix.ordinalScratch[j] })
			bm := bitmap.FromSortedIter(append([]uint64(nil), ix.ordinalScratch...), universe)
			bm.Optimize()
			out[d.Payload] = bm
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// collectInlinedOffsets walks an entire InlinedCursor (inline slot plus
// its offset-array chain) and returns every referenced offset in order,
// using scratch as the backing array. The returned slice aliases
// scratch and is only valid until the next call.
func collectInlinedOffsets(r *journalfile.Reader, inline uint64, arrayHead uint64, total uint64, scratch *[]uint64) ([]uint64, error) {
	*scratch = (*scratch)[:0]
	if total == 0 {
		return nil, nil
	}
	list := offsetarray.NewList(r, arrayHead, total-1)
	ic := offsetarray.NewInlinedCursor(list, inline, total)
	cur, err := ic.Head()
	if err != nil {
		return nil, err
	}
	for {
		*scratch = append(*scratch, cur.Value())
		next, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		cur = next
	}
	return *scratch, nil
}
