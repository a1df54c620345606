package journalfile

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Reader gives type-safe access to a journal arena through a Source;
// each object payload is copied out of the Source before decoding. It never panics on malformed input: every accessor returns one
// of the distinct error kinds in errors.go instead.
type Reader struct {
	src    Source
	header *FileHeader

	zmu sync.Mutex
	zd  *zstd.Decoder
}

// OpenReader opens the journal file at path and reads its file-level
// header. windowSize <= 0 selects DefaultWindowSize.
func OpenReader(path string, windowSize int64) (*Reader, error) {
	src, err := OpenSource(path, windowSize)
	if err != nil {
		return nil, err
	}
	r := &Reader{src: src}
	if err := r.readFileHeader(); err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// NewReader wraps an already-open Source, e.g. one built over an
// in-memory buffer in tests.
func NewReader(src Source) (*Reader, error) {
	r := &Reader{src: src}
	if err := r.readFileHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) readFileHeader() error {
	g, err := r.src.Slice(0, fileHeaderSize)
	if err != nil {
		return err
	}
	defer g.Release()
	h, err := decodeFileHeader(g.Bytes)
	if err != nil {
		return err
	}
	r.header = h
	return nil
}

func (r *Reader) Header() *FileHeader { return r.header }

func (r *Reader) Close() error {
	if r.zd != nil {
		r.zd.Close()
	}
	return r.src.Close()
}

func (r *Reader) readObjectHeader(off uint64) (objectHeader, error) {
	if off == 0 {
		return objectHeader{}, ErrNullOffset
	}
	if int64(off)+objectHeaderSize > r.src.Size() {
		return objectHeader{}, ErrOffsetOutOfBounds
	}
	g, err := r.src.Slice(int64(off), objectHeaderSize)
	if err != nil {
		return objectHeader{}, err
	}
	defer g.Release()
	return decodeObjectHeader(g.Bytes)
}

func (r *Reader) readPayload(off uint64, hdr objectHeader) ([]byte, error) {
	start := int64(off) + objectHeaderSize
	if start+int64(hdr.length) > r.src.Size() {
		return nil, ErrOffsetOutOfBounds
	}
	g, err := r.src.Slice(start, int64(hdr.length))
	if err != nil {
		return nil, err
	}
	defer g.Release()
	buf := make([]byte, len(g.Bytes))
	copy(buf, g.Bytes)
	return buf, nil
}

// FieldObject is a field name payload plus its two chain links: the next
// field in the global field chain, and the head of this field's data
// object chain.
type FieldObject struct {
	Offset          uint64
	Name            string
	NextFieldOffset uint64
	DataChainHead   uint64
}

func (r *Reader) Field(off uint64) (*FieldObject, error) {
	hdr, err := r.readObjectHeader(off)
	if err != nil {
		return nil, err
	}
	if hdr.tag != TagField {
		return nil, ErrUnknownObjectType
	}
	payload, err := r.readPayload(off, hdr)
	if err != nil {
		return nil, err
	}
	p, err := decodeFieldPayload(payload)
	if err != nil {
		return nil, err
	}
	return &FieldObject{Offset: off, Name: p.Name, NextFieldOffset: p.NextFieldOffset, DataChainHead: p.DataChainHead}, nil
}

// DataObject is one FIELD=value payload, decompressed on demand into the
// caller-supplied scratch buffer, plus its InlinedCursor fields (C3) over
// the entries that reference it.
type DataObject struct {
	Offset            uint64
	Payload           string // "FIELD=value"
	NextDataOffset    uint64
	InlineEntryOffset uint64
	EntryArrayHead    uint64
	NEntries          uint64
}

// Data reads the data object at off. scratch is reused across calls as
// the decompression destination buffer.
func (r *Reader) Data(off uint64, scratch *[]byte) (*DataObject, error) {
	hdr, err := r.readObjectHeader(off)
	if err != nil {
		return nil, err
	}
	if hdr.tag != TagData {
		return nil, ErrUnknownObjectType
	}
	raw, err := r.readPayload(off, hdr)
	if err != nil {
		return nil, err
	}
	p, err := decodeDataPayload(raw)
	if err != nil {
		return nil, err
	}
	var payloadBytes []byte
	switch p.CompressionFlags {
	case CompressionNone:
		payloadBytes = p.Payload
	case CompressionZSTD:
		out, err := r.decompress(p.Payload, scratch)
		if err != nil {
			return nil, fmt.Errorf("journalfile: decompress data object at %d: %w", off, err)
		}
		payloadBytes = out
	default:
		return nil, ErrUnknownObjectType
	}
	return &DataObject{
		Offset:            off,
		Payload:           string(payloadBytes),
		NextDataOffset:    p.NextDataOffset,
		InlineEntryOffset: p.InlineEntryOffset,
		EntryArrayHead:    p.EntryArrayHead,
		NEntries:          p.NEntries,
	}, nil
}

func (r *Reader) decompress(compressed []byte, scratch *[]byte) ([]byte, error) {
	r.zmu.Lock()
	defer r.zmu.Unlock()
	if r.zd == nil {
		zd, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		r.zd = zd
	}
	dst := (*scratch)[:0]
	out, err := r.zd.DecodeAll(compressed, dst)
	if err != nil {
		return nil, err
	}
	*scratch = out
	return out, nil
}

// EntryObject is a timestamped record plus an InlinedCursor over the
// data objects (field=value pairs) it carries.
type EntryObject struct {
	Offset           uint64
	Timestamp        uint64
	InlineDataOffset uint64
	DataArrayHead    uint64
	NData            uint64
}

func (r *Reader) Entry(off uint64) (*EntryObject, error) {
	hdr, err := r.readObjectHeader(off)
	if err != nil {
		return nil, err
	}
	if hdr.tag != TagEntry {
		return nil, ErrUnknownObjectType
	}
	payload, err := r.readPayload(off, hdr)
	if err != nil {
		return nil, err
	}
	p, err := decodeEntryPayload(payload)
	if err != nil {
		return nil, err
	}
	return &EntryObject{
		Offset:           off,
		Timestamp:        p.Timestamp,
		InlineDataOffset: p.InlineDataOffset,
		DataArrayHead:    p.DataArrayHead,
		NData:            p.NData,
	}, nil
}

// OffsetArrayObject is one capacity-bounded node of an offset chain.
type OffsetArrayObject struct {
	Offset          uint64
	NextOffsetArray uint64
	Slots           []uint64
}

func (r *Reader) OffsetArray(off uint64) (*OffsetArrayObject, error) {
	hdr, err := r.readObjectHeader(off)
	if err != nil {
		return nil, err
	}
	if hdr.tag != TagOffsetArray {
		return nil, ErrUnknownObjectType
	}
	payload, err := r.readPayload(off, hdr)
	if err != nil {
		return nil, err
	}
	p, err := decodeOffsetArrayPayload(payload)
	if err != nil {
		return nil, err
	}
	return &OffsetArrayObject{Offset: off, NextOffsetArray: p.NextOffsetArray, Slots: p.Slots}, nil
}
