package journalfile

import (
	"encoding/binary"
	"unicode/utf8"
)

// Object kinds, matching the arena's typed header tags (§6: 8-byte
// little-endian type tag, 8-byte length, payload follows).
const (
	TagField       uint64 = 1
	TagData        uint64 = 2
	TagEntry       uint64 = 3
	TagOffsetArray uint64 = 4
)

const objectHeaderSize = 16 // type tag + length, both u64 LE

// CompressionNone and CompressionZSTD are the compression flag bits
// carried in a data object's header.
const (
	CompressionNone = 0
	CompressionZSTD = 1
)

// fileHeaderSize is the fixed size of the journal file's own header.
const fileHeaderSize = 56

var magic = [8]byte{'J', 'R', 'N', 'L', 'v', '1', 0, 0}

// FileHeader is the journal arena's leading, fixed-size object: it names
// the head of the global field chain and exposes the global entry list
// as the same (inline-offset, array-chain-head, count) triple used by
// every data/entry object's own entry/data references.
type FileHeader struct {
	FieldChainHead    uint64
	EntryInlineOffset uint64
	EntryArrayHead    uint64
	EntryCount        uint64
}

func (h *FileHeader) encode() []byte {
	buf := make([]byte, fileHeaderSize)
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint64(buf[8:16], 1)
	binary.LittleEndian.PutUint64(buf[16:24], h.FieldChainHead)
	binary.LittleEndian.PutUint64(buf[24:32], h.EntryInlineOffset)
	binary.LittleEndian.PutUint64(buf[32:40], h.EntryArrayHead)
	binary.LittleEndian.PutUint64(buf[40:48], h.EntryCount)
	return buf
}

func decodeFileHeader(buf []byte) (*FileHeader, error) {
	if len(buf) < fileHeaderSize {
		return nil, ErrLengthUnderflow
	}
	if string(buf[0:8]) != string(magic[:]) {
		return nil, ErrBadMagic
	}
	return &FileHeader{
		FieldChainHead:    binary.LittleEndian.Uint64(buf[16:24]),
		EntryInlineOffset: binary.LittleEndian.Uint64(buf[24:32]),
		EntryArrayHead:    binary.LittleEndian.Uint64(buf[32:40]),
		EntryCount:        binary.LittleEndian.Uint64(buf[40:48]),
	}, nil
}

// objectHeader is the common prefix of every arena object.
type objectHeader struct {
	tag    uint64
	length uint64
}

func decodeObjectHeader(buf []byte) (objectHeader, error) {
	if len(buf) < objectHeaderSize {
		return objectHeader{}, ErrLengthUnderflow
	}
	return objectHeader{
		tag:    binary.LittleEndian.Uint64(buf[0:8]),
		length: binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

func encodeObjectHeader(tag uint64, length uint64) []byte {
	buf := make([]byte, objectHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], tag)
	binary.LittleEndian.PutUint64(buf[8:16], length)
	return buf
}

// fieldPayload: NextFieldOffset(8) DataChainHead(8) NameLen(4) Name(NameLen)
type fieldPayload struct {
	NextFieldOffset uint64
	DataChainHead   uint64
	Name            string
}

func encodeFieldPayload(p fieldPayload) []byte {
	name := []byte(p.Name)
	buf := make([]byte, 8+8+4+len(name))
	binary.LittleEndian.PutUint64(buf[0:8], p.NextFieldOffset)
	binary.LittleEndian.PutUint64(buf[8:16], p.DataChainHead)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(name)))
	copy(buf[20:], name)
	return buf
}

func decodeFieldPayload(buf []byte) (fieldPayload, error) {
	if len(buf) < 20 {
		return fieldPayload{}, ErrLengthUnderflow
	}
	nameLen := binary.LittleEndian.Uint32(buf[16:20])
	if uint32(len(buf)) < 20+nameLen {
		return fieldPayload{}, ErrLengthUnderflow
	}
	name := buf[20 : 20+nameLen]
	if !utf8.Valid(name) {
		return fieldPayload{}, ErrInvalidUTF8
	}
	return fieldPayload{
		NextFieldOffset: binary.LittleEndian.Uint64(buf[0:8]),
		DataChainHead:   binary.LittleEndian.Uint64(buf[8:16]),
		Name:            string(name),
	}, nil
}

// dataPayload: NextDataOffset(8) CompressionFlags(8) InlineEntryOffset(8)
// EntryArrayHead(8) NEntries(8) PayloadLen(4) Payload(PayloadLen)
type dataPayload struct {
	NextDataOffset    uint64
	CompressionFlags  uint64
	InlineEntryOffset uint64
	EntryArrayHead    uint64
	NEntries          uint64
	Payload           []byte
}

func encodeDataPayload(p dataPayload) []byte {
	buf := make([]byte, 8+8+8+8+8+4+len(p.Payload))
	binary.LittleEndian.PutUint64(buf[0:8], p.NextDataOffset)
	binary.LittleEndian.PutUint64(buf[8:16], p.CompressionFlags)
	binary.LittleEndian.PutUint64(buf[16:24], p.InlineEntryOffset)
	binary.LittleEndian.PutUint64(buf[24:32], p.EntryArrayHead)
	binary.LittleEndian.PutUint64(buf[32:40], p.NEntries)
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(p.Payload)))
	copy(buf[44:], p.Payload)
	return buf
}

func decodeDataPayload(buf []byte) (dataPayload, error) {
	if len(buf) < 44 {
		return dataPayload{}, ErrLengthUnderflow
	}
	payloadLen := binary.LittleEndian.Uint32(buf[40:44])
	if uint32(len(buf)) < 44+payloadLen {
		return dataPayload{}, ErrLengthUnderflow
	}
	if binary.LittleEndian.Uint64(buf[32:40]) == 0 {
		return dataPayload{}, ErrZeroEntryCount
	}
	return dataPayload{
		NextDataOffset:    binary.LittleEndian.Uint64(buf[0:8]),
		CompressionFlags:  binary.LittleEndian.Uint64(buf[8:16]),
		InlineEntryOffset: binary.LittleEndian.Uint64(buf[16:24]),
		EntryArrayHead:    binary.LittleEndian.Uint64(buf[24:32]),
		NEntries:          binary.LittleEndian.Uint64(buf[32:40]),
		Payload:           buf[44 : 44+payloadLen],
	}, nil
}

// entryPayload: Timestamp(8) InlineDataOffset(8) DataArrayHead(8) NData(8)
type entryPayload struct {
	Timestamp        uint64
	InlineDataOffset uint64
	DataArrayHead    uint64
	NData            uint64
}

const entryPayloadSize = 32

func encodeEntryPayload(p entryPayload) []byte {
	buf := make([]byte, entryPayloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], p.Timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], p.InlineDataOffset)
	binary.LittleEndian.PutUint64(buf[16:24], p.DataArrayHead)
	binary.LittleEndian.PutUint64(buf[24:32], p.NData)
	return buf
}

func decodeEntryPayload(buf []byte) (entryPayload, error) {
	if len(buf) < entryPayloadSize {
		return entryPayload{}, ErrLengthUnderflow
	}
	return entryPayload{
		Timestamp:        binary.LittleEndian.Uint64(buf[0:8]),
		InlineDataOffset: binary.LittleEndian.Uint64(buf[8:16]),
		DataArrayHead:    binary.LittleEndian.Uint64(buf[16:24]),
		NData:            binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// offsetArrayPayload: NextOffsetArray(8) Capacity(4) Slots(Capacity*8)
type offsetArrayPayload struct {
	NextOffsetArray uint64
	Slots           []uint64
}

func encodeOffsetArrayPayload(p offsetArrayPayload) []byte {
	buf := make([]byte, 8+4+8*len(p.Slots))
	binary.LittleEndian.PutUint64(buf[0:8], p.NextOffsetArray)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(p.Slots)))
	for i, s := range p.Slots {
		binary.LittleEndian.PutUint64(buf[12+i*8:20+i*8], s)
	}
	return buf
}

func decodeOffsetArrayPayload(buf []byte) (offsetArrayPayload, error) {
	if len(buf) < 12 {
		return offsetArrayPayload{}, ErrLengthUnderflow
	}
	capacity := binary.LittleEndian.Uint32(buf[8:12])
	need := 12 + int(capacity)*8
	if len(buf) < need {
		return offsetArrayPayload{}, ErrLengthUnderflow
	}
	slots := make([]uint64, capacity)
	for i := range slots {
		slots[i] = binary.LittleEndian.Uint64(buf[12+i*8 : 20+i*8])
	}
	return offsetArrayPayload{
		NextOffsetArray: binary.LittleEndian.Uint64(buf[0:8]),
		Slots:           slots,
	}, nil
}

