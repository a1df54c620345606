package journaltest

import "encoding/binary"

// Mirrors the binary layout in journalfile/format.go. Kept as a
// separate, self-contained encoder rather than importing unexported
// helpers from journalfile, since a test-support package should build
// arenas the same way any other writer would: from the documented wire
// shapes, not from the reader's internals.

const objectHeaderSize = 16

var magic = [8]byte{'J', 'R', 'N', 'L', 'v', '1', 0, 0}

func encodeFileHeader(fieldChainHead, entryInline, entryArrayHead, entryCount uint64) []byte {
	buf := make([]byte, fileHeaderSize)
	copy(buf[0:8], magic[:])
	binary.LittleEndian.PutUint64(buf[8:16], 1)
	binary.LittleEndian.PutUint64(buf[16:24], fieldChainHead)
	binary.LittleEndian.PutUint64(buf[24:32], entryInline)
	binary.LittleEndian.PutUint64(buf[32:40], entryArrayHead)
	binary.LittleEndian.PutUint64(buf[40:48], entryCount)
	return buf
}

func encodeObjectHeader(tag, length uint64) []byte {
	buf := make([]byte, objectHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], tag)
	binary.LittleEndian.PutUint64(buf[8:16], length)
	return buf
}

func encodeFieldPayload(nextFieldOffset, dataChainHead uint64, name string) []byte {
	n := []byte(name)
	buf := make([]byte, 8+8+4+len(n))
	binary.LittleEndian.PutUint64(buf[0:8], nextFieldOffset)
	binary.LittleEndian.PutUint64(buf[8:16], dataChainHead)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(n)))
	copy(buf[20:], n)
	return buf
}

func encodeDataPayload(nextDataOffset, compressionFlags, inlineEntryOffset, entryArrayHead, nEntries uint64, payload []byte) []byte {
	buf := make([]byte, 8+8+8+8+8+4+len(payload))
	binary.LittleEndian.PutUint64(buf[0:8], nextDataOffset)
	binary.LittleEndian.PutUint64(buf[8:16], compressionFlags)
	binary.LittleEndian.PutUint64(buf[16:24], inlineEntryOffset)
	binary.LittleEndian.PutUint64(buf[24:32], entryArrayHead)
	binary.LittleEndian.PutUint64(buf[32:40], nEntries)
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(payload)))
	copy(buf[44:], payload)
	return buf
}

func encodeEntryPayload(timestamp, inlineDataOffset, dataArrayHead, nData uint64) []byte {
	buf := make([]byte, entryPayloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], inlineDataOffset)
	binary.LittleEndian.PutUint64(buf[16:24], dataArrayHead)
	binary.LittleEndian.PutUint64(buf[24:32], nData)
	return buf
}

func encodeOffsetArrayPayload(nextOffsetArray uint64, slots []uint64) []byte {
	buf := make([]byte, 8+4+8*len(slots))
	binary.LittleEndian.PutUint64(buf[0:8], nextOffsetArray)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(slots)))
	for i, s := range slots {
		binary.LittleEndian.PutUint64(buf[12+i*8:20+i*8], s)
	}
	return buf
}
