package journalfile

import "errors"

// Error kinds follow the taxonomy in the malformed-input family (§7):
// each distinct failure shape gets its own sentinel so callers can tell
// corruption from a usage mistake.
var (
	ErrBadMagic          = errors.New("journalfile: bad magic")
	ErrLengthUnderflow   = errors.New("journalfile: length underflow")
	ErrUnknownObjectType = errors.New("journalfile: unknown object type")
	ErrOffsetOutOfBounds = errors.New("journalfile: offset out of bounds")
	ErrInvalidUTF8       = errors.New("journalfile: payload is not valid utf-8")
	ErrZeroEntryCount    = errors.New("journalfile: data object has zero entry count")
	ErrNullOffset        = errors.New("journalfile: dereferenced a null (zero) offset")
)
