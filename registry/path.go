// Package registry tracks the journal files under a set of watched
// directories, groups them into ordered chains per (directory, machine_id?,
// namespace?, source), and answers "which files could hold entries in
// [start_sec, end_sec)" for C8's bucket decomposition.
package registry

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SourceKind identifies which basename shape a journal file's directory
// matched.
type SourceKind int

const (
	SourceSystem SourceKind = iota
	SourceUser
	SourceRemote
	SourceUnknown
)

// Source is the parsed basename component of a journal file's directory:
// "system", "user-<uid>", "remote-<host>", or anything else (Unknown).
type Source struct {
	Kind SourceKind
	UID  uint32
	Host string
	Raw  string
}

func (s Source) String() string {
	switch s.Kind {
	case SourceSystem:
		return "system"
	case SourceUser:
		return fmt.Sprintf("user-%d", s.UID)
	case SourceRemote:
		return "remote-" + s.Host
	default:
		return s.Raw
	}
}

// parseSource splits path on its final '/' and classifies the basename,
// returning the classified Source and the remaining directory path.
func parseSource(path string) (Source, string, error) {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return Source{}, "", fmt.Errorf("registry: no directory component in %q", path)
	}
	dir, basename := path[:idx], path[idx+1:]

	switch {
	case basename == "system":
		return Source{Kind: SourceSystem}, dir, nil
	case strings.HasPrefix(basename, "user-"):
		uidStr := strings.TrimPrefix(basename, "user-")
		uid, err := strconv.ParseUint(uidStr, 10, 32)
		if err != nil {
			return Source{Kind: SourceUnknown, Raw: basename}, dir, nil
		}
		return Source{Kind: SourceUser, UID: uint32(uid)}, dir, nil
	case strings.HasPrefix(basename, "remote-"):
		return Source{Kind: SourceRemote, Host: strings.TrimPrefix(basename, "remote-")}, dir, nil
	default:
		return Source{Kind: SourceUnknown, Raw: basename}, dir, nil
	}
}

// StatusKind distinguishes the three lifecycle states a journal file can be
// in: still being written (Active), rotated out and immutable (Archived),
// or corrupted/replaced (Disposed).
type StatusKind int

const (
	StatusActive StatusKind = iota
	StatusArchived
	StatusDisposed
)

// Status is a journal file's parsed lifecycle state. Only the fields
// relevant to Kind are populated.
type Status struct {
	Kind StatusKind

	// Archived
	SeqnumID         uuid.UUID
	HeadSeqnum       uint64
	HeadRealtimeUsec uint64

	// Disposed
	DisposedTimestamp uint64
	DisposedNumber    uint64
}

// statusLess orders Disposed (by timestamp, then number) before Archived
// (by head_realtime, then seqnum_id, then head_seqnum) before Active.
func statusLess(a, b Status) bool {
	rank := func(s Status) int {
		switch s.Kind {
		case StatusDisposed:
			return 0
		case StatusArchived:
			return 1
		default:
			return 2
		}
	}
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}
	switch a.Kind {
	case StatusDisposed:
		if a.DisposedTimestamp != b.DisposedTimestamp {
			return a.DisposedTimestamp < b.DisposedTimestamp
		}
		return a.DisposedNumber < b.DisposedNumber
	case StatusArchived:
		if a.HeadRealtimeUsec != b.HeadRealtimeUsec {
			return a.HeadRealtimeUsec < b.HeadRealtimeUsec
		}
		if c := bytes.Compare(a.SeqnumID[:], b.SeqnumID[:]); c != 0 {
			return c < 0
		}
		return a.HeadSeqnum < b.HeadSeqnum
	default:
		return false
	}
}

// parseStatus parses the trailing status suffix from path (".journal",
// "@<seqnum_id>-<hex_head_seqnum>-<hex_head_realtime>.journal", or
// "@<hex_ts>-<hex_n>.journal~"), returning the parsed Status and the
// remaining path with the suffix stripped.
func parseStatus(path string) (Status, string, error) {
	if stem, ok := strings.CutSuffix(path, ".journal"); ok {
		idx := strings.LastIndexByte(stem, '@')
		if idx < 0 {
			return Status{Kind: StatusActive}, stem, nil
		}
		prefix, suffix := stem[:idx], stem[idx+1:]
		parts := strings.Split(suffix, "-")
		if len(parts) != 3 {
			return Status{}, "", fmt.Errorf("registry: malformed archived suffix %q", suffix)
		}
		seqnumID, err := uuid.Parse(parts[0])
		if err != nil {
			return Status{}, "", fmt.Errorf("registry: bad seqnum_id %q: %w", parts[0], err)
		}
		headSeqnum, err := strconv.ParseUint(parts[1], 16, 64)
		if err != nil {
			return Status{}, "", fmt.Errorf("registry: bad head_seqnum %q: %w", parts[1], err)
		}
		headRealtime, err := strconv.ParseUint(parts[2], 16, 64)
		if err != nil {
			return Status{}, "", fmt.Errorf("registry: bad head_realtime %q: %w", parts[2], err)
		}
		return Status{
			Kind:             StatusArchived,
			SeqnumID:         seqnumID,
			HeadSeqnum:       headSeqnum,
			HeadRealtimeUsec: headRealtime,
		}, prefix, nil
	}

	if stem, ok := strings.CutSuffix(path, ".journal~"); ok {
		idx := strings.LastIndexByte(stem, '@')
		if idx < 0 {
			return Status{}, "", fmt.Errorf("registry: malformed disposed path %q", path)
		}
		prefix, suffix := stem[:idx], stem[idx+1:]
		dashIdx := strings.LastIndexByte(suffix, '-')
		if dashIdx < 0 {
			return Status{}, "", fmt.Errorf("registry: malformed disposed suffix %q", suffix)
		}
		tsStr, numStr := suffix[:dashIdx], suffix[dashIdx+1:]
		ts, err := strconv.ParseUint(tsStr, 16, 64)
		if err != nil {
			return Status{}, "", fmt.Errorf("registry: bad disposed timestamp %q: %w", tsStr, err)
		}
		num, err := strconv.ParseUint(numStr, 16, 64)
		if err != nil {
			return Status{}, "", fmt.Errorf("registry: bad disposed number %q: %w", numStr, err)
		}
		return Status{Kind: StatusDisposed, DisposedTimestamp: ts, DisposedNumber: num}, prefix, nil
	}

	return Status{}, "", fmt.Errorf("registry: %q is not a journal path", path)
}

// Origin is the grouping key for a chain: the machine/namespace directory
// component (if any) plus the classified Source. It is comparable, so it
// can be used directly as a map key the way the original used it as a
// HashMap key.
type Origin struct {
	MachineID    uuid.UUID
	HasMachineID bool
	Namespace    string
	Source       Source
}

// File is one parsed journal file: its absolute path, the directory its
// chain is grouped under, its Origin, and its lifecycle Status.
type File struct {
	Path   string
	Dir    string
	Origin Origin
	Status Status
}

// fileLess orders files the way Chain expects them stored: by Status, then
// by Path for stability among equal statuses.
func fileLess(a, b *File) bool {
	if statusLess(a.Status, b.Status) {
		return true
	}
	if statusLess(b.Status, a.Status) {
		return false
	}
	return a.Path < b.Path
}

// ParsePath parses an absolute journal file path into a File. Any
// deviation from the expected grammar rejects the path, matching the
// original's "not lenient" parser.
//
// Grammar: <dir>/(<machine_id>(.<namespace>)?/)?(system|user-<uid>|
// remote-<host>|<anything>)(@<seqnum_id>-<hex>-<hex>)?.journal(~)?, with
// the disposed variant (<stem>@<hex_ts>-<hex_n>.journal~).
func ParsePath(path string) (*File, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("registry: path %q is not absolute", path)
	}

	status, afterStatus, err := parseStatus(path)
	if err != nil {
		return nil, err
	}

	source, afterSource, err := parseSource(afterStatus)
	if err != nil {
		return nil, err
	}

	var machineID uuid.UUID
	hasMachineID := false
	var namespace string
	dir := afterSource

	if afterSource != "" {
		dirname := afterSource
		parent := ""
		if idx := strings.LastIndexByte(afterSource, '/'); idx >= 0 {
			parent, dirname = afterSource[:idx], afterSource[idx+1:]
		}

		if idStr, ns, ok := strings.Cut(dirname, "."); ok {
			id, err := uuid.Parse(idStr)
			if err == nil {
				machineID, hasMachineID, namespace = id, true, ns
				dir = parent
			}
		} else if id, err := uuid.Parse(dirname); err == nil {
			machineID, hasMachineID = id, true
			dir = parent
		}
	}

	return &File{
		Path: path,
		Dir:  dir,
		Origin: Origin{
			MachineID:    machineID,
			HasMachineID: hasMachineID,
			Namespace:    namespace,
			Source:       source,
		},
		Status: status,
	}, nil
}

// IsJournalPath reports whether path has a journal or disposed-journal
// extension, without attempting a full parse.
func IsJournalPath(path string) bool {
	return strings.HasSuffix(path, ".journal") || strings.HasSuffix(path, ".journal~")
}
