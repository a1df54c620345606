package registry

import (
	"strings"
	"sync"

	"github.com/netdata/journal-query/metrics"
)

// Repository is the concurrency-safe collection of chains, grouped by
// directory then Origin. Every mutation and the range query both take the
// same write/read lock, matching the single-writer-lock requirement for
// watcher-driven mutations.
type Repository struct {
	mu          sync.RWMutex
	directories map[string]map[Origin]*Chain
}

// NewRepository returns an empty Repository.
func NewRepository() *Repository {
	return &Repository{directories: make(map[string]map[Origin]*Chain)}
}

// InsertFile adds or updates f in its chain.
func (r *Repository) InsertFile(f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chains, ok := r.directories[f.Dir]
	if !ok {
		chains = make(map[Origin]*Chain)
		r.directories[f.Dir] = chains
	}
	chain, ok := chains[f.Origin]
	if !ok {
		chain = &Chain{}
		chains[f.Origin] = chain
	}
	chain.insert(f)
	r.observeSizeLocked()
}

// RemoveFile drops f from its chain, pruning now-empty chains and
// directories.
func (r *Repository) RemoveFile(f *File) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chains, ok := r.directories[f.Dir]
	if !ok {
		return
	}
	chain, ok := chains[f.Origin]
	if !ok {
		return
	}
	chain.remove(f.Path)
	if chain.isEmpty() {
		delete(chains, f.Origin)
	}
	if len(chains) == 0 {
		delete(r.directories, f.Dir)
	}
	r.observeSizeLocked()
}

// RemoveSubtree drops every directory entry at or below dirPrefix (used
// when a watched directory itself is deleted), returning the number of
// top-level directory groupings removed.
func (r *Repository) RemoveSubtree(dirPrefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for dir := range r.directories {
		if dir == dirPrefix || strings.HasPrefix(dir, dirPrefix+"/") {
			delete(r.directories, dir)
			removed++
		}
	}
	r.observeSizeLocked()
	return removed
}

// observeSizeLocked updates the tracked-files gauge. Callers must already
// hold r.mu for writing.
func (r *Repository) observeSizeLocked() {
	total := 0
	for _, chains := range r.directories {
		for _, chain := range chains {
			total += len(chain.files)
		}
	}
	metrics.RegistryFilesTracked.Set(float64(total))
}

// FindFilesInRange returns every known file path whose chain membership
// overlaps [startSec, endSec), across every tracked directory and chain.
// Its signature matches histogramsvc.FilesInRangeFunc so it can be wired
// in directly.
func (r *Repository) FindFilesInRange(startSec, endSec uint32) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, chains := range r.directories {
		for _, chain := range chains {
			out = chain.appendFilesInRange(startSec, endSec, out)
		}
	}
	return out
}

// ActiveFiles returns the active (currently-being-written) file of every
// chain that has one.
func (r *Repository) ActiveFiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, chains := range r.directories {
		for _, chain := range chains {
			if f := chain.activeFile(); f != nil {
				out = append(out, f.Path)
			}
		}
	}
	return out
}
