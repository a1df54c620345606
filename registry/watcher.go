package registry

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/metrics"
)

// Watcher drives a Repository from filesystem events: creates/modifies of
// journal files become inserts, removes become deletes, and directory
// create/remove events add or drop whole subtrees. It runs on its own
// goroutine; every mutation goes through the Repository's own lock, so
// there is nothing else here to serialize.
type Watcher struct {
	repo *Repository
	fsw  *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a Watcher over repo. Call AddDirectory to start
// tracking a root; call Close to stop and release the underlying
// fsnotify handle.
func NewWatcher(repo *Repository) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("registry: failed to create watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{repo: repo, fsw: fsw, ctx: ctx, cancel: cancel}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// AddDirectory performs an initial recursive scan of dir, inserting every
// journal file found, then starts watching dir and every subdirectory
// discovered for further events.
func (w *Watcher) AddDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			klog.Warningf("registry: walk error at %q: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("registry: failed to watch %q: %w", path, err)
			}
			return nil
		}
		if IsJournalPath(path) {
			w.insertPath(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching dir and drops every file tracked under
// it.
func (w *Watcher) RemoveDirectory(dir string) {
	_ = w.fsw.Remove(dir)
	n := w.repo.RemoveSubtree(dir)
	klog.V(3).Infof("registry: removed %d chain groupings under %q", n, dir)
}

// Close stops the event loop and releases the fsnotify handle.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			metrics.RegistryWatchErrors.Inc()
			klog.Errorf("registry: watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		if isDir(event.Name) {
			klog.V(3).Infof("registry: new directory %q; scanning", event.Name)
			if err := w.AddDirectory(event.Name); err != nil {
				klog.Warningf("registry: failed to watch new directory %q: %v", event.Name, err)
			}
			return
		}
		if IsJournalPath(event.Name) {
			w.insertPath(event.Name)
		}

	case event.Op&fsnotify.Write != 0:
		if IsJournalPath(event.Name) {
			w.insertPath(event.Name)
		}

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if IsJournalPath(event.Name) {
			if f, err := ParsePath(event.Name); err == nil {
				w.repo.RemoveFile(f)
			}
			return
		}
		// Could be a directory disappearing out from under us; harmless if
		// it wasn't one, RemoveSubtree is a no-op when nothing matches.
		w.repo.RemoveSubtree(event.Name)

	default:
		klog.V(4).Infof("registry: ignoring event %q on %q", event.Op, event.Name)
	}
}

func (w *Watcher) insertPath(path string) {
	f, err := ParsePath(path)
	if err != nil {
		klog.V(3).Infof("registry: skipping unparseable journal path %q: %v", path, err)
		return
	}
	w.repo.InsertFile(f)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
