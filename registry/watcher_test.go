package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/registry"
)

func TestWatcherTracksCreateAndRemove(t *testing.T) {
	dir := t.TempDir()
	repo := registry.NewRepository()
	w, err := registry.NewWatcher(repo)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, w.AddDirectory(dir))

	path := filepath.Join(dir, "system.journal")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(repo.FindFilesInRange(0, 1)) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		return len(repo.FindFilesInRange(0, 1)) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherDropsSubtreeOnDirectoryRemoval(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	repo := registry.NewRepository()
	w, err := registry.NewWatcher(repo)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, w.AddDirectory(root))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "system.journal"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(repo.FindFilesInRange(0, 1)) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.RemoveAll(sub))

	require.Eventually(t, func() bool {
		return len(repo.FindFilesInRange(0, 1)) == 0
	}, 2*time.Second, 20*time.Millisecond)
}
