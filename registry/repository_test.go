package registry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/registry"
)

func mustParse(t *testing.T, path string) *registry.File {
	t.Helper()
	f, err := registry.ParsePath(path)
	require.NoError(t, err)
	return f
}

func TestRepositoryFindFilesInRangeAcrossChains(t *testing.T) {
	repo := registry.NewRepository()
	repo.InsertFile(mustParse(t, "/var/log/journal/system.journal"))
	repo.InsertFile(mustParse(t, "/var/log/journal/user-1000.journal"))

	got := repo.FindFilesInRange(0, 10)
	require.ElementsMatch(t, []string{
		"/var/log/journal/system.journal",
		"/var/log/journal/user-1000.journal",
	}, got)
}

func TestRepositoryRemoveFilePrunesEmptyGroupings(t *testing.T) {
	repo := registry.NewRepository()
	f := mustParse(t, "/var/log/journal/system.journal")
	repo.InsertFile(f)
	require.Len(t, repo.FindFilesInRange(0, 10), 1)

	repo.RemoveFile(f)
	require.Empty(t, repo.FindFilesInRange(0, 10))
}

func TestRepositoryRemoveSubtree(t *testing.T) {
	repo := registry.NewRepository()
	repo.InsertFile(mustParse(t, "/var/log/journal/system.journal"))
	repo.InsertFile(mustParse(t, "/var/log/other/system.journal"))

	n := repo.RemoveSubtree("/var/log/journal")
	require.Equal(t, 1, n)

	got := repo.FindFilesInRange(0, 10)
	require.Equal(t, []string{"/var/log/other/system.journal"}, got)
}

func TestRepositoryActiveFiles(t *testing.T) {
	repo := registry.NewRepository()
	repo.InsertFile(mustParse(t, "/var/log/journal/system.journal"))
	repo.InsertFile(mustParse(t, "/var/log/journal/system@550e8400e29b41d4a716446655440000-0-1.journal"))

	got := repo.ActiveFiles()
	require.Equal(t, []string{"/var/log/journal/system.journal"}, got)
}
