package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netdata/journal-query/config"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsToZeroFields(t *testing.T) {
	path := writeConfig(t, "empty.yaml", "indexing:\n  workers: 8\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Indexing.Workers)
	require.Equal(t, 100, cfg.Indexing.QueueCapacity)
	require.Equal(t, 2, cfg.Indexing.MaxAgeSecs)
	require.Equal(t, 10_000, cfg.Cache.MemoryItems)
	require.Equal(t, 1, cfg.Cache.ZstdLevel)
	require.Equal(t, 60, cfg.Bucket.TargetCount)
	require.Equal(t, 500, cfg.Query.TotalDeadlineMs)
	require.Equal(t, 100, cfg.Query.PerFileDeadlineMs)
}

func TestLoadYAMLFullySpecified(t *testing.T) {
	body := `
indexing:
  workers: 16
  queue_capacity: 200
  max_age_secs: 5
cache:
  memory_items: 5000
  disk_bytes: 1073741824
  zstd_level: 3
bucket:
  target_count: 120
query:
  total_deadline_ms: 1000
  per_file_deadline_ms: 250
`
	path := writeConfig(t, "full.yaml", body)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, 16, cfg.Indexing.Workers)
	require.Equal(t, 200, cfg.Indexing.QueueCapacity)
	require.Equal(t, 5, cfg.Indexing.MaxAgeSecs)
	require.Equal(t, 5000, cfg.Cache.MemoryItems)
	require.Equal(t, 3, cfg.Cache.ZstdLevel)
	require.Equal(t, 120, cfg.Bucket.TargetCount)
	require.Equal(t, 1000, cfg.Query.TotalDeadlineMs)
	require.Equal(t, 250, cfg.Query.PerFileDeadlineMs)
}

func TestLoadJSON(t *testing.T) {
	body := `{"indexing": {"workers": 4}, "query": {"total_deadline_ms": 300, "per_file_deadline_ms": 50}}`
	path := writeConfig(t, "config.json", body)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Indexing.Workers)
	require.Equal(t, 300, cfg.Query.TotalDeadlineMs)
	require.Equal(t, 50, cfg.Query.PerFileDeadlineMs)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "workers = 4")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsPerFileDeadlineExceedingTotal(t *testing.T) {
	body := `
query:
  total_deadline_ms: 100
  per_file_deadline_ms: 500
`
	path := writeConfig(t, "bad.yaml", body)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestIndexingConfigConversion(t *testing.T) {
	path := writeConfig(t, "conv.yaml", "indexing:\n  workers: 12\n  queue_capacity: 50\n  max_age_secs: 3\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	ic := cfg.IndexingConfig()
	require.Equal(t, 12, ic.Workers)
	require.Equal(t, 50, ic.QueueCapacity)
	require.Equal(t, 3*1_000_000_000, int(ic.MaxRequestAge))
}

func TestIsSameHashAsFileDetectsChange(t *testing.T) {
	path := writeConfig(t, "hash.yaml", "indexing:\n  workers: 8\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, cfg.IsSameHashAsFile(path))

	require.NoError(t, os.WriteFile(path, []byte("indexing:\n  workers: 9\n"), 0o644))
	require.False(t, cfg.IsSameHashAsFile(path))
}

func TestBigCacheConfigUsesMemoryItems(t *testing.T) {
	path := writeConfig(t, "cache.yaml", "cache:\n  memory_items: 2048\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2048, cfg.BigCacheConfig().MaxEntriesInWindow)
}
