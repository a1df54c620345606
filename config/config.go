// Package config loads the tunables that govern the indexing worker
// pool, the hybrid FileIndex cache, bucket decomposition, and the
// per-query deadlines, the way the teacher's top-level config.go loads
// its own Config: a yaml/json-tagged struct, defaults applied after
// unmarshal, loaded straight off disk with gopkg.in/yaml.v3.
package config

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/allegro/bigcache/v3"
	"gopkg.in/yaml.v3"

	"github.com/netdata/journal-query/indexsvc"
)

// Config is the root of the on-disk config file (§6: all tunables are
// config fields, never flags).
type Config struct {
	Indexing Indexing `yaml:"indexing" json:"indexing"`
	Cache    Cache    `yaml:"cache" json:"cache"`
	Bucket   Bucket   `yaml:"bucket" json:"bucket"`
	Query    Query    `yaml:"query" json:"query"`

	originalFilepath string
	hashOfConfigFile string
}

// Indexing tunes C7's worker pool.
type Indexing struct {
	Workers       int `yaml:"workers" json:"workers"`
	QueueCapacity int `yaml:"queue_capacity" json:"queue_capacity"`
	MaxAgeSecs    int `yaml:"max_age_secs" json:"max_age_secs"`
}

// Cache tunes C7's hybrid (file, facet-set) -> FileIndex cache.
type Cache struct {
	MemoryItems int `yaml:"memory_items" json:"memory_items"`
	DiskBytes   int `yaml:"disk_bytes" json:"disk_bytes"`
	ZstdLevel   int `yaml:"zstd_level" json:"zstd_level"`
}

// Bucket tunes C8's time-bucket decomposition.
type Bucket struct {
	TargetCount int `yaml:"target_count" json:"target_count"`
}

// Query tunes the deadlines C7 enforces while resolving a single
// IndexRequest (spec §4.5's resolve_index_request).
type Query struct {
	TotalDeadlineMs   int `yaml:"total_deadline_ms" json:"total_deadline_ms"`
	PerFileDeadlineMs int `yaml:"per_file_deadline_ms" json:"per_file_deadline_ms"`
}

// Default returns a Config with every field set to its §6 documented
// default, for callers that allow running without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and unmarshals configFilepath (JSON or YAML, detected by
// extension, matching the teacher's loadFromJSON/loadFromYAML split),
// applies defaults to every zero field, and records the file's SHA-256
// for later change detection.
func Load(configFilepath string) (*Config, error) {
	var cfg Config
	switch {
	case isJSONFile(configFilepath):
		if err := loadFromJSON(configFilepath, &cfg); err != nil {
			return nil, err
		}
	case isYAMLFile(configFilepath):
		if err := loadFromYAML(configFilepath, &cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("config file %q must be JSON or YAML", configFilepath)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", configFilepath, err)
	}
	cfg.originalFilepath = configFilepath
	sum, err := hashFileSha256(configFilepath)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", configFilepath, err)
	}
	cfg.hashOfConfigFile = sum
	return &cfg, nil
}

// applyDefaults fills every zero-valued field with the spec's §6
// documented default, mirroring indexsvc.Config.withDefaults.
func (c *Config) applyDefaults() {
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 24
	}
	if c.Indexing.QueueCapacity <= 0 {
		c.Indexing.QueueCapacity = 100
	}
	if c.Indexing.MaxAgeSecs <= 0 {
		c.Indexing.MaxAgeSecs = 2
	}
	if c.Cache.MemoryItems <= 0 {
		c.Cache.MemoryItems = 10_000
	}
	if c.Cache.DiskBytes <= 0 {
		c.Cache.DiskBytes = 1 << 30 // 1 GiB
	}
	if c.Cache.ZstdLevel <= 0 {
		c.Cache.ZstdLevel = 1 // zstd.SpeedFastest
	}
	if c.Bucket.TargetCount <= 0 {
		c.Bucket.TargetCount = 60
	}
	if c.Query.TotalDeadlineMs <= 0 {
		c.Query.TotalDeadlineMs = 500
	}
	if c.Query.PerFileDeadlineMs <= 0 {
		c.Query.PerFileDeadlineMs = 100
	}
}

// Validate checks the config for internally-inconsistent values that
// applyDefaults can't paper over (negative or nonsensical settings
// that made it past the >0 checks as exactly 0 but were explicitly
// negative in the file).
func (c *Config) Validate() error {
	if c.Indexing.Workers < 0 {
		return fmt.Errorf("indexing.workers must not be negative")
	}
	if c.Indexing.QueueCapacity < 0 {
		return fmt.Errorf("indexing.queue_capacity must not be negative")
	}
	if c.Cache.ZstdLevel < 0 || c.Cache.ZstdLevel > 4 {
		return fmt.Errorf("cache.zstd_level must be between 1 and 4")
	}
	if c.Bucket.TargetCount < 0 {
		return fmt.Errorf("bucket.target_count must not be negative")
	}
	if c.Query.PerFileDeadlineMs > c.Query.TotalDeadlineMs {
		return fmt.Errorf("query.per_file_deadline_ms must not exceed query.total_deadline_ms")
	}
	return nil
}

// ConfigFilepath returns the path Load was called with.
func (c *Config) ConfigFilepath() string {
	return c.originalFilepath
}

// HashOfConfigFile returns the loaded file's SHA-256, for detecting
// whether the file on disk has changed since Load.
func (c *Config) HashOfConfigFile() string {
	return c.hashOfConfigFile
}

// IsSameHashAsFile reports whether filepath's current contents hash to
// the same value as the file this Config was loaded from.
func (c *Config) IsSameHashAsFile(filepath string) bool {
	sum, err := hashFileSha256(filepath)
	if err != nil {
		return false
	}
	return c.hashOfConfigFile == sum
}

// IndexingConfig converts to indexsvc.Config, the shape C7's worker
// pool actually takes.
func (c *Config) IndexingConfig() indexsvc.Config {
	return indexsvc.Config{
		Workers:         c.Indexing.Workers,
		QueueCapacity:   c.Indexing.QueueCapacity,
		MaxRequestAge:   time.Duration(c.Indexing.MaxAgeSecs) * time.Second,
		TotalDeadline:   time.Duration(c.Query.TotalDeadlineMs) * time.Millisecond,
		PerFileDeadline: time.Duration(c.Query.PerFileDeadlineMs) * time.Millisecond,
	}
}

// BigCacheConfig converts to the bigcache.Config for C7's in-memory
// cache tier, sized off cache.memory_items.
func (c *Config) BigCacheConfig() bigcache.Config {
	cfg := bigcache.DefaultConfig(10 * time.Minute)
	cfg.MaxEntriesInWindow = c.Cache.MemoryItems
	cfg.HardMaxCacheSize = c.Cache.DiskBytes / (1 << 20) // MB, bigcache's own unit
	return cfg
}

// DiskCacheZstdLevel returns cache.zstd_level, ready to pass to
// indexsvc.NewCache.
func (c *Config) DiskCacheZstdLevel() int {
	return c.Cache.ZstdLevel
}

// BucketTargetCount returns bucket.target_count, ready to pass to
// histogramsvc.NewService.
func (c *Config) BucketTargetCount() int {
	return c.Bucket.TargetCount
}

func hashFileSha256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
