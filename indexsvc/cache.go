package indexsvc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/mostynb/zstdpool-freelist"
	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/bitmap"
	"github.com/netdata/journal-query/histogram"
	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/metrics"
)

// cacheKey formats a (file, facet-set) pair into one cache key: facets
// are sorted so the key is independent of request order, matching the
// cache's key semantics of "a set of facets", not a sequence of them.
func cacheKey(file string, facets []string) string {
	sorted := append([]string(nil), facets...)
	sort.Strings(sorted)
	return "fi-" + file + "#" + strings.Join(sorted, ",")
}

// fileIndexDTO is the CBOR wire shape for indexer.FileIndex: Histogram's
// fields are already exported, but Bitmap's internal tree is not, so
// each facet bitmap round-trips as its sorted member ordinals instead.
type fileIndexDTO struct {
	BucketDurationSec uint32
	Universe          uint64
	Histogram         *histogram.Histogram
	FieldsInFile      []string
	IndexedFields     []string
	BitmapMembers     map[string][]uint64
}

func toDTO(fi *indexer.FileIndex) *fileIndexDTO {
	dto := &fileIndexDTO{
		BucketDurationSec: fi.BucketDurationSec,
		Universe:          fi.Universe,
		Histogram:         fi.Histogram,
		BitmapMembers:     make(map[string][]uint64, len(fi.Bitmaps)),
	}
	for field := range fi.FieldsInFile {
		dto.FieldsInFile = append(dto.FieldsInFile, field)
	}
	for field := range fi.IndexedFields {
		dto.IndexedFields = append(dto.IndexedFields, field)
	}
	sort.Strings(dto.FieldsInFile)
	sort.Strings(dto.IndexedFields)
	for key, bm := range fi.Bitmaps {
		members := make([]uint64, 0, bm.Len())
		it := bm.Iter()
		for v, ok := it.Next(); ok; v, ok = it.Next() {
			members = append(members, v)
		}
		dto.BitmapMembers[key] = members
	}
	return dto
}

func fromDTO(dto *fileIndexDTO) *indexer.FileIndex {
	fi := &indexer.FileIndex{
		Histogram:         dto.Histogram,
		Bitmaps:           make(map[string]*bitmap.Bitmap, len(dto.BitmapMembers)),
		FieldsInFile:      make(map[string]bool, len(dto.FieldsInFile)),
		IndexedFields:     make(map[string]bool, len(dto.IndexedFields)),
		BucketDurationSec: dto.BucketDurationSec,
		Universe:          dto.Universe,
	}
	for _, f := range dto.FieldsInFile {
		fi.FieldsInFile[f] = true
	}
	for _, f := range dto.IndexedFields {
		fi.IndexedFields[f] = true
	}
	for key, members := range dto.BitmapMembers {
		bm := bitmap.FromSortedIter(members, dto.Universe)
		bm.Optimize()
		fi.Bitmaps[key] = bm
	}
	return fi
}

// Cache is the hybrid (file, facet-set) -> FileIndex cache: a bigcache
// in-memory tier backed by a CBOR-encoded, zstd-compressed on-disk
// tier, mirroring hugecache's wrapping of bigcache with typed Put/Get
// pairs and gsfa/linkedlog's pooled zstd encoder/decoder.
type Cache struct {
	mem *bigcache.BigCache
	dir string

	zenc *zstdpool.EncoderPool
	zdec *zstdpool.DecoderPool
}

// NewCache builds a Cache with the given in-memory config. If dir is
// non-empty, misses fall through to zstd-compressed CBOR files under
// dir, compressed at diskCompressionLevel (1-4, spec default 1 ==
// zstd.SpeedFastest), and every memory-tier store is also flushed to
// disk.
func NewCache(ctx context.Context, config bigcache.Config, dir string, diskCompressionLevel int) (*Cache, error) {
	mem, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Cache{
		mem:  mem,
		dir:  dir,
		zenc: zstdpool.NewEncoderPool(zstd.WithEncoderLevel(zstdEncoderLevel(diskCompressionLevel))),
		zdec: zstdpool.NewDecoderPool(),
	}, nil
}

// zstdEncoderLevel maps the config's 1-4 dial (matching zstd.EncoderLevel's
// own numbering) onto a valid level, defaulting to the spec's fastest
// setting when unset.
func zstdEncoderLevel(level int) zstd.EncoderLevel {
	if level < int(zstd.SpeedFastest) || level > int(zstd.SpeedBestCompression) {
		return zstd.SpeedFastest
	}
	return zstd.EncoderLevel(level)
}

func (c *Cache) compress(raw []byte) ([]byte, error) {
	enc, err := c.zenc.Get(nil)
	if err != nil {
		return nil, err
	}
	defer c.zenc.Put(enc)
	return enc.EncodeAll(raw, nil), nil
}

func (c *Cache) decompress(data []byte) ([]byte, error) {
	dec, err := c.zdec.Get(nil)
	if err != nil {
		return nil, err
	}
	defer c.zdec.Put(dec)
	return dec.DecodeAll(data, nil)
}

func (c *Cache) diskPath(key string) string {
	shard := xxhash.Sum64String(key)
	name := strings.NewReplacer("/", "_", "#", "_").Replace(key)
	return filepath.Join(c.dir, name+"-"+strconv.FormatUint(shard, 16)+".cbor")
}

// Get returns the cached FileIndex for (file, facets), if any, checking
// memory first and falling back to disk.
func (c *Cache) Get(file string, facets []string) (*indexer.FileIndex, bool) {
	key := cacheKey(file, facets)
	if raw, err := c.mem.Get(key); err == nil {
		var dto fileIndexDTO
		if err := cbor.Unmarshal(raw, &dto); err == nil {
			metrics.IndexCacheHits.WithLabelValues("memory").Inc()
			return fromDTO(&dto), true
		}
		klog.Warningf("indexsvc: corrupt memory cache entry for %s: %v", key, err)
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		klog.Warningf("indexsvc: memory cache get failed for %s: %v", key, err)
	}

	if c.dir == "" {
		metrics.IndexCacheMisses.Inc()
		return nil, false
	}
	compressed, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		metrics.IndexCacheMisses.Inc()
		return nil, false
	}
	raw, err := c.decompress(compressed)
	if err != nil {
		klog.Warningf("indexsvc: corrupt disk cache entry for %s: %v", key, err)
		metrics.IndexCacheMisses.Inc()
		return nil, false
	}
	var dto fileIndexDTO
	if err := cbor.Unmarshal(raw, &dto); err != nil {
		klog.Warningf("indexsvc: corrupt disk cache entry for %s: %v", key, err)
		metrics.IndexCacheMisses.Inc()
		return nil, false
	}
	fi := fromDTO(&dto)
	_ = c.mem.Set(key, raw)
	metrics.IndexCacheHits.WithLabelValues("disk").Inc()
	return fi, true
}

// Put stores fi in both tiers under (file, facets): the memory tier
// uncompressed for fast re-reads, the disk tier zstd-compressed.
func (c *Cache) Put(file string, facets []string, fi *indexer.FileIndex) error {
	key := cacheKey(file, facets)
	raw, err := cbor.Marshal(toDTO(fi))
	if err != nil {
		return err
	}
	if err := c.mem.Set(key, raw); err != nil {
		return err
	}
	if c.dir == "" {
		return nil
	}
	compressed, err := c.compress(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(c.diskPath(key), compressed, 0o644)
}

// Close flushes the disk tier (nothing buffered to flush beyond what Put
// already wrote synchronously) and releases the memory tier.
func (c *Cache) Close() error {
	return c.mem.Close()
}
