package indexsvc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/histogram"
	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/metrics"
)

// ErrClosed is returned by Submit once Close has begun.
var ErrClosed = errors.New("indexsvc: service is closed")

// Config tunes the worker pool and cache checks. Zero values take the
// spec's documented defaults.
type Config struct {
	Workers              int           // default 24
	QueueCapacity        int           // default 100
	MaxRequestAge        time.Duration // default 2s
	SourceTimestampField string
	TimeRangeCacheSize   int           // default 1000
	TotalDeadline        time.Duration // default 500ms, resolve_index_request
	PerFileDeadline      time.Duration // default 100ms, resolve_index_request
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 24
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 100
	}
	if c.MaxRequestAge <= 0 {
		c.MaxRequestAge = 2 * time.Second
	}
	if c.TimeRangeCacheSize <= 0 {
		c.TimeRangeCacheSize = 1000
	}
	if c.TotalDeadline <= 0 {
		c.TotalDeadline = 500 * time.Millisecond
	}
	if c.PerFileDeadline <= 0 {
		c.PerFileDeadline = 100 * time.Millisecond
	}
	return c
}

// OpenFunc opens a journal file for indexing. Supplied by the caller so
// indexsvc stays decoupled from how files are located (that is the
// registry's job).
type OpenFunc func(file string) (*journalfile.Reader, error)

// Service is the C7 indexing service: a bounded worker pool building
// FileIndex values on demand, backed by the hybrid Cache and the
// timeRangeCache side index.
type Service struct {
	cfg    Config
	open   OpenFunc
	cache  *Cache
	ranges *timeRangeCache
	sf     singleflight.Group

	jobs   chan IndexingRequest
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewService constructs and starts a Service. cache may be nil, in which
// case every request always misses and is rebuilt (no persistence).
func NewService(cfg Config, open OpenFunc, cache *Cache) *Service {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		open:   open,
		cache:  cache,
		ranges: newTimeRangeCache(cfg.TimeRangeCacheSize),
		jobs:   make(chan IndexingRequest, cfg.QueueCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
	s.start()
	return s
}

func (s *Service) start() {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	ix := indexer.New()
	for {
		select {
		case <-s.ctx.Done():
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			metrics.IndexingQueueDepth.Set(float64(len(s.jobs)))
			if age := time.Since(job.SubmittedAt); age > s.cfg.MaxRequestAge {
				klog.V(4).Infof("indexsvc worker %d: dropping stale request for %s (age %s)", id, job.File, age)
				metrics.IndexingJobsDropped.WithLabelValues("too_old").Inc()
				continue
			}
			metrics.IndexingWorkersActive.Inc()
			err := s.process(ix, job)
			metrics.IndexingWorkersActive.Dec()
			if err != nil {
				klog.Warningf("indexsvc worker %d: indexing %s failed: %v", id, job.File, err)
				metrics.IndexingJobsFailed.WithLabelValues(job.File).Inc()
			} else {
				metrics.IndexingJobsCompleted.WithLabelValues(job.File).Inc()
			}
		}
	}
}

// Submit enqueues req with try_send semantics: if the queue is full the
// request is dropped silently, matching the load-shedding design (the
// caller is expected to resubmit on its next poll). Returns false when
// dropped, ErrClosed once Close has begun.
func (s *Service) Submit(req IndexingRequest) (bool, error) {
	if s.closed.Load() {
		metrics.IndexingJobsDropped.WithLabelValues("closed").Inc()
		return false, ErrClosed
	}
	select {
	case s.jobs <- req:
		metrics.IndexingJobsSubmitted.WithLabelValues(req.File).Inc()
		metrics.IndexingQueueDepth.Set(float64(len(s.jobs)))
		return true, nil
	default:
		metrics.IndexingJobsDropped.WithLabelValues("queue_full").Inc()
		return false, nil
	}
}

// process implements the cache-check/build decision: a hit at a bucket
// duration equal to or finer than the requested one skips rebuilding;
// only a hit coarser than requested triggers a rebuild at the finer
// granularity. ix is the
// calling worker's own Indexer, reused across jobs to amortize its
// scratch-buffer allocations.
func (s *Service) process(ix *indexer.Indexer, job IndexingRequest) error {
	requested := histogram.NegotiateBucketDuration(job.BucketDurationSec)

	if s.cache != nil {
		if existing, ok := s.cache.Get(job.File, job.Facets); ok {
			if histogram.Reusable(existing.BucketDurationSec, requested) {
				s.ranges.set(job.File, TimeRange{StartSec: existing.Histogram.StartTime(), EndSec: existing.Histogram.EndTime()})
				return nil
			}
		}
	}

	key := cacheKey(job.File, job.Facets)
	_, err, _ := s.sf.Do(key, func() (interface{}, error) {
		fi, err := s.build(ix, job.File, job.Facets, requested)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Put(job.File, job.Facets, fi); err != nil {
				klog.Warningf("indexsvc: caching index for %s failed: %v", job.File, err)
			}
		}
		s.ranges.set(job.File, TimeRange{StartSec: fi.Histogram.StartTime(), EndSec: fi.Histogram.EndTime()})
		return fi, nil
	})
	return err
}

func (s *Service) build(ix *indexer.Indexer, file string, facets []string, bucketDurationSec uint32) (*indexer.FileIndex, error) {
	r, err := s.open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ix.Build(r, s.cfg.SourceTimestampField, facets, bucketDurationSec)
}

// TimeRange returns the recorded entry time span for file, if known.
func (s *Service) TimeRange(file string) (TimeRange, bool) {
	return s.ranges.get(file)
}

// Close drains the queue, letting in-flight jobs finish, then flushes
// the cache. Submit fails from the moment Close is called.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.jobs)
	s.wg.Wait()
	s.cancel()
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}
