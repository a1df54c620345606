package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var IndexingJobsSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "indexing_jobs_submitted_total",
		Help: "Indexing jobs accepted onto the worker queue",
	},
	[]string{"file"},
)

var IndexingJobsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "indexing_jobs_dropped_total",
		Help: "Indexing jobs dropped, by reason (queue_full, too_old, closed)",
	},
	[]string{"reason"},
)

var IndexingJobsCompleted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "indexing_jobs_completed_total",
		Help: "Indexing jobs that finished building or reusing a FileIndex",
	},
	[]string{"file"},
)

var IndexingJobsFailed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "indexing_jobs_failed_total",
		Help: "Indexing jobs that failed to build a FileIndex",
	},
	[]string{"file"},
)

var IndexingQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "indexing_queue_depth",
		Help: "Number of indexing requests currently queued",
	},
)

var IndexingWorkersActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "indexing_workers_active",
		Help: "Number of worker goroutines currently building a FileIndex",
	},
)

var IndexCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "index_cache_hits_total",
		Help: "FileIndex cache hits, by tier (memory, disk)",
	},
	[]string{"tier"},
)

var IndexCacheMisses = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "index_cache_misses_total",
		Help: "FileIndex cache misses requiring a rebuild",
	},
)

var BucketCacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bucket_cache_hits_total",
		Help: "Histogram bucket cache hits, by tier (partial, complete)",
	},
	[]string{"tier"},
)

var HistogramPollLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "histogram_poll_latency_seconds",
		Help:    "Wall time spent in one Service.Poll call",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	},
)

var RegistryFilesTracked = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "registry_files_tracked",
		Help: "Journal files currently known to the registry",
	},
)

var RegistryWatchErrors = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "registry_watch_errors_total",
		Help: "fsnotify errors surfaced by the registry watcher",
	},
)

// Version mirrors the teacher's build-info gauge: one of this binary's
// version components, published once at startup with value 1.
var Version = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "version",
		Help: "Version information of this binary",
	},
	[]string{"started_at", "tag", "commit", "compiler", "goarch", "goos", "goamd64", "vcs", "vcs_revision", "vcs_time", "vcs_modified"},
)
