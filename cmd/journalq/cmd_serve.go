package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/netdata/journal-query/config"
	"github.com/netdata/journal-query/filter"
	"github.com/netdata/journal-query/histogramsvc"
	"github.com/netdata/journal-query/indexsvc"
	"github.com/netdata/journal-query/journalfile"
	"github.com/netdata/journal-query/metrics"
	"github.com/netdata/journal-query/registry"
)

func newCmdServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "watch a directory and serve histogram queries over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "journal-dir",
				Usage:    "directory tree of journal files to watch",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML or JSON config file (§6 tunables); spec defaults apply if omitted",
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "on-disk tier for the FileIndex cache; empty disables it",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "address to serve /histogram and /metrics on",
				Value: "127.0.0.1:8088",
			},
			&cli.StringFlag{
				Name:  "source-timestamp-field",
				Usage: "field whose payload carries the entry's decimal microsecond timestamp, if any",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadServeConfig(c.String("config"))
			if err != nil {
				return err
			}

			repo := registry.NewRepository()
			watcher, err := registry.NewWatcher(repo)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()
			if err := watcher.AddDirectory(c.String("journal-dir")); err != nil {
				return fmt.Errorf("scan %s: %w", c.String("journal-dir"), err)
			}

			cache, err := indexsvc.NewCache(context.Background(), cfg.BigCacheConfig(), c.String("cache-dir"), cfg.DiskCacheZstdLevel())
			if err != nil {
				return fmt.Errorf("create cache: %w", err)
			}

			indexingCfg := cfg.IndexingConfig()
			indexingCfg.SourceTimestampField = c.String("source-timestamp-field")
			open := func(path string) (*journalfile.Reader, error) { return journalfile.OpenReader(path, 0) }
			indexSvc := indexsvc.NewService(indexingCfg, open, cache)
			defer indexSvc.Close()

			histSvc := histogramsvc.NewService(indexSvc, repo.FindFilesInRange, cfg.BucketTargetCount(), cfg.Cache.MemoryItems)

			diskCollector := metrics.NewJournalDirectoryCollector([]string{c.String("journal-dir")})
			if err := prometheus.Register(diskCollector); err != nil {
				klog.Warningf("journalq: registering disk collector: %v", err)
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/histogram", histogramHandler(histSvc))
			mux.Handle("/metrics", promhttp.Handler())

			klog.Infof("journalq: serving on %s, watching %s", c.String("listen"), c.String("journal-dir"))
			return http.ListenAndServe(c.String("listen"), mux)
		},
	}
}

func loadServeConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// histogramHandler decodes a /histogram request's query parameters into
// a histogramsvc.HistogramRequest, polls once, and writes the result as
// JSON. A real deployment would poll repeatedly until every bucket is
// Complete; this single poll mirrors the spec's never-fail partial
// propagation policy by returning whatever is ready immediately.
func histogramHandler(svc *histogramsvc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		after, err := parseUint32(q.Get("after"))
		if err != nil {
			http.Error(w, "invalid after: "+err.Error(), http.StatusBadRequest)
			return
		}
		before, err := parseUint32(q.Get("before"))
		if err != nil {
			http.Error(w, "invalid before: "+err.Error(), http.StatusBadRequest)
			return
		}

		expr, err := parseFilterParams(q["match"], q["exclude"])
		if err != nil {
			http.Error(w, "invalid filter: "+err.Error(), http.StatusBadRequest)
			return
		}

		req := histogramsvc.HistogramRequest{
			AfterSec:  after,
			BeforeSec: before,
			Facets:    q["facet"],
			Filter:    expr,
		}

		result := svc.Poll(req)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			klog.Warningf("journalq: encode histogram response: %v", err)
		}
	}
}

func parseUint32(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// parseFilterParams builds a filter.Expr out of repeated match=field:value
// and exclude=field:value query parameters, ANDed together. An absent
// filter resolves to filter.None(), matching every entry.
func parseFilterParams(matches, excludes []string) (filter.Expr, error) {
	var operands []filter.Expr
	for _, m := range matches {
		field, value, ok := strings.Cut(m, ":")
		if !ok {
			return nil, fmt.Errorf("match %q must be field:value", m)
		}
		operands = append(operands, filter.Match(field, value))
	}
	for _, e := range excludes {
		field, value, ok := strings.Cut(e, ":")
		if !ok {
			return nil, fmt.Errorf("exclude %q must be field:value", e)
		}
		operands = append(operands, filter.Not(filter.Match(field, value)))
	}
	return filter.And(operands...), nil
}
