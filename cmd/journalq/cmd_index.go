package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/netdata/journal-query/histogram"
	"github.com/netdata/journal-query/indexer"
	"github.com/netdata/journal-query/journalfile"
)

func newCmdIndex() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "build and print the FileIndex for one journal file",
		ArgsUsage: "<journal-path>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "facet",
				Usage: "field to index as a facet (repeatable)",
			},
			&cli.StringFlag{
				Name:  "source-timestamp-field",
				Usage: "field whose payload carries the entry's decimal microsecond timestamp, if any",
			},
			&cli.Uint64Flag{
				Name:  "bucket-duration-sec",
				Usage: "requested histogram bucket duration; rounded up to the next power-of-two rung",
				Value: 60,
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().Get(0)
			if path == "" {
				return fmt.Errorf("missing journal-path argument")
			}

			r, err := journalfile.OpenReader(path, 0)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer r.Close()

			bucketDurationSec := histogram.NegotiateBucketDuration(uint32(c.Uint64("bucket-duration-sec")))
			fi, err := indexer.New().Build(r, c.String("source-timestamp-field"), c.StringSlice("facet"), bucketDurationSec)
			if err != nil {
				return fmt.Errorf("build index for %s: %w", path, err)
			}

			printFileIndex(path, fi)
			return nil
		},
	}
}

func printFileIndex(path string, fi *indexer.FileIndex) {
	fmt.Printf("%s\n", path)
	fmt.Printf("  entries:          %s\n", humanize.Comma(int64(fi.Histogram.Count())))
	fmt.Printf("  bucket duration:  %ds\n", fi.BucketDurationSec)
	if !fi.Histogram.IsEmpty() {
		fmt.Printf("  time range:       %d - %d\n", fi.Histogram.StartTime(), fi.Histogram.EndTime())
	}
	fmt.Printf("  fields in file:   %d\n", len(fi.FieldsInFile))
	fmt.Printf("  indexed fields:   %d\n", len(fi.IndexedFields))
	if unindexed := fi.UnindexedFields(); len(unindexed) > 0 {
		fmt.Printf("  unindexed fields: %v\n", unindexed)
	}

	keys := make([]string, 0, len(fi.Bitmaps))
	for k := range fi.Bitmaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bm := fi.Bitmaps[k]
		fmt.Printf("  %-40s %s entries\n", k, humanize.Comma(int64(bm.Len())))
	}
}
