package main

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/netdata/journal-query/registry"
)

func newCmdRegistryLs() *cli.Command {
	return &cli.Command{
		Name:      "registry-ls",
		Usage:     "scan a directory and print the registry's view of its journal files",
		ArgsUsage: "<directory>",
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			if dir == "" {
				return fmt.Errorf("missing directory argument")
			}

			repo := registry.NewRepository()
			w, err := registry.NewWatcher(repo)
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer w.Close()

			if err := w.AddDirectory(dir); err != nil {
				return fmt.Errorf("scan %s: %w", dir, err)
			}

			active := repo.ActiveFiles()
			sort.Strings(active)
			fmt.Printf("active files under %s:\n", dir)
			for _, f := range active {
				fmt.Printf("  %s\n", f)
			}

			all := repo.FindFilesInRange(0, ^uint32(0))
			sort.Strings(all)
			fmt.Printf("\nall non-disposed files (%d):\n", len(all))
			for _, f := range all {
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}
}
