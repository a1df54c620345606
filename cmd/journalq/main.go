// Command journalq is the CLI surface over the indexing and histogram
// services: "serve" runs the histogram service behind a small HTTP
// handler, "index" builds and prints one file's FileIndex, and
// "registry-ls" dumps the registry's view of a directory. One
// *cli.Command constructor per verb, composed into a root app.Commands,
// the same shape the teacher's cmd-*.go files use.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

var gitCommitSHA = ""

func main() {
	app := &cli.App{
		Name:        "journalq",
		Version:     gitCommitSHA,
		Description: "Index and query append-only journal files by time range and field filter.",
		Flags:       klogFlags(),
		Commands: []*cli.Command{
			newCmdIndex(),
			newCmdServe(),
			newCmdRegistryLs(),
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		klog.Fatal(fmt.Errorf("journalq: %w", err))
	}
}
