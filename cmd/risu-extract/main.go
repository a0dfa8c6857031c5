// Package main is the entry point for the risu-extract CLI.
//
// It delegates all functionality to the internal/cli package, which
// defines the cobra commands. Build-time variables (version, commit,
// date) are injected via ldflags and default to "dev", "none" and
// "unknown" during development.
package main

import (
	"github.com/shinji-kodama/risu-extract/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
