// Command anchor is the cobra-based entry point for the Anchor retrieval
// engine's local CLI (SPEC_FULL.md §6.5): `anchor search`, `anchor migrate`,
// `anchor reset`, and `anchor engram-stats`.
package main

import (
	"fmt"
	"os"

	"github.com/RSBalchII/anchor/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = gitCommit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "anchor: %v\n", err)
		os.Exit(1)
	}
}
