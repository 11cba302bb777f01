package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"chessrag/internal/indexer"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func versionString() string {
	return version + " (chunker " + indexer.ChunkerVersion + ")"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pgnchunk version: %s\n", version)
			fmt.Fprintf(out, "  chunker: %s\n", indexer.ChunkerVersion)
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						fmt.Fprintf(out, "  git commit: %s\n", s.Value)
					}
				}
			}
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
