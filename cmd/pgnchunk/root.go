package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag state out of globals.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgnchunk",
		Short: "Split annotated chess games into token-bounded chunks",
		Long: `pgnchunk splits PGN game records, including nested variations and
commentary, into self-contained chunks that fit a token budget.

Chunker tuning is read from the environment (CHUNK_* variables and
CHUNKER_TUNING_FILE) and can be overridden with flags.`,
		Version:      versionString(),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newChunkCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}
