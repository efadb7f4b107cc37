// Command prefetchsim is the external trace-driven harness spec.md §1
// leaves unspecified ("how events reach the prefetcher, and how issued
// prefetches turn into cache fills, is external to this spec"): it reads a
// line-oriented access trace, drives one of the two prefetcher cores
// (internal/mlsp, internal/acp) against an in-process LLC model
// (internal/simcache.Harness), and reports what happened.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prefetchsim",
		Short:         "Drive the MLSP/ACP last-level-cache prefetcher cores over a trace",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newRunCmd())
	return root
}
