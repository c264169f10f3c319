// Command hmax builds HMAX filter banks and extracts feature vectors from images.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Version of the CLI, set by the compiler on release
var Version string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hmax",
		Short:         "HMAX visual feature extraction",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(createBuild())
	root.AddCommand(createRun())
	root.AddCommand(createBatch())
	root.AddCommand(createDot())
	root.AddCommand(createRender())
	return root
}

func main() {
	log.SetFlags(log.Ltime)
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
