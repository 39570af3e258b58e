// Package main (in watermark-subfolder) is the command line front-end: it applies a text or image
// watermark to a local file without the API, database or queue.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

// Title is the program title
const Title = "watermark"

// Version is the current version of the program
var Version string

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:               Title,
		Version:           Version,
		Short:             Title + ": stamp text or a logo onto your photos",
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zlog.InitConsole()
			level := "warn"
			if verbose {
				level = "debug"
			}
			return zlog.SetLevel(level)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every step")

	rootCmd.AddCommand(newApplyCmd(), newFontsCmd())
	return rootCmd
}

func main() {
	if newRootCmd().Execute() != nil {
		os.Exit(1)
	}
}
