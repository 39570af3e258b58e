package main

import (
	"fmt"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/spf13/cobra"
)

func newFontsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "List fonts available for text watermarks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fonts, err := fontprovider.New(dir)
			if err != nil {
				return err
			}
			for _, name := range fonts.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "fonts-dir", "", "directory with extra *.ttf fonts")

	return cmd
}
