package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-url-pdf/internal/pdfinfo"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.pdf>",
		Short: "Display PDF version and page dimensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			doc, err := pdfinfo.Open(afero.NewOsFs(), path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			pages, err := doc.Pages()
			if err != nil {
				return fmt.Errorf("reading pages: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:    %s\n", path)
			fmt.Fprintf(out, "Version: PDF-%s\n", doc.Version())
			fmt.Fprintf(out, "Pages:   %d\n", len(pages))
			if len(pages) == 0 {
				return nil
			}
			fmt.Fprintln(out, "\nPage dimensions:")
			for i, p := range pages {
				fmt.Fprintf(out, "  Page %d: %.0f x %.0f pt", i+1, p.Width, p.Height)
				if p.Rotation != 0 {
					fmt.Fprintf(out, " (rotated %d°)", p.Rotation)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
