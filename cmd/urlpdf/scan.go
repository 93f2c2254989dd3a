package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	urlpdf "github.com/porticus-lab/go-url-pdf"
	"github.com/porticus-lab/go-url-pdf/internal/syllabus"
)

func newScanCmd(a *app) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Convert syllabus links found in saved HTML pages",
		Long: `scan walks dir for .html files, collects the syllabus links they contain and
converts them. Links are grouped by the directory holding each page and
written to <dir>/<group>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.waitForEnter(cmd)

			groups, err := syllabus.Harvest(afero.NewOsFs(), args[0], syllabus.Options{
				Year:   year,
				Logger: a.log,
			})
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No syllabus links found under %s\n", args[0])
				return nil
			}

			ctx := cmd.Context()
			conv, release, err := a.converter(ctx)
			if err != nil {
				return err
			}
			defer release()
			defer a.serveMetrics()()

			failed := 0
			for i, g := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "\n== %s (%d/%d): %d links from %d pages -> %s\n",
					g.Name, i+1, len(groups), len(g.URLs), len(g.Files), g.OutputDir)

				p := a.printer(cmd)
				sum, err := a.batch(ctx, conv, urlpdf.Request{
					Identifiers: g.URLs,
					OutputDir:   g.OutputDir,
					Mode:        urlpdf.ModeURLs,
				}, p)
				if err != nil {
					return fmt.Errorf("group %s: %w", g.Name, err)
				}
				p.Summary(sum)
				failed += sum.Failed
				if sum.State == urlpdf.StateStopped {
					break
				}
			}
			return failedErr(failed)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only links for this academic year (default any year)")
	return cmd
}
