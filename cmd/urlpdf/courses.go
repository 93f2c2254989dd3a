package main

import (
	"github.com/spf13/cobra"

	urlpdf "github.com/porticus-lab/go-url-pdf"
)

func newCoursesCmd(a *app) *cobra.Command {
	var (
		year int
		base string
	)
	cmd := &cobra.Command{
		Use:   "courses [codes_file] [output_dir]",
		Short: "Convert syllabus pages for a list of course codes",
		Long: `courses reads one course code per line and converts the syllabus page of
each code for the given academic year. PDFs are named after the codes.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := urlpdf.Request{
				Mode:    urlpdf.ModeCourses,
				Year:    a.cfg.Year,
				BaseURL: a.cfg.SyllabusBase,
			}
			if cmd.Flags().Changed("year") {
				req.Year = year
			}
			if cmd.Flags().Changed("base") {
				req.BaseURL = base
			}
			return a.convert(cmd, args, req)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "academic year (default from config, else the current year)")
	cmd.Flags().StringVar(&base, "base", "", "syllabus site base URL")
	return cmd
}
