package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/porticus-lab/go-url-pdf/fetch"
	"github.com/porticus-lab/go-url-pdf/render"
)

func newRenderersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "renderers",
		Short: "List renderers and whether they can be used on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := a.cfg.RenderSettings(fetch.New(a.cfg.FetchOptions()))
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Renderer", "Output", "Status", "Detail"})

			all := render.Available(cmd.Context(), settings)
			selected := selectedKind(all, render.Kind(a.cfg.Renderer))
			for _, av := range all {
				status, detail := "available", ""
				switch {
				case !av.Enabled:
					status = "disabled"
				case av.Err != nil:
					status, detail = "unavailable", av.Err.Error()
				case av.Kind == selected:
					status = "selected"
				}
				t.AppendRow(table.Row{string(av.Kind), extOf(av.Kind), status, detail})
			}
			t.Render()
			return nil
		},
	}
}

// selectedKind mirrors render.Select: the requested kind when usable,
// otherwise the first usable one.
func selectedKind(all []render.Availability, want render.Kind) render.Kind {
	for _, av := range all {
		if av.Kind == want && av.Usable() {
			return want
		}
	}
	for _, av := range all {
		if av.Usable() {
			return av.Kind
		}
	}
	return ""
}

func extOf(k render.Kind) string {
	if k == render.KindHTML {
		return ".html"
	}
	return ".pdf"
}
