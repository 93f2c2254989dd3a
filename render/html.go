package render

import "context"

// HTML is the download-only renderer. It stores the fetched page source
// unchanged, for hosts where no PDF engine works.
type HTML struct {
	fetcher Fetcher
}

// NewHTML returns a download-only renderer.
func NewHTML(f Fetcher) *HTML {
	return &HTML{fetcher: f}
}

func (h *HTML) Kind() Kind   { return KindHTML }
func (h *HTML) Ext() string  { return ".html" }
func (h *HTML) Close() error { return nil }

// Render returns the raw body of url.
func (h *HTML) Render(ctx context.Context, url string) (*Result, error) {
	pg, err := h.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(pg.Body) == 0 {
		return nil, ErrEmptyOutput
	}
	return &Result{data: pg.Body}, nil
}
