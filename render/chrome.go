package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/porticus-lab/go-url-pdf/fetch"
)

// Chrome is the layout-engine renderer. It downloads the page source,
// injects the print stylesheet and prints the result with headless Chrome.
//
// A Chrome manages one browser process that is reused across renders.
// Call [Chrome.Close] to release it.
type Chrome struct {
	cfg           chromeConfig
	page          PageConfig
	fetcher       Fetcher
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChrome starts a headless browser and returns a renderer that uses it.
func NewChrome(f Fetcher, pg PageConfig, opts ...Option) (*Chrome, error) {
	cfg := defaultChromeConfig()
	for _, o := range opts {
		o(&cfg)
	}

	exe, err := cfg.executable()
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
		chromedp.UserAgent(userAgentOf(f)),
	)
	if exe != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(exe))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("render: starting browser: %w", err)
	}

	return &Chrome{
		cfg:           cfg,
		page:          pg,
		fetcher:       f,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func (c *Chrome) Kind() Kind  { return KindLayoutEngine }
func (c *Chrome) Ext() string { return ".pdf" }

// Close stops the browser process. Close is idempotent.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

// Render fetches url and prints it to PDF. The renderer timeout bounds the
// fetch and the print together.
func (c *Chrome) Render(ctx context.Context, url string) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	pg, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	src, err := pg.Text()
	if err != nil {
		return nil, err
	}
	src, err = InjectStylesheet(src, pg.URL, Stylesheet(c.page))
	if err != nil {
		return nil, err
	}
	return c.convertHTML(ctx, src)
}

// ConvertHTML prints an HTML document to PDF using the renderer's page
// settings.
func (c *Chrome) ConvertHTML(ctx context.Context, html string) (*Result, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.convertHTML(ctx, html)
}

func (c *Chrome) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.timeout)
	}
	return context.WithCancel(ctx)
}

func (c *Chrome) convertHTML(ctx context.Context, html string) (*Result, error) {
	f, err := os.CreateTemp("", "urlpdf-*.html")
	if err != nil {
		return nil, fmt.Errorf("render: creating temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return nil, fmt.Errorf("render: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("render: closing temp file: %w", err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("render: resolving path: %w", err)
	}
	return c.print(ctx, "file://"+abs)
}

// print navigates a fresh tab to target and prints it.
func (c *Chrome) print(ctx context.Context, target string) (*Result, error) {
	// The tab must derive from the browser context; ctx only bounds the run.
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	params := printParams(c.page.resolved())

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = params.Do(ctx)
			return err
		}),
	); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render: printing: %w", ctx.Err())
		}
		return nil, fmt.Errorf("render: printing: %w", err)
	}
	if len(buf) == 0 {
		return nil, ErrEmptyOutput
	}
	return &Result{data: buf}, nil
}

// printParams builds the PrintToPDF call for a page config. The paper size
// is the portrait sheet; Landscape tells Chrome to rotate it.
func printParams(pc PageConfig) *page.PrintToPDFParams {
	width, height := pc.paperDimensions()
	top, right, bottom, left := pc.marginInches()
	return page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(top).
		WithMarginRight(right).
		WithMarginBottom(bottom).
		WithMarginLeft(left).
		WithScale(pc.Scale).
		WithPrintBackground(pc.PrintBackground).
		WithLandscape(pc.Orientation == Landscape)
}

func (c *Chrome) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// userAgentOf returns the agent the fetcher announces, so the browser
// requests page assets the same way.
func userAgentOf(f Fetcher) string {
	if ua, ok := f.(interface{ UserAgent() string }); ok {
		return ua.UserAgent()
	}
	return fetch.DefaultUserAgent
}
