// Package render turns a URL into a document through one of several
// interchangeable engines:
//
//   - cli-tool: the wkhtmltopdf command
//   - layout-engine: headless Chrome through the DevTools protocol
//   - text-fallback: a plain-text PDF laid out in pure Go
//   - html: no conversion, the fetched HTML is kept as-is
//
// Engines implement [Renderer]. [Select] picks one from a static, ordered
// registry, skipping engines that are disabled or not usable on this host:
//
//	r, err := render.Select(ctx, render.KindLayoutEngine, render.Settings{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	res, err := r.Render(ctx, "https://example.com")
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/porticus-lab/go-url-pdf/fetch"
)

// Kind names a renderer variant.
type Kind string

const (
	KindCLITool      Kind = "cli-tool"
	KindLayoutEngine Kind = "layout-engine"
	KindTextFallback Kind = "text-fallback"
	KindHTML         Kind = "html"
)

// Order is the selection order used when no renderer is requested, or the
// requested one cannot be constructed.
var Order = []Kind{KindCLITool, KindLayoutEngine, KindTextFallback, KindHTML}

// ParseKind validates s as a renderer kind. The empty string is allowed and
// means "first available".
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return "", nil
	}
	for _, k := range Order {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown renderer %q", s)
}

// Renderer converts the page at a URL into a document.
//
// Render blocks until the document is produced, the engine's own timeout
// expires or ctx is done. Implementations are used from a single goroutine
// at a time.
type Renderer interface {
	Kind() Kind
	// Ext is the file extension of rendered documents, including the dot.
	Ext() string
	Render(ctx context.Context, url string) (*Result, error)
	Close() error
}

// Fetcher retrieves page source for the renderers that do not navigate a
// browser themselves. [*fetch.Client] implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*fetch.Page, error)
}

// Sentinel errors returned by the package.
var (
	// ErrNoRenderer is returned by Select when no enabled renderer can be
	// constructed.
	ErrNoRenderer = errors.New("render: no renderer available")

	// ErrClosed is returned when attempting to use a closed renderer.
	ErrClosed = errors.New("render: renderer is closed")

	// ErrEmptyOutput is returned when an engine reports success but
	// produced no document.
	ErrEmptyOutput = errors.New("render: engine produced no output")
)

// ProcessError reports an external command that exited unsuccessfully.
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("render: %s exited with code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("render: %s exited with code %d: %s", e.Command, e.ExitCode, e.Stderr)
}
