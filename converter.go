package urlpdf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/porticus-lab/go-url-pdf/render"
)

// Request describes one batch. It is not modified by a run.
type Request struct {
	// InputPath is a text file with one identifier per line. It is ignored
	// when Identifiers is set.
	InputPath string
	// Identifiers supplies the lines directly.
	Identifiers []string
	// OutputDir receives one file per item. It is created if absent.
	OutputDir string

	Mode Mode
	// Year and BaseURL are used in course mode. An empty BaseURL selects
	// DefaultSyllabusBase.
	Year    int
	BaseURL string
}

// Converter converts batches of pages with one renderer. A Converter may
// start several runs, one after another. Runs sharing a Converter must not
// overlap because renderers are not safe for concurrent use.
type Converter struct {
	renderer render.Renderer
	cfg      converterConfig
}

// NewConverter returns a Converter that renders with r.
func NewConverter(r render.Renderer, opts ...Option) *Converter {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if r != nil {
		cfg.metrics.SetRenderer(r.Kind())
	}
	return &Converter{renderer: r, cfg: cfg}
}

// Renderer returns the renderer in use.
func (c *Converter) Renderer() render.Renderer { return c.renderer }

// Start validates req and starts a worker for it. Validation failures are
// returned as *ConfigError and leave nothing running.
func (c *Converter) Start(ctx context.Context, req Request) (*Run, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	r := newRun(uuid.NewString(), c.cfg.eventBuffer)
	r.state.Store(int32(StateRunning))
	go r.work(ctx, c, req)
	return r, nil
}

// Convert runs req to completion, passing every event to fn when it is
// not nil.
func (c *Converter) Convert(ctx context.Context, req Request, fn func(Event)) (Summary, error) {
	run, err := c.Start(ctx, req)
	if err != nil {
		return Summary{}, err
	}
	for ev := range run.Events() {
		if fn != nil {
			fn(ev)
		}
	}
	return run.Wait()
}

func (c *Converter) validate(req Request) error {
	if err := req.Validate(c.cfg.fs); err != nil {
		return err
	}
	if c.renderer == nil {
		return &ConfigError{Err: ErrNoRenderer}
	}
	return nil
}

// Validate checks the parts of req that do not depend on a renderer: the
// input file on fs, the output directory and, in course mode, the year.
// Failures are *ConfigError values, the same ones Start returns.
func (req Request) Validate(fs afero.Fs) error {
	if req.Identifiers == nil {
		fi, err := fs.Stat(req.InputPath)
		if err != nil {
			return &ConfigError{Err: ErrInputNotFound, Detail: req.InputPath}
		}
		if fi.IsDir() {
			return &ConfigError{Err: ErrInputNotFound, Detail: fmt.Sprintf("%s is a directory", req.InputPath)}
		}
	}
	if req.OutputDir == "" {
		return &ConfigError{Err: ErrEmptyOutputDir}
	}
	if req.Mode == ModeCourses && req.Year < MinYear {
		return &ConfigError{Err: ErrInvalidYear, Detail: fmt.Sprintf("got %d", req.Year)}
	}
	return nil
}
