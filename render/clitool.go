package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CLIToolOptions configures the wkhtmltopdf renderer.
type CLIToolOptions struct {
	// Path is the executable name or path. Defaults to "wkhtmltopdf".
	Path string
	// Timeout bounds one conversion. Defaults to 60 seconds.
	Timeout time.Duration
}

const (
	defaultCLIToolPath    = "wkhtmltopdf"
	defaultCLIToolTimeout = 60 * time.Second
	probeTimeout          = 5 * time.Second
)

// CLITool is the cli-tool renderer. It runs wkhtmltopdf, which fetches and
// lays out the page itself.
type CLITool struct {
	path    string
	timeout time.Duration
	page    PageConfig

	// command builds the process to run; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewCLITool returns a wkhtmltopdf renderer. It does not check that the
// executable exists; see [CLITool.Probe].
func NewCLITool(opts CLIToolOptions, pg PageConfig) *CLITool {
	if opts.Path == "" {
		opts.Path = defaultCLIToolPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCLIToolTimeout
	}
	return &CLITool{
		path:    opts.Path,
		timeout: opts.Timeout,
		page:    pg,
		command: exec.CommandContext,
	}
}

func (c *CLITool) Kind() Kind   { return KindCLITool }
func (c *CLITool) Ext() string  { return ".pdf" }
func (c *CLITool) Close() error { return nil }

// Probe runs "<path> --version" and reports whether it succeeded.
func (c *CLITool) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := c.command(ctx, c.path, "--version")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return c.processError(err, &stderr)
	}
	return nil
}

// args builds the wkhtmltopdf command line for url, writing to out.
func (c *CLITool) args(url, out string) []string {
	pg := c.page.resolved()

	var args []string
	if name := pg.Size.Name(); name != "" {
		args = append(args, "--page-size", name)
	} else {
		args = append(args, "--page-width", mm(pg.Size.Width), "--page-height", mm(pg.Size.Height))
	}
	args = append(args,
		"--orientation", pg.Orientation.String(),
		"--margin-top", mm(pg.Margin.Top),
		"--margin-right", mm(pg.Margin.Right),
		"--margin-bottom", mm(pg.Margin.Bottom),
		"--margin-left", mm(pg.Margin.Left),
		"--encoding", "UTF-8",
		"--load-error-handling", "ignore",
		"--load-media-error-handling", "ignore",
		"--quiet",
	)
	if !pg.PrintBackground {
		args = append(args, "--no-background")
	}
	return append(args, url, out)
}

// Render converts url into a PDF. Success requires a zero exit status and
// a non-empty output file.
func (c *CLITool) Render(ctx context.Context, url string) (*Result, error) {
	dir, err := os.MkdirTemp("", "urlpdf-")
	if err != nil {
		return nil, fmt.Errorf("render: creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "out.pdf")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := c.command(ctx, c.path, c.args(url, out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("render: %s: %w", c.path, ctx.Err())
		}
		return nil, c.processError(err, &stderr)
	}

	data, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, ErrEmptyOutput
	}
	if err != nil {
		return nil, fmt.Errorf("render: reading output: %w", err)
	}
	return &Result{data: data}, nil
}

func (c *CLITool) processError(err error, stderr *bytes.Buffer) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ProcessError{
			Command:  filepath.Base(c.path),
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("render: running %s: %w", c.path, err)
}
