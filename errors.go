package urlpdf

import (
	"errors"
	"fmt"

	"github.com/porticus-lab/go-url-pdf/render"
)

// Sentinel errors returned by the package.
var (
	// ErrInputNotFound is returned by Start when the input file does not
	// exist or is a directory.
	ErrInputNotFound = errors.New("urlpdf: input file not found")

	// ErrEmptyOutputDir is returned by Start when no output directory is set.
	ErrEmptyOutputDir = errors.New("urlpdf: output directory is empty")

	// ErrNoRenderer is returned by Start when the Converter has no renderer.
	ErrNoRenderer = render.ErrNoRenderer

	// ErrInvalidYear is returned by Start for a course-code run whose year
	// is before MinYear.
	ErrInvalidYear = fmt.Errorf("urlpdf: year must be %d or later", MinYear)

	// ErrOutputMissing is recorded for an item whose renderer succeeded but
	// whose output file is absent or empty afterwards.
	ErrOutputMissing = errors.New("urlpdf: output file missing after write")

	// ErrRendererPanic is recorded for an item whose renderer panicked.
	ErrRendererPanic = errors.New("urlpdf: renderer panicked")
)

// ConfigError reports a request that failed validation. A run that returns
// a ConfigError never starts.
type ConfigError struct {
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FatalError aborts a run outside the per-item scope, for example when the
// output directory cannot be created.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("urlpdf: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
