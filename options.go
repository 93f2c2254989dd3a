package urlpdf

import (
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
)

// CollisionPolicy decides what happens when two items of a run derive the
// same output name.
type CollisionPolicy string

const (
	// CollisionSuffix appends _2, _3, ... to later colliding names.
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionSkip reuses the name. With skip-existing on, the later item
	// is skipped because the earlier one already wrote the file.
	CollisionSkip CollisionPolicy = "skip"
)

// ParseCollisionPolicy validates s. The empty string selects CollisionSuffix.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case "", CollisionSuffix:
		return CollisionSuffix, nil
	case CollisionSkip:
		return CollisionSkip, nil
	}
	return "", fmt.Errorf("unknown collision policy %q", s)
}

type converterConfig struct {
	fs           afero.Fs
	logger       *slog.Logger
	metrics      *Metrics
	skipExisting bool
	collision    CollisionPolicy
	maxName      int
	eventBuffer  int
}

func defaultConfig() converterConfig {
	return converterConfig{
		fs:           afero.NewOsFs(),
		skipExisting: true,
		collision:    CollisionSuffix,
		maxName:      MaxNameLength,
		eventBuffer:  64,
	}
}

// Option configures a [Converter].
type Option func(*converterConfig)

// WithFs sets the filesystem for the input file and the output directory.
// Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *converterConfig) {
		c.fs = fs
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *converterConfig) {
		c.logger = l
	}
}

// WithMetrics records item outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(c *converterConfig) {
		c.metrics = m
	}
}

// WithSkipExisting controls whether items whose output file already exists
// are skipped without rendering. Defaults to true.
func WithSkipExisting(skip bool) Option {
	return func(c *converterConfig) {
		c.skipExisting = skip
	}
}

// WithCollisionPolicy sets how colliding output names are resolved.
// Defaults to CollisionSuffix.
func WithCollisionPolicy(p CollisionPolicy) Option {
	return func(c *converterConfig) {
		c.collision = p
	}
}

// WithMaxNameLength caps output names, extension excluded. Defaults to
// MaxNameLength.
func WithMaxNameLength(n int) Option {
	return func(c *converterConfig) {
		if n > 0 {
			c.maxName = n
		}
	}
}

// WithEventBuffer sets the capacity of the event channel. Defaults to 64.
func WithEventBuffer(n int) Option {
	return func(c *converterConfig) {
		if n >= 0 {
			c.eventBuffer = n
		}
	}
}
