package render

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/porticus-lab/go-url-pdf/fetch"
)

// Settings carries everything the registry needs to construct any
// renderer. Zero fields take each renderer's defaults.
type Settings struct {
	Page PageConfig

	// Fetcher is shared by the renderers that download page source.
	// Defaults to a fetch.Client with default options.
	Fetcher Fetcher

	// Disabled removes kinds from selection and enumeration.
	Disabled []Kind

	CLITool CLIToolOptions
	Chrome  []Option
	Text    TextOptions
}

func (s Settings) fetcher() Fetcher {
	if s.Fetcher != nil {
		return s.Fetcher
	}
	return fetch.New(fetch.Options{})
}

func (s Settings) enabled(k Kind) bool {
	return !slices.Contains(s.Disabled, k)
}

type factory struct {
	// probe reports whether the renderer can be constructed, without
	// constructing it. A nil probe means always available.
	probe func(ctx context.Context, s Settings) error
	build func(s Settings) (Renderer, error)
}

var registry = map[Kind]factory{
	KindCLITool: {
		probe: func(ctx context.Context, s Settings) error {
			return NewCLITool(s.CLITool, s.Page).Probe(ctx)
		},
		build: func(s Settings) (Renderer, error) {
			return NewCLITool(s.CLITool, s.Page), nil
		},
	},
	KindLayoutEngine: {
		probe: func(_ context.Context, s Settings) error {
			return probeChrome(s.Chrome...)
		},
		build: func(s Settings) (Renderer, error) {
			return NewChrome(s.fetcher(), s.Page, s.Chrome...)
		},
	},
	KindTextFallback: {
		build: func(s Settings) (Renderer, error) {
			return NewText(s.fetcher(), s.Page, s.Text)
		},
	},
	KindHTML: {
		build: func(s Settings) (Renderer, error) {
			return NewHTML(s.fetcher()), nil
		},
	},
}

// Availability describes one renderer kind on this host.
type Availability struct {
	Kind    Kind
	Enabled bool
	Err     error // nil when the probe succeeded
}

// Usable reports whether the kind can be selected.
func (a Availability) Usable() bool {
	return a.Enabled && a.Err == nil
}

// Available probes every kind in [Order].
func Available(ctx context.Context, s Settings) []Availability {
	out := make([]Availability, 0, len(Order))
	for _, k := range Order {
		a := Availability{Kind: k, Enabled: s.enabled(k)}
		if f := registry[k]; a.Enabled && f.probe != nil {
			a.Err = f.probe(ctx, s)
		}
		out = append(out, a)
	}
	return out
}

// Select constructs the requested renderer if it is enabled and usable,
// and otherwise the first enabled, usable kind in [Order]. It returns an
// error wrapping [ErrNoRenderer] that lists every failure when nothing
// qualifies.
func Select(ctx context.Context, want Kind, s Settings) (Renderer, error) {
	candidates := Order
	if want != "" {
		if _, ok := registry[want]; !ok {
			return nil, fmt.Errorf("render: unknown renderer %q", want)
		}
		candidates = append([]Kind{want}, slices.DeleteFunc(slices.Clone(Order), func(k Kind) bool {
			return k == want
		})...)
	}

	var errs []error
	for _, k := range candidates {
		if !s.enabled(k) {
			if k == want {
				errs = append(errs, fmt.Errorf("%s: disabled", k))
			}
			continue
		}
		f := registry[k]
		if f.probe != nil {
			if err := f.probe(ctx, s); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", k, err))
				continue
			}
		}
		r, err := f.build(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
			continue
		}
		return r, nil
	}
	if len(errs) == 0 {
		return nil, ErrNoRenderer
	}
	return nil, fmt.Errorf("%w: %w", ErrNoRenderer, errors.Join(errs...))
}
