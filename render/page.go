package render

import (
	"fmt"
	"strconv"
	"strings"
)

// PageSize represents paper dimensions in centimeters.
type PageSize struct {
	Width  float64 // Width in centimeters.
	Height float64 // Height in centimeters.
}

// Standard paper sizes.
var (
	A3      = PageSize{Width: 29.7, Height: 42.0}
	A4      = PageSize{Width: 21.0, Height: 29.7}
	A5      = PageSize{Width: 14.8, Height: 21.0}
	Letter  = PageSize{Width: 21.59, Height: 27.94}
	Legal   = PageSize{Width: 21.59, Height: 35.56}
	Tabloid = PageSize{Width: 27.94, Height: 43.18}
)

var namedSizes = map[string]PageSize{
	"A3":      A3,
	"A4":      A4,
	"A5":      A5,
	"Letter":  Letter,
	"Legal":   Legal,
	"Tabloid": Tabloid,
}

// ParsePageSize looks up a paper size by name, case-insensitively.
func ParsePageSize(s string) (PageSize, error) {
	for n, size := range namedSizes {
		if strings.EqualFold(n, s) {
			return size, nil
		}
	}
	return PageSize{}, fmt.Errorf("unknown page size %q", s)
}

// Name returns the standard name of the size, or "" for custom sizes.
func (s PageSize) Name() string {
	for n, size := range namedSizes {
		if size == s {
			return n
		}
	}
	return ""
}

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

// ParseOrientation accepts "portrait" or "landscape".
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(s) {
	case "", "portrait":
		return Portrait, nil
	case "landscape":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("unknown orientation %q", s)
}

func (o Orientation) String() string {
	if o == Landscape {
		return "Landscape"
	}
	return "Portrait"
}

// Margin represents page margins in centimeters.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargin returns a Margin with the same value on all sides.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// PageConfig controls the geometry of rendered pages. Every renderer that
// produces a PDF honors it.
//
// Zero-value fields fall back to [DefaultPageConfig]: A4 paper, portrait,
// 2 cm margins, scale 1.0, with background graphics enabled.
type PageConfig struct {
	// Size specifies the paper size. Defaults to A4.
	Size PageSize

	// Orientation specifies portrait or landscape. Defaults to Portrait.
	Orientation Orientation

	// Margin specifies page margins in centimeters. The zero Margin means
	// the default of 2 cm on all sides.
	Margin Margin

	// Scale of the webpage rendering, used by the layout engine. Must be
	// between 0.1 and 2.0. Defaults to 1.0.
	Scale float64

	// PrintBackground enables printing of background colors and images.
	PrintBackground bool
}

// DefaultPageConfig returns the page settings used when none are given.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:            A4,
		Orientation:     Portrait,
		Margin:          UniformMargin(2.0),
		Scale:           1.0,
		PrintBackground: true,
	}
}

// resolved returns a PageConfig with all zero values replaced by defaults.
func (p *PageConfig) resolved() PageConfig {
	d := DefaultPageConfig()
	if p == nil {
		return d
	}
	r := *p
	if r.Size == (PageSize{}) {
		r.Size = d.Size
	}
	if r.Scale <= 0 {
		r.Scale = d.Scale
	}
	if r.Margin == (Margin{}) {
		r.Margin = d.Margin
	}
	return r
}

func cmToInches(cm float64) float64 {
	return cm / 2.54
}

// dimensions returns the oriented paper width and height in centimeters.
func (p *PageConfig) dimensions() (width, height float64) {
	r := p.resolved()
	if r.Orientation == Landscape {
		return r.Size.Height, r.Size.Width
	}
	return r.Size.Width, r.Size.Height
}

// paperDimensions returns the unrotated sheet width and height in inches.
// Chrome rotates the sheet itself when printing in landscape.
func (p *PageConfig) paperDimensions() (width, height float64) {
	r := p.resolved()
	return cmToInches(r.Size.Width), cmToInches(r.Size.Height)
}

// marginInches returns margins converted to inches.
func (p *PageConfig) marginInches() (top, right, bottom, left float64) {
	r := p.resolved()
	return cmToInches(r.Margin.Top),
		cmToInches(r.Margin.Right),
		cmToInches(r.Margin.Bottom),
		cmToInches(r.Margin.Left)
}

// mm formats a centimeter value as a millimeter length for command-line
// tools, e.g. 2 -> "20mm".
func mm(cm float64) string {
	return strconv.FormatFloat(cm*10, 'f', -1, 64) + "mm"
}

// cssPageRule returns an @page rule matching the configuration.
func (p *PageConfig) cssPageRule() string {
	r := p.resolved()
	size := r.Size.Name()
	if size == "" {
		w, h := p.dimensions()
		size = fmt.Sprintf("%scm %scm", trimFloat(w), trimFloat(h))
	} else if r.Orientation == Landscape {
		size += " landscape"
	}
	m := r.Margin
	return fmt.Sprintf("@page { size: %s; margin: %scm %scm %scm %scm; }",
		size, trimFloat(m.Top), trimFloat(m.Right), trimFloat(m.Bottom), trimFloat(m.Left))
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
