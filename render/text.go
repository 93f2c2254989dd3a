package render

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-pdf/fpdf"
)

// TextOptions configures the text-fallback renderer.
type TextOptions struct {
	// MaxParagraphs caps the paragraphs kept per page. Defaults to 100.
	MaxParagraphs int
	// MaxParagraphLength caps each paragraph, in characters. Defaults to 500.
	MaxParagraphLength int
	// FontPath is a TrueType font with the glyphs the pages need. Without
	// it the built-in Helvetica is used, which only covers Latin-1.
	FontPath string
}

const (
	defaultMaxParagraphs      = 100
	defaultMaxParagraphLength = 500
)

// Text is the text-fallback renderer: it keeps only the readable text of a
// page and lays it out as plain paragraphs. It needs no external programs.
type Text struct {
	fetcher Fetcher
	page    PageConfig
	opts    TextOptions
}

// NewText returns a text-fallback renderer.
func NewText(f Fetcher, pg PageConfig, opts TextOptions) (*Text, error) {
	if opts.MaxParagraphs <= 0 {
		opts.MaxParagraphs = defaultMaxParagraphs
	}
	if opts.MaxParagraphLength <= 0 {
		opts.MaxParagraphLength = defaultMaxParagraphLength
	}
	if opts.FontPath != "" {
		if _, err := os.Stat(opts.FontPath); err != nil {
			return nil, fmt.Errorf("render: font: %w", err)
		}
	}
	return &Text{fetcher: f, page: pg, opts: opts}, nil
}

func (t *Text) Kind() Kind   { return KindTextFallback }
func (t *Text) Ext() string  { return ".pdf" }
func (t *Text) Close() error { return nil }

// Render fetches url and lays out its text.
func (t *Text) Render(ctx context.Context, url string) (*Result, error) {
	pg, err := t.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	src, err := pg.Text()
	if err != nil {
		return nil, err
	}
	title, paras, err := ExtractParagraphs(src, t.opts.MaxParagraphs, t.opts.MaxParagraphLength)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := t.layout(title, pg.URL, paras)
	if err != nil {
		return nil, err
	}
	return &Result{data: data}, nil
}

// ExtractParagraphs returns the document title and up to limit text blocks,
// each cut to maxLen characters. Scripts, styles and media are dropped and
// inline markup is reduced to its text. List items become one line each and
// table rows become one line with cells separated by " | ". Headings keep a
// leading "#" marker.
func ExtractParagraphs(src string, limit, maxLen int) (string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", nil, fmt.Errorf("render: parsing html: %w", err)
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")

	doc.Find("script, style, noscript, iframe, svg, img, head").Remove()
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml(html.EscapeString(s.Text()))
	})

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, fmt.Errorf("render: serializing html: %w", err)
	}
	text, err := plainConverter().ConvertString(body)
	if err != nil {
		return "", nil, fmt.Errorf("render: converting html: %w", err)
	}

	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		if len(paras) == limit {
			break
		}
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		paras = append(paras, truncate(block, maxLen))
	}
	return title, paras, nil
}

// plainConverter is an html-to-markdown converter whose rules emit plain
// text instead of markdown emphasis, bullets, code fences and quotes.
func plainConverter() *md.Converter {
	inline := func(content string, _ *goquery.Selection, _ *md.Options) *string {
		return md.String(content)
	}
	block := func(content string, _ *goquery.Selection, _ *md.Options) *string {
		return md.String("\n\n" + strings.TrimSpace(content) + "\n\n")
	}

	conv := md.NewConverter("", true, &md.Options{EscapeMode: "disabled"})
	conv.AddRules(
		md.Rule{Filter: []string{"strong", "b", "em", "i", "code", "kbd", "samp", "tt"}, Replacement: inline},
		md.Rule{Filter: []string{"blockquote", "table"}, Replacement: block},
		md.Rule{
			Filter: []string{"ul", "ol"},
			Replacement: func(content string, s *goquery.Selection, _ *md.Options) *string {
				if s.ParentsFiltered("li").Length() > 0 {
					return md.String("\n" + strings.TrimSpace(content) + "\n")
				}
				return md.String("\n\n" + strings.TrimSpace(content) + "\n\n")
			},
		},
		md.Rule{
			Filter: []string{"li"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(strings.TrimSpace(content) + "\n")
			},
		},
		md.Rule{
			Filter: []string{"tr"},
			Replacement: func(_ string, s *goquery.Selection, _ *md.Options) *string {
				var cells []string
				s.Children().Filter("td, th").Each(func(_ int, c *goquery.Selection) {
					if t := strings.Join(strings.Fields(c.Text()), " "); t != "" {
						cells = append(cells, t)
					}
				})
				return md.String(strings.Join(cells, " | ") + "\n")
			},
		},
		md.Rule{
			Filter: []string{"pre"},
			Replacement: func(_ string, s *goquery.Selection, _ *md.Options) *string {
				return md.String("\n\n" + strings.TrimSpace(s.Text()) + "\n\n")
			},
		},
		md.Rule{
			Filter: []string{"hr"},
			Replacement: func(string, *goquery.Selection, *md.Options) *string {
				return md.String("\n\n")
			},
		},
		md.Rule{
			Filter: []string{"br"},
			Replacement: func(string, *goquery.Selection, *md.Options) *string {
				return md.String("\n")
			},
		},
	)
	return conv
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (t *Text) layout(title, source string, paras []string) ([]byte, error) {
	w, h := t.page.dimensions()
	m := t.page.resolved().Margin

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: w * 10, Ht: h * 10},
	})
	pdf.SetMargins(m.Left*10, m.Top*10, m.Right*10)
	pdf.SetAutoPageBreak(true, m.Bottom*10)
	pdf.SetCreator("urlpdf", true)
	if title != "" {
		pdf.SetTitle(title, true)
	}

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if t.opts.FontPath != "" {
		family = "body"
		pdf.AddUTF8Font(family, "", t.opts.FontPath)
		pdf.AddUTF8Font(family, "B", t.opts.FontPath)
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	if title != "" {
		pdf.SetFont(family, "B", 16)
		pdf.MultiCell(0, 8, tr(title), "", "L", false)
		pdf.Ln(1)
	}
	pdf.SetFont(family, "", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 4, tr(source), "", "L", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	for _, p := range paras {
		if heading, ok := strings.CutPrefix(p, "#"); ok {
			pdf.SetFont(family, "B", 13)
			pdf.MultiCell(0, 6.5, tr(strings.TrimLeft(heading, "# ")), "", "L", false)
		} else {
			pdf.SetFont(family, "", 11)
			pdf.MultiCell(0, 5.5, tr(p), "", "L", false)
		}
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}
