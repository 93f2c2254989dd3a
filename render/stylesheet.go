package render

import (
	_ "embed"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//go:embed stylesheet.css
var printStylesheet string

// Stylesheet returns the print CSS applied by the layout engine: an @page
// rule for pg followed by the base typography and table rules.
func Stylesheet(pg PageConfig) string {
	return pg.cssPageRule() + "\n" + printStylesheet
}

// InjectStylesheet adds css to the document head. When the document has
// no <base> element one pointing at baseURL is added first, so relative
// links keep resolving after the markup is loaded from a local file.
func InjectStylesheet(src, baseURL, css string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("render: parsing html: %w", err)
	}
	head := doc.Find("head").First()
	if baseURL != "" && doc.Find("base[href]").Length() == 0 {
		head.PrependHtml(`<base href="` + html.EscapeString(baseURL) + `">`)
	}
	head.AppendHtml("<style>\n" + css + "</style>")

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render: serializing html: %w", err)
	}
	return out, nil
}
