// Package syllabus finds syllabus page links in saved HTML files, such as
// course listings downloaded from a university portal.
package syllabus

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
)

// Group holds the links found in the HTML files of every directory that
// shares one base name. Their PDFs go to OutputDir.
type Group struct {
	Name      string
	OutputDir string
	Files     []string
	URLs      []string
}

// Options configures Harvest.
type Options struct {
	// Year restricts links to one academic year. Zero accepts any year.
	Year   int
	Logger *slog.Logger
}

// Harvest walks root for .html files and groups the syllabus links they
// contain by the name of the directory holding each file. A group's
// output directory is root/<name>. Files that cannot be read are logged
// and skipped. Groups and links keep their first-seen order.
func Harvest(fs afero.Fs, root string, opts Options) ([]Group, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := newMatcher(opts.Year)

	var groups []*Group
	byDir := map[string]*Group{}
	seen := map[string]map[string]bool{}

	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".html") {
			return nil
		}

		f, err := fs.Open(path)
		if err != nil {
			log.Warn("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		urls, err := m.extract(f)
		f.Close()
		if err != nil {
			log.Warn("skipping unparsable file", "path", path, "error", err)
			return nil
		}
		log.Debug("scanned html file", "path", path, "links", len(urls))
		if len(urls) == 0 {
			return nil
		}

		name := filepath.Base(filepath.Dir(path))
		out := filepath.Join(root, name)
		g, ok := byDir[out]
		if !ok {
			g = &Group{Name: name, OutputDir: out}
			byDir[out] = g
			seen[out] = map[string]bool{}
			groups = append(groups, g)
		}
		g.Files = append(g.Files, path)
		for _, u := range urls {
			if !seen[out][u] {
				seen[out][u] = true
				g.URLs = append(g.URLs, u)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("syllabus: %w", err)
	}

	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = *g
	}
	return out, nil
}

// ExtractLinks returns the distinct syllabus links in an HTML document:
// anchor targets first, then any other occurrence in the raw text.
func ExtractLinks(r io.Reader, year int) ([]string, error) {
	return newMatcher(year).extract(r)
}

type matcher struct {
	href *regexp.Regexp
	raw  *regexp.Regexp
}

func newMatcher(year int) matcher {
	y := `\d{4}`
	if year > 0 {
		y = strconv.Itoa(year)
	}
	return matcher{
		href: regexp.MustCompile(`https://[^/]+/.*?/SyllabusHtml\.` + y + `\.[A-Za-z0-9]+\.html`),
		raw:  regexp.MustCompile(`https://[^"'\s<>]+/SyllabusHtml\.` + y + `\.[A-Za-z0-9]+\.html`),
	}
}

func (m matcher) extract(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}

	var urls []string
	seen := map[string]bool{}
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href = strings.TrimSpace(href); m.href.MatchString(href) {
			add(href)
		}
	})
	for _, u := range m.raw.FindAllString(string(data), -1) {
		add(u)
	}
	return urls, nil
}
