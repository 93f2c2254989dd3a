package urlpdf

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// Mode selects how input lines are read.
type Mode int

const (
	// ModeURLs treats each line as a URL.
	ModeURLs Mode = iota
	// ModeCourses treats each line as a course code for CourseURL.
	ModeCourses
)

func (m Mode) String() string {
	if m == ModeCourses {
		return "courses"
	}
	return "urls"
}

// Item is one identifier of a run.
type Item struct {
	Index      int // 1-based
	Identifier string
	URL        string
	Name       string // output name without extension
	Path       string // set when the item is planned
}

// ReadLines returns the trimmed, non-empty lines of a text file.
// A leading UTF-8 byte order mark is ignored.
func ReadLines(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for first := true; sc.Scan(); first = false {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// URLItems builds items from URL lines.
func URLItems(lines []string, maxName int) []Item {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l == "" {
			continue
		}
		items = append(items, Item{
			Index:      len(items) + 1,
			Identifier: l,
			URL:        l,
			Name:       deriveName(l, maxName),
		})
	}
	return items
}

// CourseItems builds items from course codes. Each item is named after
// its code.
func CourseItems(codes []string, base string, year, maxName int) []Item {
	items := make([]Item, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		name := SanitizeName(c, maxName)
		if name == "" {
			name = "index"
		}
		items = append(items, Item{
			Index:      len(items) + 1,
			Identifier: c,
			URL:        CourseURL(base, year, c),
			Name:       name,
		})
	}
	return items
}
