package urlpdf

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// MaxNameLength is the default cap on derived output names.
const MaxNameLength = 100

// MinYear is the first academic year the syllabus site publishes.
const MinYear = 2020

// DefaultSyllabusBase is the syllabus site used by course-code runs.
const DefaultSyllabusBase = "https://syllabus.u-hyogo.ac.jp/slResult"

var (
	syllabusPattern = regexp.MustCompile(`SyllabusHtml\.(\d{4})\.([A-Za-z0-9]+)\.html`)
	unsafeName      = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
)

// DeriveOutputName returns the file name, without extension, for the page
// an identifier points at. Syllabus pages are named after their course
// code. Other URLs use their last path segment, or the host when the path
// is empty. The result is sanitized and never empty.
func DeriveOutputName(identifier string) string {
	return deriveName(identifier, MaxNameLength)
}

func deriveName(identifier string, max int) string {
	identifier = strings.TrimSpace(identifier)
	if m := syllabusPattern.FindStringSubmatch(identifier); m != nil {
		return SanitizeName(m[2], max)
	}

	name := identifier
	if u, err := url.Parse(identifier); err == nil {
		name = lastSegment(u.Path)
		if name == "" {
			name = strings.ReplaceAll(u.Hostname(), ".", "_")
		}
	}
	name = strings.TrimSuffix(name, ".html")
	if name == "" {
		name = "index"
	}
	return SanitizeName(name, max)
}

func lastSegment(p string) string {
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return segs[i]
		}
	}
	return ""
}

// SanitizeName replaces every character outside [A-Za-z0-9_.-] with an
// underscore and cuts the result to max bytes when max is positive.
// SanitizeName(SanitizeName(s, n), n) == SanitizeName(s, n).
func SanitizeName(name string, max int) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if max > 0 && len(name) > max {
		name = name[:max]
	}
	return name
}

// CourseURL returns the syllabus page of a course code for an academic
// year. An empty base selects DefaultSyllabusBase.
func CourseURL(base string, year int, code string) string {
	if base == "" {
		base = DefaultSyllabusBase
	}
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/%d/japanese/syllabusHtml/SyllabusHtml.%d.%s.html", base, year, year, code)
}
