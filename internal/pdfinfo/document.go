// Package pdfinfo reads the structural metadata of a PDF file: its version,
// page count and page dimensions. It is used to inspect rendered output and
// backs the info command.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotPDF is returned when the data does not start with a %PDF- header.
var ErrNotPDF = errors.New("pdfinfo: not a PDF file")

type xrefEntry struct {
	offset   int64
	inUse    bool
	inStream bool
	stream   int // object stream number, when inStream
}

// Document is a parsed PDF file.
type Document struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer dict
	cache   map[int]any
}

// PageInfo describes one page. Width and Height are in PDF points
// (1/72 inch) and already account for the MediaBox origin.
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// Open reads and parses the PDF at path on fs.
func Open(fs afero.Fs, path string) (*Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: reading %s: %w", path, err)
	}
	return Load(data)
}

// Load parses a PDF held in memory.
func Load(data []byte) (*Document, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	doc := &Document{
		data:  data,
		xref:  make(map[int]xrefEntry),
		cache: make(map[int]any),
	}
	start, err := doc.startXRef()
	if err != nil {
		return nil, fmt.Errorf("pdfinfo: %w", err)
	}
	seen := make(map[int64]bool)
	if err := doc.readXRef(start, seen); err != nil {
		return nil, fmt.Errorf("pdfinfo: loading xref: %w", err)
	}
	if doc.trailer == nil {
		return nil, fmt.Errorf("pdfinfo: missing trailer")
	}
	return doc, nil
}

// Version returns the header version, e.g. "1.4".
func (doc *Document) Version() string {
	line := doc.data[5:]
	if i := bytes.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	if len(line) > 8 {
		line = line[:8]
	}
	return strings.TrimSpace(string(line))
}

func (doc *Document) startXRef() (int64, error) {
	from := max(len(doc.data)-2048, 0)
	i := bytes.LastIndex(doc.data[from:], []byte("startxref"))
	if i < 0 {
		return 0, errors.New("startxref not found")
	}
	l := newLexer(doc.data, from+i+len("startxref"))
	off, ok := l.intToken()
	if !ok {
		return 0, errors.New("invalid startxref offset")
	}
	return off, nil
}

// readXRef loads the section at off and follows /Prev links. Entries read
// first win, since later sections are newer.
func (doc *Document) readXRef(off int64, seen map[int64]bool) error {
	if off < 0 || off >= int64(len(doc.data)) {
		return fmt.Errorf("xref offset %d out of range", off)
	}
	if seen[off] {
		return nil
	}
	seen[off] = true

	l := newLexer(doc.data, int(off))
	var trailer dict
	var err error
	if l.keyword("xref") {
		trailer, err = doc.readTable(l)
	} else {
		trailer, err = doc.readStream(l)
	}
	if err != nil {
		return err
	}
	if doc.trailer == nil {
		doc.trailer = trailer
	}
	if prev, ok := toInt(trailer["Prev"]); ok {
		return doc.readXRef(prev, seen)
	}
	return nil
}

func (doc *Document) readTable(l *lexer) (dict, error) {
	for !l.keyword("trailer") {
		first, ok1 := l.intToken()
		count, ok2 := l.intToken()
		if !ok1 || !ok2 {
			return nil, errors.New("malformed xref subsection")
		}
		for i := int64(0); i < count; i++ {
			offset, _ := l.intToken()
			l.intToken() // generation
			kind := l.token()
			id := int(first + i)
			if _, ok := doc.xref[id]; !ok {
				doc.xref[id] = xrefEntry{offset: offset, inUse: kind == "n"}
			}
		}
	}
	v, err := l.object()
	if err != nil {
		return nil, fmt.Errorf("parsing trailer: %w", err)
	}
	d, ok := v.(dict)
	if !ok {
		return nil, errors.New("trailer is not a dictionary")
	}
	return d, nil
}

func (doc *Document) readStream(l *lexer) (dict, error) {
	l.intToken()
	l.intToken()
	if !l.keyword("obj") {
		return nil, errors.New("xref offset points at neither a table nor a stream")
	}
	v, err := l.object()
	if err != nil {
		return nil, err
	}
	s, ok := v.(*stream)
	if !ok {
		return nil, errors.New("xref object is not a stream")
	}
	data, err := decode(s)
	if err != nil {
		return nil, fmt.Errorf("decoding xref stream: %w", err)
	}

	w, _ := s.dict["W"].(array)
	if len(w) < 3 {
		return nil, errors.New("xref stream without /W")
	}
	var widths [3]int
	for i := range widths {
		n, _ := toInt(w[i])
		widths[i] = int(n)
	}
	size := widths[0] + widths[1] + widths[2]
	if size == 0 {
		return nil, errors.New("xref stream with zero-width entries")
	}

	var sections []int64
	if idx, ok := s.dict["Index"].(array); ok {
		for _, v := range idx {
			n, _ := toInt(v)
			sections = append(sections, n)
		}
	} else {
		n, _ := toInt(s.dict["Size"])
		sections = []int64{0, n}
	}

	pos := 0
	for i := 0; i+1 < len(sections); i += 2 {
		for j := int64(0); j < sections[i+1]; j++ {
			if pos+size > len(data) {
				break
			}
			kind := 1
			if widths[0] > 0 {
				kind = field(data[pos:], widths[0])
			}
			f2 := field(data[pos+widths[0]:], widths[1])
			pos += size

			id := int(sections[i] + j)
			if _, ok := doc.xref[id]; ok {
				continue
			}
			switch kind {
			case 0:
				doc.xref[id] = xrefEntry{}
			case 1:
				doc.xref[id] = xrefEntry{offset: int64(f2), inUse: true}
			case 2:
				doc.xref[id] = xrefEntry{inUse: true, inStream: true, stream: f2}
			}
		}
	}
	return s.dict, nil
}

func field(b []byte, n int) int {
	v := 0
	for i := 0; i < n && i < len(b); i++ {
		v = v<<8 | int(b[i])
	}
	return v
}

// object returns indirect object num, or nil if it is free or unreadable.
func (doc *Document) object(num int) any {
	if v, ok := doc.cache[num]; ok {
		return v
	}
	e, ok := doc.xref[num]
	if !ok || !e.inUse {
		return nil
	}
	// Break reference cycles while resolving.
	doc.cache[num] = nil

	var v any
	if e.inStream {
		v = doc.objectFromStream(num, e.stream)
	} else if e.offset >= 0 && e.offset < int64(len(doc.data)) {
		l := newLexer(doc.data, int(e.offset))
		l.intToken()
		l.intToken()
		if l.keyword("obj") {
			v, _ = l.object()
		}
	}
	doc.cache[num] = v
	return v
}

func (doc *Document) objectFromStream(num, container int) any {
	s, ok := doc.object(container).(*stream)
	if !ok {
		return nil
	}
	data, err := decode(s)
	if err != nil {
		return nil
	}
	n, _ := toInt(s.dict["N"])
	first, _ := toInt(s.dict["First"])

	l := newLexer(data, 0)
	for i := int64(0); i < n; i++ {
		id, ok1 := l.intToken()
		off, ok2 := l.intToken()
		if !ok1 || !ok2 {
			return nil
		}
		if int(id) == num {
			at := int(first + off)
			if at < 0 || at >= len(data) {
				return nil
			}
			v, _ := newLexer(data, at).object()
			return v
		}
	}
	return nil
}

func (doc *Document) resolve(v any) any {
	if r, ok := v.(ref); ok {
		return doc.object(r.num)
	}
	return v
}

func (doc *Document) dictOf(v any) dict {
	switch d := doc.resolve(v).(type) {
	case dict:
		return d
	case *stream:
		return d.dict
	}
	return nil
}

// Pages returns every leaf page in document order. MediaBox and Rotate are
// inherited from ancestor page tree nodes when a page omits them.
func (doc *Document) Pages() ([]PageInfo, error) {
	root := doc.dictOf(doc.trailer["Root"])
	if root == nil {
		return nil, errors.New("pdfinfo: document has no catalog")
	}
	tree := doc.dictOf(root["Pages"])
	if tree == nil {
		return nil, errors.New("pdfinfo: catalog has no page tree")
	}
	var pages []PageInfo
	doc.walk(tree, nil, nil, 0, &pages)
	return pages, nil
}

// PageCount returns the number of leaf pages.
func (doc *Document) PageCount() (int, error) {
	pages, err := doc.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func (doc *Document) walk(node dict, box, rotate any, depth int, out *[]PageInfo) {
	if depth > maxDepth {
		return
	}
	if v, ok := node["MediaBox"]; ok {
		box = v
	}
	if v, ok := node["Rotate"]; ok {
		rotate = v
	}

	if t, _ := node["Type"].(name); t == "Page" {
		*out = append(*out, doc.pageInfo(box, rotate))
		return
	}
	kids, _ := doc.resolve(node["Kids"]).(array)
	for _, k := range kids {
		if kid := doc.dictOf(k); kid != nil {
			doc.walk(kid, box, rotate, depth+1, out)
		}
	}
}

func (doc *Document) pageInfo(box, rotate any) PageInfo {
	var info PageInfo
	if b, ok := doc.resolve(box).(array); ok && len(b) >= 4 {
		info.Width = toFloat(doc.resolve(b[2])) - toFloat(doc.resolve(b[0]))
		info.Height = toFloat(doc.resolve(b[3])) - toFloat(doc.resolve(b[1]))
	}
	if r, ok := toInt(doc.resolve(rotate)); ok {
		info.Rotation = int(r)
	}
	return info
}
