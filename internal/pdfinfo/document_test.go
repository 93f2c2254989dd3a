package pdfinfo

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// pdfBuilder assembles a PDF body and remembers object offsets.
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder(version string) *pdfBuilder {
	b := &pdfBuilder{offsets: map[int]int{}}
	b.buf.WriteString("%PDF-" + version + "\n%\xe2\xe3\xcf\xd3\n")
	return b
}

func (b *pdfBuilder) obj(id int, body string) {
	b.offsets[id] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", id, body)
}

// classic finishes the file with a traditional xref table.
func (b *pdfBuilder) classic(rootID int) []byte {
	size := len(b.offsets) + 1
	xref := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", size)
	for id := 1; id < size; id++ {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", b.offsets[id])
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, rootID, xref)
	return b.buf.Bytes()
}

// buildPDF returns a classic PDF with one page per MediaBox. The page tree
// node carries an A4 MediaBox that pages without their own inherit.
func buildPDF(boxes []string) []byte {
	b := newPDFBuilder("1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")

	var kids []string
	for i := range boxes {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+i))
	}
	b.obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 595.28 841.89] >>",
		strings.Join(kids, " "), len(boxes)))

	for i, box := range boxes {
		body := "<< /Type /Page /Parent 2 0 R"
		if box != "" {
			body += " " + box
		}
		body += " >>"
		b.obj(3+i, body)
	}
	return b.classic(1)
}

func almostEqual(a, b float64) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

func TestLoad_NotPDF(t *testing.T) {
	if _, err := Load([]byte("<html></html>")); err != ErrNotPDF {
		t.Fatalf("Load(html) error = %v, want ErrNotPDF", err)
	}
}

func TestLoad_Truncated(t *testing.T) {
	if _, err := Load([]byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\n")); err == nil {
		t.Fatal("expected error for file without startxref")
	}
}

func TestVersion(t *testing.T) {
	doc, err := Load(buildPDF([]string{""}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v := doc.Version(); v != "1.4" {
		t.Errorf("Version() = %q, want 1.4", v)
	}
}

func TestPages_ClassicXRef(t *testing.T) {
	data := buildPDF([]string{
		"",
		"/MediaBox [0 0 612 792] /Rotate 90",
		"/MediaBox [10 10 310 410]",
	})
	doc, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	tests := []struct {
		w, h float64
		rot  int
	}{
		{595.28, 841.89, 0},
		{612, 792, 90},
		{300, 400, 0},
	}
	for i, tt := range tests {
		p := pages[i]
		if !almostEqual(p.Width, tt.w) || !almostEqual(p.Height, tt.h) || p.Rotation != tt.rot {
			t.Errorf("page %d = %+v, want %vx%v rot %d", i, p, tt.w, tt.h, tt.rot)
		}
	}

	n, err := doc.PageCount()
	if err != nil || n != 3 {
		t.Errorf("PageCount() = %d, %v; want 3", n, err)
	}
}

// encodeUp applies the PNG "Up" filter to fixed-width rows.
func encodeUp(rows [][]byte) []byte {
	var out []byte
	prev := make([]byte, len(rows[0]))
	for _, row := range rows {
		out = append(out, 2)
		for i := range row {
			out = append(out, row[i]-prev[i])
		}
		prev = row
	}
	return out
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPages_XRefStreamAndObjectStream(t *testing.T) {
	b := newPDFBuilder("1.5")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")

	// Object 3 lives in object stream 5.
	page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 420 595] >>"
	header := "3 0 "
	objStm := header + page
	b.obj(5, fmt.Sprintf("<< /Type /ObjStm /N 1 /First %d /Length %d >>\nstream\n%s\nendstream",
		len(header), len(objStm), objStm))

	xrefOff := b.buf.Len()
	entry := func(kind byte, f2 int, f3 byte) []byte {
		return []byte{kind, byte(f2 >> 8), byte(f2), f3}
	}
	rows := [][]byte{
		entry(0, 0, 0xff),
		entry(1, b.offsets[1], 0),
		entry(1, b.offsets[2], 0),
		entry(2, 5, 0),
		entry(1, xrefOff, 0),
		entry(1, b.offsets[5], 0),
	}
	data := deflate(t, encodeUp(rows))
	fmt.Fprintf(&b.buf, "4 0 obj\n<< /Type /XRef /Size 6 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode "+
		"/DecodeParms << /Predictor 12 /Columns 4 >> /Length %d >>\nstream\n", len(data))
	b.buf.Write(data)
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	doc, err := Load(b.buf.Bytes())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if !almostEqual(pages[0].Width, 420) || !almostEqual(pages[0].Height, 595) {
		t.Errorf("page = %+v, want 420x595", pages[0])
	}
}

func TestOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/out/a.pdf", buildPDF([]string{"", ""}), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Open(fs, "/out/a.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if n, _ := doc.PageCount(); n != 2 {
		t.Errorf("PageCount() = %d, want 2", n)
	}

	if _, err := Open(fs, "/out/missing.pdf"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLexer_Objects(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-3.5", -3.5},
		{"/Name#20X", name("Name X")},
		{"(a (nested) \\) str)", "a (nested) ) str"},
		{"<48 65 6C6C6F>", "Hello"},
		{"true", true},
		{"null", nil},
		{"7 0 R", ref{num: 7}},
	}
	for _, tt := range tests {
		got, err := newLexer([]byte(tt.in), 0).object()
		if err != nil {
			t.Errorf("object(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("object(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestLexer_UnknownTokensInArray(t *testing.T) {
	v, err := newLexer([]byte("[1 } 2 bogus 3]"), 0).object()
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := v.(array)
	if !ok {
		t.Fatalf("got %T, want array", v)
	}
	if len(arr) != 5 {
		t.Errorf("array has %d items, want 5", len(arr))
	}
}
