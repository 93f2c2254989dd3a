package render

import (
	"bytes"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Result holds one rendered document: a PDF, or raw HTML for the
// download-only renderer.
//
// A Result is immutable; its methods may be called any number of times.
type Result struct {
	data []byte
}

// NewResult wraps already rendered bytes.
func NewResult(data []byte) *Result {
	return &Result{data: data}
}

// Bytes returns the raw document content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Reader returns an [*bytes.Reader] over the document content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full document to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteFile writes the document to path on fs, truncating any existing file.
func (r *Result) WriteFile(fs afero.Fs, path string, perm os.FileMode) error {
	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Len returns the size of the document in bytes.
func (r *Result) Len() int {
	return len(r.data)
}
