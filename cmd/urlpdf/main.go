// Command urlpdf converts lists of web pages into PDF files.
//
// Usage:
//
//	urlpdf [input_file] [output_dir]            convert a file of URLs
//	urlpdf courses [codes_file] [output_dir]    convert syllabus course codes
//	urlpdf scan <dir>                           convert syllabus links found in saved HTML files
//	urlpdf info <file.pdf>                      show PDF metadata and page sizes
//	urlpdf renderers                            list the renderers usable on this host
//
// Missing arguments are asked for interactively. Settings are read from
// urlpdf.yaml, urlpdf.local.yaml, .env and URLPDF_* variables; flags win
// over all of them.
//
// The exit status is 0 when every item was converted or skipped, 2 when
// some items failed and 1 on any other error.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// exitError carries a specific exit status.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
