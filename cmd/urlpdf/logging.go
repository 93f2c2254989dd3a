package main

import (
	"io"
	"log/slog"
	"os"
)

func newLogger(w io.Writer, level slog.Level, verbose bool) (*slog.Logger, *slog.LevelVar) {
	lv := &slog.LevelVar{}
	lv.Set(level)
	if verbose {
		lv.Set(slog.LevelDebug)
	}

	opts := &slog.HandlerOptions{Level: lv}
	var handler slog.Handler
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), lv
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
