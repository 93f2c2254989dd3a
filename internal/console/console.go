// Package console prints conversion events for a terminal: one line per
// item, an optional progress bar and a closing summary table.
package console

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"

	urlpdf "github.com/porticus-lab/go-url-pdf"
)

const timeLayout = "2006-01-02 15:04:05"

// Options configures a Printer.
type Options struct {
	// Detailed adds start lines, source URLs, sizes and timings.
	Detailed bool
	// Progress draws a progress bar below the log lines.
	Progress bool
}

// Printer renders the events of one run. It is not safe for concurrent use.
type Printer struct {
	out  io.Writer
	opts Options
	bar  *progressbar.ProgressBar
	now  func() time.Time

	failed []urlpdf.ItemResult
}

// New returns a Printer writing to out.
func New(out io.Writer, opts Options) *Printer {
	return &Printer{out: out, opts: opts, now: time.Now}
}

// Drain prints every event until the channel is closed and returns the
// final summary, if one was received.
func (p *Printer) Drain(events <-chan urlpdf.Event) (urlpdf.Summary, bool) {
	var (
		sum urlpdf.Summary
		ok  bool
	)
	for ev := range events {
		p.Handle(ev)
		if ev.Summary != nil {
			sum, ok = *ev.Summary, true
		}
	}
	return sum, ok
}

// Handle prints one event.
func (p *Printer) Handle(ev urlpdf.Event) {
	switch ev.Kind {
	case urlpdf.EventItemStarted:
		p.startBar(ev.Total)
		if p.opts.Detailed {
			p.println(ev.Time, fmt.Sprintf("[%d/%d] %s", ev.Item.Index, ev.Total, ev.Item.Identifier))
		}
	case urlpdf.EventItemSkipped, urlpdf.EventItemSucceeded, urlpdf.EventItemFailed:
		p.println(ev.Time, p.itemLine(ev))
		if ev.Kind == urlpdf.EventItemFailed {
			p.failed = append(p.failed, *ev.Result)
		}
		if p.bar != nil {
			p.bar.Add(1)
		}
	case urlpdf.EventRunCompleted, urlpdf.EventRunStopped:
		p.finishBar()
		if ev.Kind == urlpdf.EventRunStopped {
			p.println(ev.Time, fmt.Sprintf("stopped after %d of %d items", ev.Summary.Processed(), ev.Summary.Total))
		}
	case urlpdf.EventRunFailed:
		p.finishBar()
		p.println(ev.Time, "run failed: "+ev.Err.Error())
	}
}

func (p *Printer) itemLine(ev urlpdf.Event) string {
	r := ev.Result
	line := ev.String()
	if !p.opts.Detailed {
		return line
	}
	if r.URL != r.Identifier {
		line += " (" + r.URL + ")"
	}
	switch r.Status {
	case urlpdf.StatusSucceeded:
		line += fmt.Sprintf(" %s", formatBytes(r.Bytes))
		if r.Pages > 0 {
			line += fmt.Sprintf(", %d pages", r.Pages)
		}
		line += fmt.Sprintf(", %s", r.Duration.Round(time.Millisecond))
	case urlpdf.StatusSkipped:
		line += " already exists"
	}
	return line
}

func (p *Printer) println(at time.Time, msg string) {
	if at.IsZero() {
		at = p.now()
	}
	if p.bar != nil {
		p.bar.Clear()
	}
	fmt.Fprintf(p.out, "%s %s\n", at.Format(timeLayout), msg)
}

func (p *Printer) startBar(total int) {
	if !p.opts.Progress || p.bar != nil || total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("Converting"),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

func (p *Printer) finishBar() {
	if p.bar == nil {
		return
	}
	p.bar.Finish()
	p.bar = nil
}

// Summary prints the tally table, the failed items and the summary line.
func (p *Printer) Summary(sum urlpdf.Summary) {
	t := newTable(p.out)
	t.AppendHeader(table.Row{"Result", "Count"})
	t.AppendRow(table.Row{"Succeeded", sum.Succeeded})
	t.AppendRow(table.Row{"Skipped", sum.Skipped})
	t.AppendRow(table.Row{"Failed", sum.Failed})
	if n := sum.Total - sum.Processed(); n > 0 {
		t.AppendRow(table.Row{"Not processed", n})
	}
	t.AppendFooter(table.Row{"Total", sum.Total})
	t.Render()

	if len(p.failed) > 0 {
		f := newTable(p.out)
		f.AppendHeader(table.Row{"#", "Identifier", "Error type", "Error"})
		for _, r := range p.failed {
			f.AppendRow(table.Row{r.Index, r.Identifier, urlpdf.ErrorType(r.Err), r.Err.Error()})
		}
		f.Render()
	}

	fmt.Fprintf(p.out, "%s (%s, %s)\n", sum, sum.State, sum.Duration().Round(time.Millisecond))
}

// Failed returns the failed items seen so far.
func (p *Printer) Failed() []urlpdf.ItemResult { return p.failed }

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return strconv.FormatFloat(float64(n)/(1<<20), 'f', 1, 64) + " MB"
	case n >= 1<<10:
		return strconv.FormatFloat(float64(n)/(1<<10), 'f', 1, 64) + " KB"
	}
	return strconv.Itoa(n) + " B"
}
