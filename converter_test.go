package urlpdf

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"

	"github.com/porticus-lab/go-url-pdf/render"
)

// fakeRenderer returns a small fake document for every URL unless told
// otherwise.
type fakeRenderer struct {
	ext    string
	fail   map[string]error
	panics map[string]bool
	empty  bool
	// before runs ahead of every render and may return an error.
	before func(ctx context.Context, url string) error

	mu    sync.Mutex
	calls []string
}

func (f *fakeRenderer) Kind() render.Kind { return render.KindHTML }
func (f *fakeRenderer) Close() error      { return nil }

func (f *fakeRenderer) Ext() string {
	if f.ext == "" {
		return ".pdf"
	}
	return f.ext
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (*render.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.before != nil {
		if err := f.before(ctx, url); err != nil {
			return nil, err
		}
	}
	if f.panics[url] {
		panic("boom")
	}
	if err := f.fail[url]; err != nil {
		return nil, err
	}
	if f.empty {
		return render.NewResult(nil), nil
	}
	return render.NewResult([]byte("%PDF-1.4 " + url)), nil
}

func (f *fakeRenderer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestFs(t *testing.T, lines ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/in.txt", []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	return fs
}

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return string(data)
}

func exists(fs afero.Fs, name string) bool {
	ok, _ := afero.Exists(fs, name)
	return ok
}

func drain(run *Run) []Event {
	var evs []Event
	for ev := range run.Events() {
		evs = append(evs, ev)
	}
	return evs
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

// checkTally compares the counters of sum.
func checkTally(t *testing.T, sum Summary, total, succeeded, skipped, failed int) {
	t.Helper()
	if sum.Total != total || sum.Succeeded != succeeded || sum.Skipped != skipped || sum.Failed != failed {
		t.Errorf("tally = total %d succeeded %d skipped %d failed %d, want %d %d %d %d",
			sum.Total, sum.Succeeded, sum.Skipped, sum.Failed, total, succeeded, skipped, failed)
	}
}

func checkKinds(t *testing.T, evs []Event, want ...EventKind) {
	t.Helper()
	if got := kinds(evs); !slices.Equal(got, want) {
		t.Errorf("event kinds = %v, want %v", got, want)
	}
}

func TestStart_ConfigErrors(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x")
	if err := fs.MkdirAll("/dir", 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		renderer render.Renderer
		req      Request
		want     error
	}{
		{"missing input", &fakeRenderer{}, Request{InputPath: "/missing.txt", OutputDir: "/out"}, ErrInputNotFound},
		{"input is directory", &fakeRenderer{}, Request{InputPath: "/dir", OutputDir: "/out"}, ErrInputNotFound},
		{"empty output dir", &fakeRenderer{}, Request{InputPath: "/in.txt"}, ErrEmptyOutputDir},
		{"no renderer", nil, Request{InputPath: "/in.txt", OutputDir: "/out"}, ErrNoRenderer},
		{"year too early", &fakeRenderer{}, Request{InputPath: "/in.txt", OutputDir: "/out", Mode: ModeCourses, Year: 2019}, ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConverter(tt.renderer, WithFs(fs))
			run, err := c.Start(context.Background(), tt.req)
			if run != nil {
				t.Error("Start returned a run despite the error")
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Start error = %v, want *ConfigError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Start error = %v, want %v", err, tt.want)
			}
		})
	}

	if ok, _ := afero.DirExists(fs, "/out"); ok {
		t.Error("validation must not touch the output directory")
	}
}

func TestRequest_Validate(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x")

	if err := (Request{InputPath: "/in.txt", OutputDir: "/out"}).Validate(fs); err != nil {
		t.Errorf("valid request: %v", err)
	}
	if err := (Request{Identifiers: []string{"x"}, OutputDir: "/out"}).Validate(fs); err != nil {
		t.Errorf("preset identifiers need no input file: %v", err)
	}
	err := (Request{InputPath: "/typo.txt", OutputDir: "/out"}).Validate(fs)
	var cerr *ConfigError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrInputNotFound) {
		t.Errorf("missing input = %v, want ConfigError wrapping ErrInputNotFound", err)
	}
	if err := (Request{InputPath: "/in.txt", OutputDir: "/out", Mode: ModeCourses, Year: 2024}).Validate(fs); err != nil {
		t.Errorf("course request: %v", err)
	}
}

func TestConvert_AllSucceed(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x.html", "", "   ", "https://a.test/docs/y")
	r := &fakeRenderer{}
	c := NewConverter(r, WithFs(fs))

	run, err := c.Start(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.ID() == "" {
		t.Error("run has no ID")
	}

	evs := drain(run)
	sum, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	checkKinds(t, evs,
		EventItemStarted, EventItemSucceeded,
		EventItemStarted, EventItemSucceeded,
		EventRunCompleted)
	if run.State() != StateCompleted || sum.State != StateCompleted {
		t.Errorf("state = %v / %v, want completed", run.State(), sum.State)
	}
	checkTally(t, sum, 2, 2, 0, 0)
	if got := sum.String(); got != "2/2 completed" {
		t.Errorf("summary = %q", got)
	}
	if sum.RunID != run.ID() {
		t.Errorf("RunID = %q, want %q", sum.RunID, run.ID())
	}
	if sum.Finished.Before(sum.Started) {
		t.Error("Finished precedes Started")
	}

	data := readFile(t, fs, "/out/x.pdf")
	if data != "%PDF-1.4 https://a.test/x.html" {
		t.Errorf("x.pdf = %q", data)
	}
	if !exists(fs, "/out/y.pdf") {
		t.Error("y.pdf not written")
	}

	if evs[0].Item.Index != 1 || evs[0].Item.Path != "/out/x.pdf" {
		t.Errorf("first item = %+v", evs[0].Item)
	}
	if evs[2].Total != 2 {
		t.Errorf("Total = %d, want 2", evs[2].Total)
	}
	if evs[1].Result == nil || evs[1].Result.Bytes != len(data) {
		t.Errorf("first result = %+v, want %d bytes", evs[1].Result, len(data))
	}
	if evs[4].Summary == nil || evs[4].Summary.Succeeded != 2 {
		t.Errorf("final summary = %+v", evs[4].Summary)
	}
}

func TestConvert_SkipExisting(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x", "https://a.test/y")
	writeFile(t, fs, "/out/x.pdf", "old")
	r := &fakeRenderer{}

	sum, err := NewConverter(r, WithFs(fs)).Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if got := r.Calls(); !slices.Equal(got, []string{"https://a.test/y"}) {
		t.Errorf("rendered %q, want only y", got)
	}
	checkTally(t, sum, 2, 1, 1, 0)
	if sum.Completed() != 2 || sum.String() != "2/2 completed" {
		t.Errorf("Completed = %d, String = %q", sum.Completed(), sum.String())
	}
	if got := readFile(t, fs, "/out/x.pdf"); got != "old" {
		t.Errorf("existing file overwritten: %q", got)
	}
}

func TestConvert_Overwrite(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x")
	writeFile(t, fs, "/out/x.pdf", "old")

	sum, err := NewConverter(&fakeRenderer{}, WithFs(fs), WithSkipExisting(false)).
		Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	checkTally(t, sum, 1, 1, 0, 0)
	if got := readFile(t, fs, "/out/x.pdf"); got != "%PDF-1.4 https://a.test/x" {
		t.Errorf("x.pdf = %q, want the new render", got)
	}
}

func TestConvert_FailuresDoNotStopTheLoop(t *testing.T) {
	fs := newTestFs(t, "https://a.test/bad", "https://a.test/panic", "https://a.test/good")
	r := &fakeRenderer{
		fail:   map[string]error{"https://a.test/bad": &render.ProcessError{Command: "wkhtmltopdf", ExitCode: 1}},
		panics: map[string]bool{"https://a.test/panic": true},
	}

	var results []ItemResult
	sum, err := NewConverter(r, WithFs(fs)).Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"},
		func(ev Event) {
			if ev.Result != nil {
				results = append(results, *ev.Result)
			}
		})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if sum.State != StateCompleted {
		t.Errorf("state = %v, want completed", sum.State)
	}
	checkTally(t, sum, 3, 1, 0, 2)
	if got := sum.String(); got != "1/3 completed" {
		t.Errorf("summary = %q", got)
	}

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Status != StatusFailed || ErrorType(results[0].Err) != ErrorProcess {
		t.Errorf("results[0] = %v %v", results[0].Status, results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrRendererPanic) {
		t.Errorf("results[1].Err = %v, want ErrRendererPanic", results[1].Err)
	}
	if results[2].Status != StatusSucceeded {
		t.Errorf("results[2] = %v", results[2].Status)
	}
	if exists(fs, "/out/bad.pdf") {
		t.Error("failed item left a file behind")
	}
}

func TestConvert_OutputMissing(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x")
	var failed error
	sum, err := NewConverter(&fakeRenderer{empty: true}, WithFs(fs)).
		Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, func(ev Event) {
			if ev.Kind == EventItemFailed {
				failed = ev.Result.Err
			}
		})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	checkTally(t, sum, 1, 0, 0, 1)
	if !errors.Is(failed, ErrOutputMissing) {
		t.Errorf("item error = %v, want ErrOutputMissing", failed)
	}
}

func TestConvert_CollisionSuffix(t *testing.T) {
	fs := newTestFs(t, "https://one.test/a/page.html", "https://two.test/b/page.html", "https://three.test/page")

	var paths []string
	sum, err := NewConverter(&fakeRenderer{}, WithFs(fs)).Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"},
		func(ev Event) {
			if ev.Kind == EventItemSucceeded {
				paths = append(paths, ev.Item.Path)
			}
		})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	checkTally(t, sum, 3, 3, 0, 0)
	want := []string{"/out/page.pdf", "/out/page_2.pdf", "/out/page_3.pdf"}
	if !slices.Equal(paths, want) {
		t.Errorf("paths = %q, want %q", paths, want)
	}
	if got := readFile(t, fs, "/out/page_2.pdf"); got != "%PDF-1.4 https://two.test/b/page.html" {
		t.Errorf("page_2.pdf = %q", got)
	}
}

func TestConvert_CollisionSkip(t *testing.T) {
	fs := newTestFs(t, "https://one.test/a/page.html", "https://two.test/b/page.html")
	r := &fakeRenderer{}

	sum, err := NewConverter(r, WithFs(fs), WithCollisionPolicy(CollisionSkip)).
		Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got := r.Calls(); !slices.Equal(got, []string{"https://one.test/a/page.html"}) {
		t.Errorf("rendered %q", got)
	}
	checkTally(t, sum, 2, 1, 1, 0)
}

func TestPlanner_SuffixStaysWithinMax(t *testing.T) {
	p := newPlanner(CollisionSuffix, 5)
	for _, want := range []string{"abcde", "abc_2", "abc_3"} {
		if got := p.claim("abcde"); got != want {
			t.Errorf("claim(abcde) = %q, want %q", got, want)
		}
	}
	if got := p.claim("x"); got != "x" {
		t.Errorf("claim(x) = %q", got)
	}
}

func TestConvert_CourseMode(t *testing.T) {
	r := &fakeRenderer{}
	fs := afero.NewMemMapFs()
	sum, err := NewConverter(r, WithFs(fs)).Convert(context.Background(), Request{
		Identifiers: []string{"ABC123", "  ", "Z9"},
		OutputDir:   "/out",
		Mode:        ModeCourses,
		Year:        2024,
		BaseURL:     "https://mirror.test/slResult",
	}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if sum.Total != 2 {
		t.Errorf("Total = %d, want 2", sum.Total)
	}
	want := []string{
		"https://mirror.test/slResult/2024/japanese/syllabusHtml/SyllabusHtml.2024.ABC123.html",
		"https://mirror.test/slResult/2024/japanese/syllabusHtml/SyllabusHtml.2024.Z9.html",
	}
	if got := r.Calls(); !slices.Equal(got, want) {
		t.Errorf("rendered %q, want %q", got, want)
	}
	if !exists(fs, "/out/ABC123.pdf") {
		t.Error("ABC123.pdf not written")
	}
}

func TestConvert_HTMLExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := NewConverter(&fakeRenderer{ext: ".html"}, WithFs(fs)).
		Convert(context.Background(), Request{Identifiers: []string{"https://a.test/x.html"}, OutputDir: "/out"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !exists(fs, "/out/x.html") {
		t.Error("x.html not written")
	}
}

func TestConvert_Empty(t *testing.T) {
	fs := newTestFs(t, "", "  ")
	var evs []Event
	sum, err := NewConverter(&fakeRenderer{}, WithFs(fs)).
		Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, func(ev Event) { evs = append(evs, ev) })
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if sum.State != StateCompleted || sum.String() != "0/0 completed" {
		t.Errorf("summary = %v %q", sum.State, sum.String())
	}
	checkKinds(t, evs, EventRunCompleted)
}

func TestRun_Stop(t *testing.T) {
	fs := newTestFs(t, "https://a.test/1", "https://a.test/2", "https://a.test/3")
	started := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	r := &fakeRenderer{before: func(ctx context.Context, url string) error {
		once.Do(func() { close(started) })
		<-gate
		return nil
	}}

	run, err := NewConverter(r, WithFs(fs)).Start(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-started
	run.Stop()
	run.Stop()
	close(gate)

	sum, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	evs := drain(run)

	if sum.State != StateStopped || run.State() != StateStopped {
		t.Errorf("state = %v / %v, want stopped", sum.State, run.State())
	}
	checkTally(t, sum, 3, 1, 0, 0)
	if sum.Processed() != 1 {
		t.Errorf("Processed = %d, want 1", sum.Processed())
	}
	if got := r.Calls(); !slices.Equal(got, []string{"https://a.test/1"}) {
		t.Errorf("rendered %q after stop", got)
	}
	checkKinds(t, evs, EventItemStarted, EventItemSucceeded, EventRunStopped)
}

func TestRun_ContextCancel(t *testing.T) {
	fs := newTestFs(t, "https://a.test/1", "https://a.test/2")
	started := make(chan struct{})
	var once sync.Once
	r := &fakeRenderer{before: func(ctx context.Context, url string) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	run, err := NewConverter(r, WithFs(fs)).Start(ctx, Request{InputPath: "/in.txt", OutputDir: "/out"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-started
	cancel()
	evs := drain(run)
	sum, err := run.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if sum.State != StateStopped {
		t.Errorf("state = %v, want stopped", sum.State)
	}
	if sum.Failed != 1 || len(r.Calls()) != 1 {
		t.Errorf("failed = %d, calls = %q", sum.Failed, r.Calls())
	}
	if len(evs) != 3 {
		t.Fatalf("got %d events %v, want 3", len(evs), kinds(evs))
	}
	if !errors.Is(evs[1].Result.Err, context.Canceled) {
		t.Errorf("item error = %v, want context.Canceled", evs[1].Result.Err)
	}
	if evs[2].Kind != EventRunStopped {
		t.Errorf("last event = %v, want run stopped", evs[2].Kind)
	}
}

type failOpenFs struct{ afero.Fs }

func (f failOpenFs) Open(name string) (afero.File, error) {
	return nil, os.ErrPermission
}

func TestRun_Fatal(t *testing.T) {
	tests := []struct {
		name string
		fs   afero.Fs
		op   string
	}{
		{"output dir", afero.NewReadOnlyFs(newTestFs(t, "https://a.test/x")), "create output directory"},
		{"input", failOpenFs{newTestFs(t, "https://a.test/x")}, "read input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{}
			run, err := NewConverter(r, WithFs(tt.fs)).Start(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"})
			if err != nil {
				t.Fatalf("Start: %v", err)
			}

			evs := drain(run)
			_, err = run.Wait()

			var ferr *FatalError
			if !errors.As(err, &ferr) {
				t.Fatalf("Wait error = %v, want *FatalError", err)
			}
			if ferr.Op != tt.op {
				t.Errorf("Op = %q, want %q", ferr.Op, tt.op)
			}
			if run.State() != StateFatal {
				t.Errorf("state = %v, want fatal", run.State())
			}
			checkKinds(t, evs, EventRunFailed)
			if calls := r.Calls(); len(calls) != 0 {
				t.Errorf("rendered %q after a fatal error", calls)
			}
		})
	}
}

func TestConvert_Metrics(t *testing.T) {
	fs := newTestFs(t, "https://a.test/x", "https://a.test/y", "https://a.test/z")
	writeFile(t, fs, "/out/z.pdf", "old")
	m := NewMetrics()
	r := &fakeRenderer{fail: map[string]error{"https://a.test/y": errors.New("nope")}}

	_, err := NewConverter(r, WithFs(fs), WithMetrics(m)).
		Convert(context.Background(), Request{InputPath: "/in.txt", OutputDir: "/out"}, nil)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"succeeded", testutil.ToFloat64(m.ItemsTotal.WithLabelValues("succeeded")), 1},
		{"failed", testutil.ToFloat64(m.ItemsTotal.WithLabelValues("failed")), 1},
		{"skipped", testutil.ToFloat64(m.ItemsTotal.WithLabelValues("skipped")), 1},
		{"errors", testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("other")), 1},
		{"runs", testutil.ToFloat64(m.RunsTotal.WithLabelValues("completed")), 1},
		{"renderer", testutil.ToFloat64(m.RendererActive.WithLabelValues("html")), 1},
		{"bytes", testutil.ToFloat64(m.BytesWritten), float64(len("%PDF-1.4 https://a.test/x"))},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestEvent_String(t *testing.T) {
	it := Item{Index: 2, Identifier: "https://a.test/x", Path: "/out/x.pdf"}
	sum := Summary{Total: 3, Succeeded: 1, Skipped: 1, Failed: 1}

	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: EventItemStarted, Total: 3, Item: it}, "[2/3] https://a.test/x -> x.pdf"},
		{Event{Kind: EventItemSucceeded, Total: 3, Item: it, Result: &ItemResult{Item: it, Status: StatusSucceeded}},
			"[2/3] https://a.test/x -> x.pdf ✓"},
		{Event{Kind: EventItemFailed, Total: 3, Item: it, Result: &ItemResult{Item: it, Status: StatusFailed, Err: errors.New("nope")}},
			"[2/3] https://a.test/x -> x.pdf ✗ nope"},
		{Event{Kind: EventRunStopped, Summary: &sum}, "2/3 completed"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("%v: String() = %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
}

func TestParseCollisionPolicy(t *testing.T) {
	for in, want := range map[string]CollisionPolicy{"": CollisionSuffix, "suffix": CollisionSuffix, "skip": CollisionSkip} {
		got, err := ParseCollisionPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseCollisionPolicy(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseCollisionPolicy("overwrite"); err == nil {
		t.Error("ParseCollisionPolicy accepted overwrite")
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{render.ErrEmptyOutput, ErrorEmptyOutput},
		{ErrOutputMissing, ErrorOutputMissing},
		{context.Canceled, "canceled"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
