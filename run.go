package urlpdf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/porticus-lab/go-url-pdf/internal/pdfinfo"
	"github.com/porticus-lab/go-url-pdf/render"
)

var tracer = otel.Tracer("github.com/porticus-lab/go-url-pdf")

// Run is a batch in progress. Its events must be drained until the
// channel is closed, otherwise the worker blocks once the buffer is full.
type Run struct {
	id     string
	events chan Event
	stop   chan struct{}
	done   chan struct{}
	state  atomic.Int32

	stopOnce sync.Once
	summary  Summary
	err      error
}

func newRun(id string, buffer int) *Run {
	return &Run{
		id:     id,
		events: make(chan Event, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// ID identifies the run in logs.
func (r *Run) ID() string { return r.id }

// Events returns the progress events in order. The channel is closed when
// the run ends.
func (r *Run) Events() <-chan Event { return r.events }

// Stop asks the worker to stop before the next item. The item in flight
// finishes. Stop may be called more than once.
func (r *Run) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// State returns the current state.
func (r *Run) State() State { return State(r.state.Load()) }

// Done is closed when the run has ended and its events channel is closed.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends. The error is a *FatalError when the run
// was aborted, and nil otherwise, failed items included.
func (r *Run) Wait() (Summary, error) {
	<-r.done
	return r.summary, r.err
}

func (r *Run) stopRequested() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *Run) emit(ev Event) {
	ev.Time = time.Now()
	r.events <- ev
}

func (r *Run) work(ctx context.Context, c *Converter, req Request) {
	log := c.cfg.logger.With("run_id", r.id)
	sum := Summary{RunID: r.id, State: StateRunning, Started: time.Now()}

	defer func() {
		sum.Finished = time.Now()
		r.summary = sum
		r.state.Store(int32(sum.State))
		c.cfg.metrics.IncRun(sum.State)
		close(r.events)
		close(r.done)
	}()

	fatal := func(op string, err error) {
		r.err = &FatalError{Op: op, Err: err}
		sum.State = StateFatal
		log.Error("run aborted", "op", op, "error", err)
		s := sum
		r.emit(Event{Kind: EventRunFailed, Total: sum.Total, Summary: &s, Err: r.err})
	}

	fs := c.cfg.fs
	if err := fs.MkdirAll(req.OutputDir, 0o755); err != nil {
		fatal("create output directory", err)
		return
	}
	lines := req.Identifiers
	if lines == nil {
		var err error
		if lines, err = ReadLines(fs, req.InputPath); err != nil {
			fatal("read input", err)
			return
		}
	}

	var items []Item
	if req.Mode == ModeCourses {
		items = CourseItems(lines, req.BaseURL, req.Year, c.cfg.maxName)
	} else {
		items = URLItems(lines, c.cfg.maxName)
	}
	sum.Total = len(items)
	log.Info("run started",
		"items", sum.Total,
		"renderer", string(c.renderer.Kind()),
		"output_dir", req.OutputDir,
		"mode", req.Mode.String(),
	)

	plan := newPlanner(c.cfg.collision, c.cfg.maxName)
	sum.State = StateCompleted
	for _, it := range items {
		if r.stopRequested() || ctx.Err() != nil {
			sum.State = StateStopped
			break
		}
		name := plan.claim(it.Name)
		if name != it.Name {
			log.Warn("output name collision", "name", it.Name, "renamed", name)
		}
		it.Path = filepath.Join(req.OutputDir, name+c.renderer.Ext())
		r.emit(Event{Kind: EventItemStarted, Total: sum.Total, Item: it})

		res := c.process(ctx, it, log)
		sum.record(res)
		c.cfg.metrics.ObserveItem(res)
		r.emit(Event{Kind: itemEventKind(res.Status), Total: sum.Total, Item: it, Result: &res})
	}
	// The context may be cancelled while the last item is in flight.
	if sum.State == StateCompleted && ctx.Err() != nil {
		sum.State = StateStopped
	}

	kind := EventRunCompleted
	if sum.State == StateStopped {
		kind = EventRunStopped
	}
	log.Info("run finished",
		"state", sum.State.String(),
		"succeeded", sum.Succeeded,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"total", sum.Total,
	)
	s := sum
	s.Finished = time.Now()
	r.emit(Event{Kind: kind, Total: sum.Total, Summary: &s})
}

// process converts one item. Errors and panics stay inside the result.
func (c *Converter) process(ctx context.Context, it Item, log *slog.Logger) (res ItemResult) {
	start := time.Now()
	res = ItemResult{Item: it}

	ctx, span := tracer.Start(ctx, "ConvertItem", trace.WithAttributes(
		attribute.Int("item.index", it.Index),
		attribute.String("item.url", it.URL),
		attribute.String("item.path", it.Path),
	))
	defer func() {
		res.Duration = time.Since(start)
		span.SetAttributes(attribute.String("item.status", res.Status.String()))
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			log.Warn("item failed",
				"index", it.Index,
				"url", it.URL,
				"error_type", ErrorType(res.Err),
				"error", res.Err,
			)
		} else {
			log.Debug("item done",
				"index", it.Index,
				"url", it.URL,
				"status", res.Status.String(),
				"duration", res.Duration,
			)
		}
		span.End()
	}()

	fs := c.cfg.fs
	if c.cfg.skipExisting {
		if ok, err := afero.Exists(fs, it.Path); err == nil && ok {
			res.Status = StatusSkipped
			return res
		}
	}

	out, err := c.render(ctx, it.URL)
	if err != nil {
		res.Status, res.Err = StatusFailed, err
		return res
	}
	if err := out.WriteFile(fs, it.Path, 0o644); err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("writing %s: %w", it.Path, err)
		return res
	}
	fi, err := fs.Stat(it.Path)
	if err != nil || fi.Size() == 0 {
		res.Status, res.Err = StatusFailed, ErrOutputMissing
		return res
	}

	res.Status = StatusSucceeded
	res.Bytes = int(fi.Size())
	if c.renderer.Ext() == ".pdf" {
		res.Pages = countPages(out.Bytes())
	}
	return res
}

// render calls the renderer, turning a panic into an error.
func (c *Converter) render(ctx context.Context, url string) (out *render.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRendererPanic, p)
		}
	}()
	out, err = c.renderer.Render(ctx, url)
	if err == nil && out == nil {
		err = render.ErrEmptyOutput
	}
	return out, err
}

func countPages(data []byte) int {
	doc, err := pdfinfo.Load(data)
	if err != nil {
		return 0
	}
	n, err := doc.PageCount()
	if err != nil {
		return 0
	}
	return n
}

// planner hands out output names for one run.
type planner struct {
	policy  CollisionPolicy
	max     int
	claimed map[string]bool
}

func newPlanner(p CollisionPolicy, max int) *planner {
	return &planner{policy: p, max: max, claimed: make(map[string]bool)}
}

// claim returns name, or with CollisionSuffix the first of name_2,
// name_3, ... not yet handed out. Suffixed names are cut at the front
// part so they stay within max.
func (p *planner) claim(name string) string {
	if p.policy == CollisionSkip {
		return name
	}
	candidate := name
	for n := 2; p.claimed[candidate]; n++ {
		suffix := "_" + strconv.Itoa(n)
		base := name
		if p.max > 0 && len(base)+len(suffix) > p.max {
			base = base[:max(0, p.max-len(suffix))]
		}
		candidate = base + suffix
	}
	p.claimed[candidate] = true
	return candidate
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
