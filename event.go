package urlpdf

import (
	"fmt"
	"time"
)

// EventKind identifies an [Event].
type EventKind int

const (
	EventItemStarted EventKind = iota + 1
	EventItemSkipped
	EventItemSucceeded
	EventItemFailed
	EventRunCompleted
	EventRunStopped
	EventRunFailed
)

var eventNames = map[EventKind]string{
	EventItemStarted:   "item_started",
	EventItemSkipped:   "item_skipped",
	EventItemSucceeded: "item_succeeded",
	EventItemFailed:    "item_failed",
	EventRunCompleted:  "run_completed",
	EventRunStopped:    "run_stopped",
	EventRunFailed:     "run_failed",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a progress notification from a run's worker.
//
// Item events carry Item, and all but EventItemStarted carry Result. Run
// events carry Summary. EventRunFailed also carries Err.
type Event struct {
	Kind    EventKind
	Time    time.Time
	Total   int
	Item    Item
	Result  *ItemResult
	Summary *Summary
	Err     error
}

// String formats the event as a log line, for example
// "[3/10] https://a.test/x -> x.pdf ✓".
func (e Event) String() string {
	switch e.Kind {
	case EventItemStarted:
		return fmt.Sprintf("[%d/%d] %s -> %s", e.Item.Index, e.Total, e.Item.Identifier, baseName(e.Item.Path))
	case EventItemSkipped, EventItemSucceeded, EventItemFailed:
		line := fmt.Sprintf("[%d/%d] %s -> %s %s", e.Item.Index, e.Total, e.Item.Identifier, baseName(e.Item.Path), e.Result.Status.Glyph())
		if e.Result.Err != nil {
			line += " " + e.Result.Err.Error()
		}
		return line
	case EventRunCompleted, EventRunStopped:
		return e.Summary.String()
	case EventRunFailed:
		return "run failed: " + e.Err.Error()
	}
	return e.Kind.String()
}

func itemEventKind(s ItemStatus) EventKind {
	switch s {
	case StatusSkipped:
		return EventItemSkipped
	case StatusSucceeded:
		return EventItemSucceeded
	}
	return EventItemFailed
}
