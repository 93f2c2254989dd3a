package urlpdf

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a [Run].
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateStopped
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFatal:
		return "fatal"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether the run has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateFatal
}

// ItemStatus is the outcome of one item.
type ItemStatus int

const (
	StatusSkipped ItemStatus = iota + 1
	StatusSucceeded
	StatusFailed
)

func (s ItemStatus) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("ItemStatus(%d)", int(s))
}

// Glyph is the status mark printed in log lines.
func (s ItemStatus) Glyph() string {
	switch s {
	case StatusSkipped:
		return "↷"
	case StatusSucceeded:
		return "✓"
	case StatusFailed:
		return "✗"
	}
	return "?"
}

// ItemResult is the outcome of one item. Exactly one is produced per item.
type ItemResult struct {
	Item
	Status   ItemStatus
	Err      error
	Bytes    int // size of the written file
	Pages    int // page count of PDF output, 0 when unknown
	Duration time.Duration
}

// Summary tallies a run.
type Summary struct {
	RunID     string
	State     State
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Started   time.Time
	Finished  time.Time
}

// Completed counts items whose output exists at the end of the run,
// rendered now or skipped because it was already there.
func (s Summary) Completed() int { return s.Succeeded + s.Skipped }

// Processed counts items that reached an outcome. It is below Total when
// the run stopped early.
func (s Summary) Processed() int { return s.Succeeded + s.Skipped + s.Failed }

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// String returns the summary line, for example "9/10 completed".
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d completed", s.Completed(), s.Total)
}

func (s *Summary) record(r ItemResult) {
	switch r.Status {
	case StatusSkipped:
		s.Skipped++
	case StatusSucceeded:
		s.Succeeded++
	case StatusFailed:
		s.Failed++
	}
}
