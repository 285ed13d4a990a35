// Package analyzer runs a single analysis pass over an access-log source.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ccollicutt/logsentry/pkg/security"
	"github.com/ccollicutt/logsentry/pkg/traffic"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrSessionUsed is returned when Run is called on a session that already ran.
	ErrSessionUsed = errors.New("analysis session already used")

	// ErrSourceUnavailable indicates the source could not be read at all.
	ErrSourceUnavailable = errors.New("log source unavailable")

	// ErrSourceInterrupted indicates reading failed partway through the source.
	ErrSourceInterrupted = errors.New("log source interrupted")
)

// SourceError reports a fatal failure reading the line source.
type SourceError struct {
	// Line is the number of lines read successfully before the failure.
	Line int

	// Unavailable is true when nothing could be read from the source.
	Unavailable bool

	Err error
}

func (e *SourceError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("%v: %v", ErrSourceUnavailable, e.Err)
	}
	return fmt.Sprintf("%v after line %d: %v", ErrSourceInterrupted, e.Line, e.Err)
}

// Is matches ErrSourceUnavailable or ErrSourceInterrupted.
func (e *SourceError) Is(target error) bool {
	switch target {
	case ErrSourceUnavailable:
		return e.Unavailable
	case ErrSourceInterrupted:
		return !e.Unavailable
	}
	return false
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func newSourceError(linesRead int, err error) *SourceError {
	cancelled := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	return &SourceError{
		Line:        linesRead,
		Unavailable: linesRead == 0 && !cancelled,
		Err:         err,
	}
}

// ParseFailure records a line that could not be parsed.
type ParseFailure struct {
	// Line is the 1-based line number in the source.
	Line int `json:"line"`

	// Reason describes why parsing failed.
	Reason string `json:"reason"`
}

// Result is a read-only snapshot of a session's state.
type Result struct {
	// Traffic holds the accumulated request statistics.
	Traffic traffic.Stats

	// TopURLs holds the most requested URLs, limited by WithTopURLs.
	TopURLs []traffic.Bucket[string]

	// Incidents is the ordered incident log.
	Incidents []security.Incident

	// BruteForceClients lists clients at or above the brute force threshold.
	BruteForceClients []security.ClientFailures

	// ParseFailures lists lines that could not be parsed, in order.
	ParseFailures []ParseFailure

	// LinesRead is the number of lines read from the source.
	LinesRead int

	// State is the session state when the snapshot was taken.
	State State

	// StartTime is when the pass began.
	StartTime time.Time

	// EndTime is when the pass finished.
	EndTime time.Time
}

// HasIncidents returns true if any security incident was detected.
func (r *Result) HasIncidents() bool {
	return len(r.Incidents) > 0
}

// IncidentsOf returns the incidents of the given kind in log order.
func (r *Result) IncidentsOf(kind security.Kind) []security.Incident {
	var out []security.Incident
	for _, inc := range r.Incidents {
		if inc.Kind == kind {
			out = append(out, inc)
		}
	}
	return out
}

// Duration returns how long the pass took.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
