package scenario

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNavigation is returned when the entry point cannot be loaded.
	// It aborts the whole run.
	ErrNavigation = errors.New("navigation failed")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timed out")

	// ErrNotFound is returned when an interaction target matches nothing.
	ErrNotFound = errors.New("element not found")

	// ErrAssertion is returned when a non-waiting check fails.
	ErrAssertion = errors.New("assertion failed")

	// ErrPanic wraps a recovered panic raised during a step.
	ErrPanic = errors.New("panic during step")
)

// StepError describes the step that ended a scenario.
type StepError struct {
	Scenario string
	Index    int
	Action   Action
	Selector string
	Elapsed  time.Duration
	Err      error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("scenario %s: step %d (%s)", e.Scenario, e.Index, e.Action)
	if e.Selector != "" {
		msg += " " + e.Selector
	}
	if e.Elapsed > 0 {
		msg += fmt.Sprintf(" after %s", e.Elapsed.Round(time.Millisecond))
	}
	return msg + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }
