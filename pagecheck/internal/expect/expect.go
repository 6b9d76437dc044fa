// Package expect implements bounded visibility waits. Every wait is a single
// attempt: the condition is polled until it holds or the deadline passes.
package expect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/locator"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// DefaultInterval is the polling period when none is given.
const DefaultInterval = 100 * time.Millisecond

// TimeoutError reports an expired wait.
type TimeoutError struct {
	Condition string
	Elapsed   time.Duration
	Last      error // last error returned by the condition, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("expect: %s: timed out after %s", e.Condition, e.Elapsed.Round(time.Millisecond))
	if e.Last != nil {
		msg += " (last error: " + e.Last.Error() + ")"
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == scenario.ErrTimeout }

// Cond is polled until it returns true. Errors are remembered but do not
// stop the wait: elements may detach while the page re-renders.
type Cond func(ctx context.Context) (bool, error)

// Poll evaluates cond immediately and then every interval until it holds or
// timeout elapses. Parent context cancellation is returned as-is.
func Poll(ctx context.Context, timeout, interval time.Duration, desc string, cond Cond) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		ok, err := cond(wctx)
		if err == nil && ok {
			return nil
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			last = err
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Condition: desc, Elapsed: time.Since(start), Last: last}
		case <-ticker.C:
		}
	}
}

// Visible waits for the first element matched by loc to be visible.
func Visible(ctx context.Context, page driver.Scope, loc *scenario.Locator, timeout, interval time.Duration) error {
	return Poll(ctx, timeout, interval, "visible "+loc.String(), func(ctx context.Context) (bool, error) {
		els, err := locator.Resolve(ctx, page, loc)
		if err != nil || len(els) == 0 {
			return false, err
		}
		return els[0].Visible(ctx)
	})
}

// Hidden waits until loc matches nothing or its first match is not visible.
func Hidden(ctx context.Context, page driver.Scope, loc *scenario.Locator, timeout, interval time.Duration) error {
	return Poll(ctx, timeout, interval, "hidden "+loc.String(), func(ctx context.Context) (bool, error) {
		els, err := locator.Resolve(ctx, page, loc)
		if err != nil {
			return false, err
		}
		if len(els) == 0 {
			return true, nil
		}
		vis, err := els[0].Visible(ctx)
		return !vis, err
	})
}

// Count waits until exactly n elements matched by loc are visible.
func Count(ctx context.Context, page driver.Scope, loc *scenario.Locator, n int, timeout, interval time.Duration) error {
	desc := fmt.Sprintf("count(%d) %s", n, loc.String())
	return Poll(ctx, timeout, interval, desc, func(ctx context.Context) (bool, error) {
		els, err := locator.Resolve(ctx, page, loc)
		if err != nil {
			return false, err
		}
		visible := 0
		for _, el := range els {
			v, err := el.Visible(ctx)
			if err != nil {
				return false, err
			}
			if v {
				visible++
			}
		}
		return visible == n, nil
	})
}

// First waits for loc to match at least one element and returns the first.
// Interaction steps use it so a target rendered late is still reached.
func First(ctx context.Context, page driver.Scope, loc *scenario.Locator, timeout, interval time.Duration) (driver.Element, error) {
	var found driver.Element
	err := Poll(ctx, timeout, interval, "attached "+loc.String(), func(ctx context.Context) (bool, error) {
		els, err := locator.Resolve(ctx, page, loc)
		if err != nil || len(els) == 0 {
			return false, err
		}
		found = els[0]
		return true, nil
	})
	if err != nil {
		var te *TimeoutError
		if errors.As(err, &te) {
			return nil, fmt.Errorf("%w: %s", scenario.ErrNotFound, te.Error())
		}
		return nil, err
	}
	return found, nil
}
