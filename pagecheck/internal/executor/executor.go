// Package executor runs one scenario's steps against a driver.Page,
// fail-fast: the first failing step ends the scenario and later steps
// (screenshots included) never run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/pagecheck/pagecheck/internal/artifact"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/expect"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Config tunes an Executor.
type Config struct {
	DefaultTimeout  time.Duration // bounded wait per assertion. Default: 5s.
	PollInterval    time.Duration // Default: 100ms.
	NavigateTimeout time.Duration // Default: 30s.
	ExcerptLimit    int           // Default: artifact.DefaultExcerptLimit.
	Artifacts       *artifact.Writer
	Logger          *slog.Logger
}

func (c *Config) defaults() {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 5 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = expect.DefaultInterval
	}
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.ExcerptLimit <= 0 {
		c.ExcerptLimit = artifact.DefaultExcerptLimit
	}
	if c.Artifacts == nil {
		c.Artifacts = &artifact.Writer{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Executor executes scenarios.
type Executor struct {
	cfg Config
}

// New creates an Executor.
func New(cfg Config) *Executor {
	cfg.defaults()
	return &Executor{cfg: cfg}
}

// Run executes sc on page. entryURL is used by navigate steps without a URL.
// The returned result is complete except for RunID and Console, which the
// caller owns.
func (e *Executor) Run(ctx context.Context, page driver.Page, sc *scenario.Scenario, entryURL string) scenario.Result {
	res := scenario.Result{
		Scenario:   sc.Name,
		URL:        entryURL,
		Status:     scenario.StatusPassed,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	log := e.cfg.Logger.With("scenario", sc.Name)

	for i, st := range sc.Steps {
		start := time.Now()
		artifactPath, err := e.safeStep(ctx, page, sc, st, entryURL)
		elapsed := time.Since(start)

		sr := scenario.StepResult{
			Index:    i,
			Action:   st.Action,
			Target:   st.Target.String(),
			Status:   scenario.StatusPassed,
			Duration: elapsed,
			Artifact: artifactPath,
		}
		if err != nil {
			sr.Status = scenario.StatusFailed
			sr.Error = err.Error()
			res.Steps = append(res.Steps, sr)

			stepErr := &scenario.StepError{
				Scenario: sc.Name,
				Index:    i,
				Action:   st.Action,
				Selector: st.Target.String(),
				Err:      err,
			}
			if errors.Is(err, scenario.ErrTimeout) || errors.Is(err, scenario.ErrNotFound) {
				stepErr.Elapsed = elapsed
			}
			res.Status = scenario.StatusFailed
			res.Err = stepErr
			res.Error = stepErr.Error()
			res.FailedStep = i
			res.Selector = stepErr.Selector
			res.Elapsed = stepErr.Elapsed
			log.Warn("executor: step failed", "step", i, "action", st.Action,
				"selector", stepErr.Selector, "elapsed", elapsed, "error", err)

			if !errors.Is(err, scenario.ErrNavigation) {
				res.Excerpt = e.excerpt(ctx, page, log)
			}
			// Remaining steps are recorded as skipped.
			for j := i + 1; j < len(sc.Steps); j++ {
				res.Steps = append(res.Steps, scenario.StepResult{
					Index:  j,
					Action: sc.Steps[j].Action,
					Target: sc.Steps[j].Target.String(),
					Status: scenario.StatusSkipped,
				})
			}
			break
		}

		res.Steps = append(res.Steps, sr)
		if artifactPath != "" {
			res.Artifacts = append(res.Artifacts, artifactPath)
		}
		log.Debug("executor: step passed", "step", i, "desc", st.Describe(), "elapsed", elapsed)
	}

	res.Duration = time.Since(res.StartedAt)
	return res
}

// safeStep runs one step and converts a panic into ErrPanic.
func (e *Executor) safeStep(ctx context.Context, page driver.Page, sc *scenario.Scenario, st scenario.Step, entryURL string) (path string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", scenario.ErrPanic, p)
		}
	}()
	return e.step(ctx, page, sc, st, entryURL)
}

func (e *Executor) step(ctx context.Context, page driver.Page, sc *scenario.Scenario, st scenario.Step, entryURL string) (string, error) {
	timeout := st.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	poll := e.cfg.PollInterval

	switch st.Action {
	case scenario.ActionNavigate:
		url := st.URL
		if url == "" {
			url = entryURL
		}
		navTimeout := e.cfg.NavigateTimeout
		if st.Timeout > 0 {
			navTimeout = st.Timeout
		}
		nctx, cancel := context.WithTimeout(ctx, navTimeout)
		defer cancel()
		if err := page.Navigate(nctx, url); err != nil {
			return "", fmt.Errorf("%w: %s: %v", scenario.ErrNavigation, url, err)
		}
		return "", nil

	case scenario.ActionExpectVisible:
		return "", expect.Visible(ctx, page, st.Target, timeout, poll)

	case scenario.ActionExpectHidden:
		return "", expect.Hidden(ctx, page, st.Target, timeout, poll)

	case scenario.ActionExpectCount:
		return "", expect.Count(ctx, page, st.Target, st.Count, timeout, poll)

	case scenario.ActionExpectNeverVisible:
		shown, err := page.EverShown(ctx, st.Target.CSS)
		if err != nil {
			return "", fmt.Errorf("executor: read watch: %w", err)
		}
		if shown {
			return "", fmt.Errorf("%w: %s was rendered visible", scenario.ErrAssertion, st.Target.CSS)
		}
		return "", nil

	case scenario.ActionFill:
		el, err := expect.First(ctx, page, st.Target, timeout, poll)
		if err != nil {
			return "", err
		}
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := el.Fill(sctx, st.Value); err != nil {
			return "", fmt.Errorf("executor: fill: %w", err)
		}
		return "", nil

	case scenario.ActionClick:
		el, err := expect.First(ctx, page, st.Target, timeout, poll)
		if err != nil {
			return "", err
		}
		return "", e.click(ctx, el, st, timeout)

	case scenario.ActionScreenshot:
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var data []byte
		if st.Target == nil {
			data, err := page.Screenshot(sctx, st.FullPage)
			if err != nil {
				return "", fmt.Errorf("executor: page screenshot: %w", err)
			}
			return e.cfg.Artifacts.Write(st.Path, data)
		}
		el, err := expect.First(ctx, page, st.Target, timeout, poll)
		if err != nil {
			return "", err
		}
		data, err = el.Screenshot(sctx)
		if err != nil {
			return "", fmt.Errorf("executor: element screenshot: %w", err)
		}
		return e.cfg.Artifacts.Write(st.Path, data)
	}
	return "", fmt.Errorf("executor: unknown action %q in %s", st.Action, sc.Name)
}

func (e *Executor) click(ctx context.Context, el driver.Element, st scenario.Step, timeout time.Duration) error {
	event := st.Event
	if event == "" {
		event = "click"
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch st.Click {
	case scenario.ClickDispatch:
		if err := el.Dispatch(cctx, event); err != nil {
			return fmt.Errorf("executor: dispatch %s: %w", event, err)
		}
		return nil
	case scenario.ClickAuto:
		if err := el.Click(cctx); err != nil {
			e.cfg.Logger.Info("executor: pointer click failed, dispatching event",
				"selector", st.Target.String(), "error", err)
			if err := el.Dispatch(ctx, event); err != nil {
				return fmt.Errorf("executor: dispatch %s: %w", event, err)
			}
		}
		return nil
	default:
		if err := el.Click(cctx); err != nil {
			return fmt.Errorf("executor: click: %w", err)
		}
		return nil
	}
}

func (e *Executor) excerpt(ctx context.Context, page driver.Page, log *slog.Logger) *scenario.Excerpt {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	raw, err := page.HTML(hctx)
	if err != nil || raw == "" {
		if err != nil {
			log.Debug("executor: excerpt unavailable", "error", err)
		}
		return nil
	}
	return artifact.NewExcerpt(raw, e.cfg.ExcerptLimit)
}
