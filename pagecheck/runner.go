// Package pagecheck runs browser verification scenarios against a local
// single-page HTML application. A Runner loads the entry file by file://
// URL in Chrome, executes each scenario in its own browser context, writes
// screenshots as evidence and reports results to sinks.
//
// Scenario failures are reported in the returned Report, not as errors.
// Run returns an error only when nothing could be attempted: unknown
// scenario names, or a browser that will not start.
package pagecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/pagecheck/idgen"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/artifact"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/browser"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/executor"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/preflight"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/sink"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Launcher starts a browser and opens one page per scenario.
type Launcher = driver.Launcher

// SessionOptions describes the page a scenario needs.
type SessionOptions = driver.SessionOptions

// Runner executes scenarios. Runs are serialised: one browser per run.
type Runner struct {
	cfg         *Config
	logger      *slog.Logger
	newLauncher func() Launcher
	exec        *executor.Executor
	sinks       *sink.Router
	metrics     *Metrics
	newID       idgen.Generator
	mu          sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithLauncher replaces the Chrome launcher. The same launcher is started
// and closed once per run.
func WithLauncher(l Launcher) Option {
	return func(r *Runner) { r.newLauncher = func() Launcher { return l } }
}

// WithMetrics records runs in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithIDGenerator sets the run ID generator. Default: idgen.Default.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Runner) { r.newID = gen }
}

// WithSinks adds output sinks.
func WithSinks(sinks ...Sink) Option {
	return func(r *Runner) {
		for _, s := range sinks {
			r.sinks.Add(s)
		}
	}
}

// New creates a Runner. cfg is completed with defaults in place; without
// scenarios it runs the dream journal catalog.
func New(cfg *Config, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	if len(cfg.Scenarios) == 0 {
		cfg.Scenarios = DreamJournalScenarios()
	}

	r := &Runner{
		cfg:    cfg,
		logger: logger,
		sinks:  sink.NewRouter(logger),
		newID:  idgen.Default,
	}
	r.newLauncher = func() Launcher {
		return browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.Remote,
			Bin:              cfg.Browser.Bin,
			Headful:          cfg.Browser.Headful,
			XvfbDisplay:      cfg.Browser.XvfbDisplay,
			Stealth:          cfg.Browser.Stealth,
			NoSandbox:        cfg.Browser.NoSandbox,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			Width:            cfg.Browser.Viewport.Width,
			Height:           cfg.Browser.Viewport.Height,
			Logger:           logger,
		})
	}
	for _, o := range opts {
		o(r)
	}
	r.exec = executor.New(executor.Config{
		DefaultTimeout:  cfg.DefaultTimeout,
		PollInterval:    cfg.PollInterval,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		ExcerptLimit:    cfg.ExcerptLimit,
		Artifacts:       &artifact.Writer{Base: cfg.ArtifactsDir},
		Logger:          logger,
	})
	return r
}

// Scenarios returns the configured scenarios.
func (r *Runner) Scenarios() []scenario.Scenario {
	return r.cfg.Scenarios
}

// Close releases the sinks.
func (r *Runner) Close() error {
	return r.sinks.Close()
}

// Run executes every configured scenario.
func (r *Runner) Run(ctx context.Context) (*scenario.Report, error) {
	return r.RunScenarios(ctx, nil)
}

// RunScenarios executes the named scenarios in the given order; no names
// means all of them. A name may appear once.
func (r *Runner) RunScenarios(ctx context.Context, names []string) (*scenario.Report, error) {
	selected, err := r.selectScenarios(names)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rep := &scenario.Report{
		RunID:     r.newID(),
		StartedAt: time.Now().UTC(),
	}
	rep.EntryURL, _ = ResolveEntry(r.cfg.Entry)
	log := r.logger.With("run_id", rep.RunID)
	log.Info("runner: starting", "entry", r.cfg.Entry, "scenarios", len(selected))

	r.preflight(selected, log)

	launcher := r.newLauncher()
	if err := launcher.Start(ctx); err != nil {
		launcher.Close()
		reason := fmt.Sprintf("browser: %v", err)
		for _, sc := range selected {
			r.record(ctx, rep, skipped(&sc, rep.RunID, reason))
		}
		rep.Aborted = reason
		r.finish(ctx, rep, log)
		return rep, fmt.Errorf("pagecheck: start browser: %w", err)
	}
	defer func() {
		if err := launcher.Close(); err != nil {
			log.Warn("runner: close browser", "error", err)
		}
	}()

	for i := range selected {
		sc := &selected[i]
		if rep.Aborted == "" && ctx.Err() != nil {
			rep.Aborted = fmt.Sprintf("cancelled: %v", ctx.Err())
		}
		if rep.Aborted != "" {
			r.record(ctx, rep, skipped(sc, rep.RunID, rep.Aborted))
			continue
		}

		res := r.runScenario(ctx, launcher, sc, log)
		res.RunID = rep.RunID
		r.record(ctx, rep, res)

		switch {
		case errors.Is(res.Err, scenario.ErrNavigation):
			rep.Aborted = res.Error
		case !res.OK() && r.cfg.StopOnFailure:
			rep.Aborted = fmt.Sprintf("stop_on_failure: %s failed", sc.Name)
		}
	}

	r.finish(ctx, rep, log)
	return rep, nil
}

func (r *Runner) selectScenarios(names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return append([]scenario.Scenario(nil), r.cfg.Scenarios...), nil
	}
	out := make([]scenario.Scenario, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		sc, ok := FindScenario(r.cfg.Scenarios, name)
		if !ok {
			return nil, fmt.Errorf("pagecheck: unknown scenario %q", name)
		}
		// Results are keyed by scenario name within a run.
		if seen[name] {
			return nil, fmt.Errorf("pagecheck: scenario %q requested twice", name)
		}
		seen[name] = true
		out = append(out, sc)
	}
	return out, nil
}

// runScenario owns the page of one scenario and closes it on every path.
func (r *Runner) runScenario(ctx context.Context, l Launcher, sc *scenario.Scenario, log *slog.Logger) (res scenario.Result) {
	entry := sc.Entry
	if entry == "" {
		entry = r.cfg.Entry
	}
	entryURL, err := ResolveEntry(entry)
	if err != nil {
		return failed(sc, entry, scenario.ActionNavigate, fmt.Errorf("%w: %v", scenario.ErrNavigation, err))
	}

	var (
		mu      sync.Mutex
		console []scenario.ConsoleMessage
	)
	page, err := l.Open(ctx, SessionOptions{
		Isolated:    sc.IsIsolated(),
		Storage:     sc.Storage,
		InitScripts: sc.InitScripts,
		Watch:       sc.Watch,
		OnConsole: func(m scenario.ConsoleMessage) {
			log.Info("browser: console", "scenario", sc.Name, "level", m.Level, "text", m.Text)
			mu.Lock()
			console = append(console, m)
			mu.Unlock()
		},
	})
	if err != nil {
		return failed(sc, entryURL, "", fmt.Errorf("pagecheck: open page: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("runner: panic", "scenario", sc.Name, "panic", p)
			res = failed(sc, entryURL, "", fmt.Errorf("%w: %v", scenario.ErrPanic, p))
		}
		if err := page.Close(); err != nil {
			log.Warn("runner: close page", "scenario", sc.Name, "error", err)
		}
		mu.Lock()
		res.Console = console
		mu.Unlock()
	}()

	return r.exec.Run(ctx, page, sc, entryURL)
}

func (r *Runner) record(ctx context.Context, rep *scenario.Report, res scenario.Result) {
	rep.Results = append(rep.Results, res)
	r.metrics.observeResult(&res)

	log := r.logger.With("run_id", rep.RunID, "scenario", res.Scenario)
	switch res.Status {
	case scenario.StatusPassed:
		log.Info("runner: scenario passed", "duration", res.Duration, "artifacts", res.Artifacts)
	case scenario.StatusFailed:
		log.Error("runner: scenario failed", "step", res.FailedStep,
			"selector", res.Selector, "elapsed", res.Elapsed, "error", res.Error)
	default:
		log.Warn("runner: scenario skipped", "reason", res.Error)
	}

	if err := r.sinks.SendResult(ctx, res); err != nil {
		log.Warn("runner: deliver result", "error", err)
	}
}

func (r *Runner) finish(ctx context.Context, rep *scenario.Report, log *slog.Logger) {
	rep.FinishedAt = time.Now().UTC()
	r.metrics.observeReport(rep)
	// A cancelled run still reports its skipped scenarios.
	if err := r.sinks.SendReport(context.WithoutCancel(ctx), *rep); err != nil {
		log.Warn("runner: deliver report", "error", err)
	}
	log.Info("runner: finished", "passed", rep.Passed(), "failed", rep.Failed(),
		"skipped", rep.Skipped(), "aborted", rep.Aborted,
		"duration", rep.FinishedAt.Sub(rep.StartedAt))
}

// preflight reads each local entry file once and warns about selectors
// its static markup lacks.
func (r *Runner) preflight(scs []scenario.Scenario, log *slog.Logger) {
	byEntry := map[string][]scenario.Scenario{}
	var order []string
	for _, sc := range scs {
		entry := sc.Entry
		if entry == "" {
			entry = r.cfg.Entry
		}
		if _, ok := byEntry[entry]; !ok {
			order = append(order, entry)
		}
		byEntry[entry] = append(byEntry[entry], sc)
	}

	for _, entry := range order {
		if isURL(entry) {
			continue
		}
		f, err := os.Open(entry)
		if err != nil {
			log.Warn("preflight: entry unreadable", "entry", entry, "error", err)
			continue
		}
		rep, err := preflight.Check(f, preflight.Selectors(byEntry[entry]))
		f.Close()
		if err != nil {
			log.Warn("preflight: parse failed", "entry", entry, "error", err)
			continue
		}
		log.Debug("preflight: entry parsed", "entry", entry, "title", rep.Title)
		for _, sel := range rep.Missing {
			log.Warn("preflight: selector absent from static markup", "entry", entry, "selector", sel)
		}
		for _, sel := range rep.Invalid {
			log.Warn("preflight: invalid selector", "entry", entry, "selector", sel)
		}
	}
}

// ResolveEntry turns an entry path, relative to the working directory,
// into a file:// URL. The file must exist. URLs with a scheme are
// returned unchanged.
func ResolveEntry(entry string) (string, error) {
	if isURL(entry) {
		return entry, nil
	}
	abs, err := filepath.Abs(entry)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", entry, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("entry %s: %w", abs, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("entry %s is a directory", abs)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

// skipped is the result of a scenario that never ran.
func skipped(sc *scenario.Scenario, runID, reason string) scenario.Result {
	res := scenario.Result{
		RunID:      runID,
		Scenario:   sc.Name,
		Status:     scenario.StatusSkipped,
		Error:      reason,
		FailedStep: -1,
		StartedAt:  time.Now().UTC(),
	}
	for i, st := range sc.Steps {
		res.Steps = append(res.Steps, scenario.StepResult{
			Index:  i,
			Action: st.Action,
			Target: st.Target.String(),
			Status: scenario.StatusSkipped,
		})
	}
	return res
}

// failed is the result of a scenario that broke outside the executor.
// With an action, the failure is charged to the first step; without one
// (page setup, panic) no step is blamed.
func failed(sc *scenario.Scenario, target string, action scenario.Action, err error) scenario.Result {
	res := skipped(sc, "", "")
	res.Status = scenario.StatusFailed
	res.URL = target
	if action == "" {
		res.Err = fmt.Errorf("scenario %s: %w", sc.Name, err)
		res.Error = res.Err.Error()
		return res
	}
	stepErr := &scenario.StepError{Scenario: sc.Name, Index: 0, Action: action, Err: err}
	res.Err = stepErr
	res.Error = stepErr.Error()
	res.FailedStep = 0
	if len(res.Steps) > 0 {
		res.Steps[0].Status = scenario.StatusFailed
		res.Steps[0].Error = err.Error()
	}
	return res
}
