package pagecheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/pagecheck/idgen"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver"
	"github.com/hazyhaar/pagecheck/pagecheck/internal/driver/drivertest"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// Static renditions of the dream journal: the fake driver runs no page
// scripts, so the locked state is served as its own document.
const (
	journalHTML = `<!doctype html><html><head><title>Dream Journal</title></head><body>
<nav><button id="journalTab">Journal</button><button id="lockTab" hidden>Lock</button></nav>
<input id="dreamTitle"><textarea id="dreamContent"></textarea>
<button id="save">Save Dream</button>
<div id="entries"></div>
</body></html>`

	lockedHTML = `<!doctype html><html><head><title>Dream Journal</title></head><body>
<nav><button id="journalTab" style="display: none">Journal</button><button id="lockTab">Lock</button></nav>
</body></html>`
)

type fixture struct {
	cfg      *Config
	launcher *drivertest.Launcher
	dir      string
	entryURL string

	// flash makes the journal tab show up in the locked state's watch list.
	flash bool

	mu      sync.Mutex
	results []scenario.Result
	reports []scenario.Report
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	entry := filepath.Join(dir, "index.html")
	if err := os.WriteFile(entry, []byte(journalHTML), 0o644); err != nil {
		t.Fatal(err)
	}
	entryURL, err := ResolveEntry(entry)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{dir: dir, entryURL: entryURL}
	f.cfg = &Config{
		Entry:          entry,
		ArtifactsDir:   dir,
		DefaultTimeout: 300 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	}
	f.launcher = &drivertest.Launcher{NewPage: f.newPage}
	return f
}

func (f *fixture) newPage(opts driver.SessionOptions) (*drivertest.Page, error) {
	src := journalHTML
	for _, item := range opts.Storage {
		if item.Key == PinHashKey {
			src = lockedHTML
		}
	}
	p := drivertest.NewPage(map[string]string{f.entryURL: src})
	p.On("#save", "click", func(doc *goquery.Document, _ *goquery.Selection) {
		title, _ := doc.Find("#dreamTitle").Attr("value")
		doc.Find("#entries").AppendHtml(`<div class="entry"><h3>` + title + `</h3><button class="edit">Edit</button></div>`)
	})
	p.On(".entry .edit", "click", func(_ *goquery.Document, target *goquery.Selection) {
		target.Closest(".entry").AppendHtml(`<textarea></textarea>`)
	})
	if f.flash && src == lockedHTML {
		p.MarkShown("#journalTab")
	}
	return p, nil
}

func (f *fixture) runner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	cb := NewCallbackSink(
		func(_ context.Context, res scenario.Result) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.results = append(f.results, res)
			return nil
		},
		func(_ context.Context, rep scenario.Report) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.reports = append(f.reports, rep)
			return nil
		},
	)
	opts = append([]Option{
		WithLauncher(f.launcher),
		WithSinks(cb),
		WithIDGenerator(idgen.Sequence("run")),
	}, opts...)
	r := New(f.cfg, nil, opts...)
	t.Cleanup(func() { r.Close() })
	return r
}

func (f *fixture) shot(name string) string {
	return filepath.Join(f.dir, "verification", name)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRunDreamJournal(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	r := f.runner(t, WithMetrics(NewMetrics(reg)))

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.OK() {
		t.Fatalf("report not ok: %+v", rep.FirstFailure())
	}
	if rep.RunID != "run-1" {
		t.Errorf("RunID = %q", rep.RunID)
	}
	if rep.EntryURL != f.entryURL {
		t.Errorf("EntryURL = %q, want %q", rep.EntryURL, f.entryURL)
	}
	if len(rep.Results) != 3 {
		t.Fatalf("results: got %d, want 3", len(rep.Results))
	}
	for _, name := range []string{"unlocked_view.png", "locked_view.png", "verification.png"} {
		if !exists(f.shot(name)) {
			t.Errorf("screenshot %s not written", name)
		}
	}

	if !f.launcher.Started || !f.launcher.Closed {
		t.Errorf("launcher started=%v closed=%v", f.launcher.Started, f.launcher.Closed)
	}
	for i, p := range f.launcher.Pages {
		if !p.Closed {
			t.Errorf("page %d left open", i)
		}
	}
	for i, s := range f.launcher.Sessions {
		if !s.Isolated {
			t.Errorf("session %d not isolated", i)
		}
	}
	locked := f.launcher.Sessions[1]
	if len(locked.Storage) != 1 || locked.Storage[0].Value != `"somehash"` {
		t.Errorf("locked storage = %+v", locked.Storage)
	}
	if len(locked.Watch) != 1 || locked.Watch[0] != "#journalTab" {
		t.Errorf("locked watch = %v", locked.Watch)
	}

	console := rep.Results[1].Console
	if len(console) != 1 || !strings.Contains(console[0].Text, PinHashKey) {
		t.Errorf("console of locked scenario = %+v", console)
	}
	for _, res := range rep.Results {
		if res.RunID != "run-1" {
			t.Errorf("%s: RunID = %q", res.Scenario, res.RunID)
		}
	}

	if len(f.results) != 3 || len(f.reports) != 1 {
		t.Errorf("sinks got %d results, %d reports", len(f.results), len(f.reports))
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var scenarios float64
	for _, mf := range mfs {
		if mf.GetName() == "pagecheck_scenarios_total" {
			for _, m := range mf.GetMetric() {
				scenarios += m.GetCounter().GetValue()
			}
		}
	}
	if scenarios != 3 {
		t.Errorf("pagecheck_scenarios_total = %v, want 3", scenarios)
	}
}

func TestRunFlashIsIsolatedFailure(t *testing.T) {
	f := newFixture(t)
	f.flash = true
	r := f.runner(t)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.OK() {
		t.Fatal("flash should fail the locked scenario")
	}
	got := []scenario.Status{rep.Results[0].Status, rep.Results[1].Status, rep.Results[2].Status}
	want := []scenario.Status{scenario.StatusPassed, scenario.StatusFailed, scenario.StatusPassed}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}

	res := rep.Results[1]
	if !errors.Is(res.Err, scenario.ErrAssertion) {
		t.Errorf("locked error = %v, want ErrAssertion", res.Err)
	}
	if res.Selector != "#journalTab" {
		t.Errorf("Selector = %q", res.Selector)
	}
	if exists(f.shot("locked_view.png")) {
		t.Error("locked screenshot written despite failure")
	}
	if !exists(f.shot("verification.png")) {
		t.Error("inline_edit should still run")
	}
	if !f.launcher.Closed {
		t.Error("browser not closed after failure")
	}
}

func TestRunStopOnFailure(t *testing.T) {
	f := newFixture(t)
	f.flash = true
	f.cfg.StopOnFailure = true
	r := f.runner(t)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Results[2].Status != scenario.StatusSkipped {
		t.Fatalf("inline_edit status = %s, want skipped", rep.Results[2].Status)
	}
	if !strings.Contains(rep.Aborted, "stop_on_failure") {
		t.Errorf("Aborted = %q", rep.Aborted)
	}
	if len(f.launcher.Pages) != 2 {
		t.Errorf("pages opened = %d, want 2", len(f.launcher.Pages))
	}
}

func TestRunMissingEntryAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.cfg.Entry = filepath.Join(f.dir, "missing.html")
	r := f.runner(t)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	first := rep.Results[0]
	if first.Status != scenario.StatusFailed || !errors.Is(first.Err, scenario.ErrNavigation) {
		t.Fatalf("first result = %s / %v", first.Status, first.Err)
	}
	for _, res := range rep.Results[1:] {
		if res.Status != scenario.StatusSkipped {
			t.Errorf("%s: status %s, want skipped", res.Scenario, res.Status)
		}
	}
	if rep.Aborted == "" {
		t.Error("Aborted should name the navigation failure")
	}
	if len(f.launcher.Pages) != 0 {
		t.Errorf("pages opened = %d, want 0", len(f.launcher.Pages))
	}
	if !f.launcher.Closed {
		t.Error("browser not closed")
	}
	if len(f.reports) != 1 {
		t.Errorf("reports delivered = %d", len(f.reports))
	}
}

func TestRunNavigationErrorAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.launcher.NewPage = func(opts driver.SessionOptions) (*drivertest.Page, error) {
		p, _ := f.newPage(opts)
		p.NavErr = errors.New("net::ERR_ABORTED")
		return p, nil
	}
	r := f.runner(t)

	rep, err := r.RunScenarios(context.Background(), []string{ScenarioInlineEdit, ScenarioUnlocked})
	if err != nil {
		t.Fatalf("RunScenarios: %v", err)
	}
	if rep.Results[0].Scenario != ScenarioInlineEdit || !errors.Is(rep.Results[0].Err, scenario.ErrNavigation) {
		t.Fatalf("first result = %s / %v", rep.Results[0].Scenario, rep.Results[0].Err)
	}
	if rep.Results[1].Status != scenario.StatusSkipped {
		t.Errorf("second status = %s", rep.Results[1].Status)
	}
	if !f.launcher.Pages[0].Closed {
		t.Error("page not closed after navigation failure")
	}
}

func TestRunScenariosUnknown(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t)

	if _, err := r.RunScenarios(context.Background(), []string{"nope"}); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
	if f.launcher.Started {
		t.Error("browser started for an invalid request")
	}
}

func TestRunScenariosDuplicate(t *testing.T) {
	f := newFixture(t)
	st := testStore(t)
	r := f.runner(t, WithSinks(NewStoreSink(st)))

	_, err := r.RunScenarios(context.Background(), []string{ScenarioLocked, " locked"})
	if err == nil || !strings.Contains(err.Error(), "twice") {
		t.Fatalf("err = %v, want duplicate error", err)
	}
	if f.launcher.Started {
		t.Error("browser started for a duplicate request")
	}

	rep, err := r.RunScenarios(context.Background(), []string{ScenarioLocked, ScenarioUnlocked})
	if err != nil {
		t.Fatal(err)
	}
	runs, err := st.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != rep.RunID || runs[0].Passed != 2 {
		t.Errorf("history = %+v", runs)
	}
}

func TestRunBrowserStartFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.StartErr = errors.New("chrome not found")
	r := f.runner(t)

	rep, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if rep == nil || rep.Skipped() != 3 {
		t.Fatalf("report = %+v", rep)
	}
	if !f.launcher.Closed {
		t.Error("launcher not closed after failed start")
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Skipped() != 3 || !strings.HasPrefix(rep.Aborted, "cancelled") {
		t.Fatalf("skipped=%d aborted=%q", rep.Skipped(), rep.Aborted)
	}
	if len(f.reports) != 1 {
		t.Error("report not delivered for a cancelled run")
	}
}

func TestResolveEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	u, err := ResolveEntry(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/index.html") {
		t.Errorf("url = %q", u)
	}
	if _, err := ResolveEntry(dir); err == nil {
		t.Error("directory accepted as entry")
	}
	if _, err := ResolveEntry(filepath.Join(dir, "nope.html")); err == nil {
		t.Error("missing file accepted as entry")
	}
	if u, _ := ResolveEntry("http://localhost:8000/"); u != "http://localhost:8000/" {
		t.Errorf("URL not passed through: %q", u)
	}
}
