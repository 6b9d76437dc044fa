package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pagecheck/dbopen"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return &Store{DB: db}
}

func sampleReport(id string, started time.Time) *scenario.Report {
	return &scenario.Report{
		RunID:      id,
		EntryURL:   "file:///app/index.html",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Results: []scenario.Result{
			{
				Scenario:   "unlocked",
				Status:     scenario.StatusPassed,
				FailedStep: -1,
				StartedAt:  started,
				Duration:   time.Second,
				Artifacts:  []string{"/tmp/verification/unlocked_view.png"},
				Steps: []scenario.StepResult{
					{Index: 0, Action: scenario.ActionNavigate, Status: scenario.StatusPassed, Duration: 200 * time.Millisecond},
					{Index: 1, Action: scenario.ActionExpectVisible, Target: "#journalTab", Status: scenario.StatusPassed},
				},
				Console: []scenario.ConsoleMessage{{Level: "log", Text: "app ready", Timestamp: 1}},
			},
			{
				Scenario:   "locked",
				Status:     scenario.StatusFailed,
				Error:      "scenario locked: step 1 (expect_visible) #lockTab after 5s: timed out",
				FailedStep: 1,
				Selector:   "#lockTab",
				Elapsed:    5 * time.Second,
				StartedAt:  started.Add(time.Second),
				Excerpt:    &scenario.Excerpt{HTML: "<p>Journal</p>", Markdown: "Journal"},
				Steps: []scenario.StepResult{
					{Index: 0, Action: scenario.ActionNavigate, Status: scenario.StatusPassed},
					{Index: 1, Action: scenario.ActionExpectVisible, Target: "#lockTab", Status: scenario.StatusFailed, Error: "timed out"},
					{Index: 2, Action: scenario.ActionScreenshot, Status: scenario.StatusSkipped},
				},
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := s.SaveReport(ctx, sampleReport("run_1", started)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Passed() != 1 || got.Failed() != 1 {
		t.Errorf("counts: passed=%d failed=%d", got.Passed(), got.Failed())
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt: got %s", got.StartedAt)
	}

	unlocked := got.Results[0]
	if unlocked.Scenario != "unlocked" || len(unlocked.Steps) != 2 || len(unlocked.Console) != 1 {
		t.Errorf("unlocked: %+v", unlocked)
	}
	if len(unlocked.Artifacts) != 1 {
		t.Errorf("artifacts: %v", unlocked.Artifacts)
	}

	locked := got.Results[1]
	if locked.Selector != "#lockTab" || locked.Elapsed != 5*time.Second || locked.FailedStep != 1 {
		t.Errorf("locked failure: %+v", locked)
	}
	if locked.Steps[2].Status != scenario.StatusSkipped {
		t.Errorf("skipped step: %+v", locked.Steps[2])
	}
	if locked.Excerpt == nil || locked.Excerpt.Markdown != "Journal" {
		t.Errorf("excerpt: %+v", locked.Excerpt)
	}

	html, err := s.Excerpt(ctx, "run_1", "locked")
	if err != nil {
		t.Fatal(err)
	}
	if html != "<p>Journal</p>" {
		t.Errorf("excerpt html: %q", html)
	}
}

func TestSaveReplacesRun(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	rep := sampleReport("run_1", time.Now())

	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatal(err)
	}
	rep.Results = rep.Results[:1]
	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var n int
	if err := s.DB.QueryRow(`SELECT COUNT(*) FROM step_results WHERE run_id = 'run_1'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("step rows after replace: got %d, want 2", n)
	}
}

func TestSaveReplacesRunOnFileStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()

	// A reader holding a connection forces the writes onto another one.
	held, err := s.DB.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	rep := sampleReport("run_x", time.Now())
	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveReport(ctx, rep); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := s.GetRun(ctx, "run_x")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Results) != 2 {
		t.Errorf("results after replace: got %d, want 2", len(got.Results))
	}
}

func TestGetRunBadArtifacts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.SaveReport(ctx, sampleReport("run_1", time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DB.Exec(`UPDATE scenario_results SET artifacts = '{not json' WHERE run_id = 'run_1'`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRun(ctx, "run_1"); err == nil {
		t.Fatal("expected decode error for corrupt artifacts")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_a", "run_b", "run_c"} {
		if err := s.SaveReport(ctx, sampleReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "run_c" || runs[1].ID != "run_b" {
		t.Fatalf("runs: %+v", runs)
	}
	if runs[0].Passed != 1 || runs[0].Failed != 1 {
		t.Errorf("summary counts: %+v", runs[0])
	}
}

func TestNotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun: got %v", err)
	}
	if _, err := s.Excerpt(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Excerpt: got %v", err)
	}
	if err := s.SaveReport(ctx, &scenario.Report{}); err == nil {
		t.Error("SaveReport without id should fail")
	}
}
