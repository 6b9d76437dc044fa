package scenario

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLocatorString(t *testing.T) {
	entry := &Locator{CSS: ".entry", HasText: "A Test Dream"}
	edit := RoleLocator("button", "Edit").In(entry)

	got := edit.String()
	want := `.entry:has-text("A Test Dream") >> role=button[name="Edit"]`
	if got != want {
		t.Errorf("String: got %s, want %s", got, want)
	}

	exact := &Locator{Role: "button", Name: "Save Dream", Exact: true}
	if !strings.Contains(exact.String(), " s]") {
		t.Errorf("exact marker missing: %s", exact.String())
	}

	var nilLoc *Locator
	if nilLoc.String() != "" {
		t.Error("nil locator should render empty")
	}
}

func TestInDoesNotMutate(t *testing.T) {
	base := Locator{CSS: "textarea"}
	scoped := base.In(CSSLocator(".entry"))
	if base.Within != nil {
		t.Fatal("In mutated the receiver")
	}
	if scoped.Within == nil || scoped.Within.CSS != ".entry" {
		t.Fatalf("scoped.Within: got %+v", scoped.Within)
	}
}

func TestValidate(t *testing.T) {
	ok := Scenario{
		Name:   "locked",
		Watch:  []string{"#journalTab"},
		Steps: []Step{
			{Action: ActionNavigate},
			{Action: ActionExpectVisible, Target: CSSLocator("#lockTab")},
			{Action: ActionExpectNeverVisible, Target: CSSLocator("#journalTab")},
			{Action: ActionScreenshot, Path: "out.png"},
		},
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid scenario: %v", err)
	}

	cases := []struct {
		name string
		sc   Scenario
		want string
	}{
		{"no name", Scenario{Steps: ok.Steps}, "name is required"},
		{"no steps", Scenario{Name: "x"}, "no steps"},
		{"missing target", Scenario{Name: "x", Steps: []Step{{Action: ActionFill}}}, "target is required"},
		{"unknown action", Scenario{Name: "x", Steps: []Step{{Action: "hover"}}}, "unknown action"},
		{"no path", Scenario{Name: "x", Steps: []Step{{Action: ActionScreenshot}}}, "path is required"},
		{"unwatched", Scenario{Name: "x", Steps: []Step{{Action: ActionExpectNeverVisible, Target: CSSLocator("#a")}}}, "not watched"},
		{"bad click", Scenario{Name: "x", Steps: []Step{{Action: ActionClick, Target: CSSLocator("#a"), Click: "tap"}}}, "unknown mode"},
		{"empty locator", Scenario{Name: "x", Steps: []Step{{Action: ActionClick, Target: &Locator{HasText: "a"}}}}, "css or role"},
	}
	for _, tc := range cases {
		err := tc.sc.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: got %v, want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestIsIsolatedDefault(t *testing.T) {
	var s Scenario
	if !s.IsIsolated() {
		t.Error("nil Isolated should mean isolated")
	}
	f := false
	s.Isolated = &f
	if s.IsIsolated() {
		t.Error("explicit false ignored")
	}
}

func TestReportCounts(t *testing.T) {
	r := Report{Results: []Result{
		{Scenario: "a", Status: StatusPassed},
		{Scenario: "b", Status: StatusFailed},
		{Scenario: "c", Status: StatusSkipped},
	}}
	if r.Passed() != 1 || r.Failed() != 1 || r.Skipped() != 1 {
		t.Errorf("counts: passed=%d failed=%d skipped=%d", r.Passed(), r.Failed(), r.Skipped())
	}
	if r.OK() {
		t.Error("report with failures should not be OK")
	}
	if f := r.FirstFailure(); f == nil || f.Scenario != "b" {
		t.Errorf("FirstFailure: got %+v", f)
	}

	var empty Report
	if empty.OK() {
		t.Error("empty report should not be OK")
	}
}

func TestStepErrorUnwrap(t *testing.T) {
	err := &StepError{
		Scenario: "unlocked",
		Index:    1,
		Action:   ActionExpectVisible,
		Selector: "#journalTab",
		Elapsed:  5 * time.Second,
		Err:      ErrTimeout,
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatal("errors.Is(ErrTimeout) = false")
	}
	msg := err.Error()
	for _, want := range []string{"unlocked", "#journalTab", "5s", "timed out"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestReportJSONKeepsStatus(t *testing.T) {
	data := []byte(`{"run_id":"run_1","results":[{"scenario":"locked","status":"failed","failed_step":2}]}`)
	r := &Report{}
	if err := json.Unmarshal(data, r); err != nil {
		t.Fatal(err)
	}
	if r.Failed() != 1 || r.Results[0].FailedStep != 2 {
		t.Errorf("decoded: %+v", r.Results[0])
	}
}
