package scenario

import "time"

// Status is the outcome of a scenario or step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one executed step.
type StepResult struct {
	Index    int           `json:"index"`
	Action   Action        `json:"action"`
	Target   string        `json:"target,omitempty"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
	Artifact string        `json:"artifact,omitempty"` // screenshot path written by this step
}

// ConsoleMessage is one console.* call observed in the page.
type ConsoleMessage struct {
	Level     string `json:"level"` // log, warning, error, info, debug...
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Excerpt is the DOM captured when a scenario fails.
type Excerpt struct {
	HTML      string `json:"html"`     // sanitized
	Markdown  string `json:"markdown"` // readable rendition for logs and agents
	Truncated bool   `json:"truncated,omitempty"`
}

// Result is the outcome of one scenario.
type Result struct {
	RunID      string           `json:"run_id"`
	Scenario   string           `json:"scenario"`
	URL        string           `json:"url"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	FailedStep int              `json:"failed_step"` // -1 when none
	Selector   string           `json:"selector,omitempty"`
	Elapsed    time.Duration    `json:"elapsed_ns,omitempty"` // wait spent on the failing step
	Steps      []StepResult     `json:"steps"`
	Console    []ConsoleMessage `json:"console,omitempty"`
	Artifacts  []string         `json:"artifacts,omitempty"`
	Excerpt    *Excerpt         `json:"excerpt,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration_ns"`

	// Err is the typed failure, not serialised.
	Err error `json:"-"`
}

// OK reports whether the scenario passed.
func (r *Result) OK() bool { return r.Status == StatusPassed }

// Report is the outcome of a run.
type Report struct {
	RunID      string    `json:"run_id"`
	EntryURL   string    `json:"entry_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Aborted    string    `json:"aborted,omitempty"` // reason remaining scenarios were skipped
}

// Passed counts passed scenarios.
func (r *Report) Passed() int { return r.count(StatusPassed) }

// Failed counts failed scenarios.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// Skipped counts scenarios not executed.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return len(r.Results) > 0 && r.Passed() == len(r.Results)
}

// FirstFailure returns the first non-passing result, or nil.
func (r *Report) FirstFailure() *Result {
	for i := range r.Results {
		if r.Results[i].Status != StatusPassed {
			return &r.Results[i]
		}
	}
	return nil
}

func (r *Report) count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}
