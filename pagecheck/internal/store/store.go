// Package store persists pagecheck run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/pagecheck/dbopen"
	"github.com/hazyhaar/pagecheck/pagecheck/scenario"
)

// ErrNotFound is returned when a run or scenario does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the run history database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// RunSummary is a row of the runs table.
type RunSummary struct {
	ID         string    `json:"id"`
	EntryURL   string    `json:"entry_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Aborted    string    `json:"aborted,omitempty"`
}

// SaveReport writes a whole run in one transaction. Saving the same run ID
// again replaces it.
func (s *Store) SaveReport(ctx context.Context, rep *scenario.Report) error {
	if rep.RunID == "" {
		return fmt.Errorf("store: report without run id")
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, rep.RunID); err != nil {
			return fmt.Errorf("store: replace run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, entry_url, started_at, finished_at, passed, failed, skipped, aborted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, rep.EntryURL, rep.StartedAt.UnixMilli(), rep.FinishedAt.UnixMilli(),
			rep.Passed(), rep.Failed(), rep.Skipped(), rep.Aborted,
		); err != nil {
			return fmt.Errorf("store: insert run: %w", err)
		}
		for i := range rep.Results {
			if err := insertResult(ctx, tx, rep.RunID, i, &rep.Results[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertResult(ctx context.Context, tx *sql.Tx, runID string, seq int, res *scenario.Result) error {
	artifacts, err := json.Marshal(res.Artifacts)
	if err != nil {
		return fmt.Errorf("store: marshal artifacts: %w", err)
	}
	var exHTML, exMD string
	if res.Excerpt != nil {
		exHTML, exMD = res.Excerpt.HTML, res.Excerpt.Markdown
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO scenario_results (run_id, scenario, seq, url, status, error, failed_step,
			selector, elapsed_ms, duration_ms, started_at, artifacts, excerpt_html, excerpt_md)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Scenario, seq, res.URL, string(res.Status), res.Error, res.FailedStep,
		res.Selector, res.Elapsed.Milliseconds(), res.Duration.Milliseconds(),
		res.StartedAt.UnixMilli(), string(artifacts), exHTML, exMD,
	); err != nil {
		return fmt.Errorf("store: insert result %s: %w", res.Scenario, err)
	}

	for _, st := range res.Steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO step_results (run_id, scenario, idx, action, target, status, duration_ms, error, artifact)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, res.Scenario, st.Index, string(st.Action), st.Target, string(st.Status),
			st.Duration.Milliseconds(), st.Error, st.Artifact,
		); err != nil {
			return fmt.Errorf("store: insert step: %w", err)
		}
	}

	for i, msg := range res.Console {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO console_messages (run_id, scenario, seq, level, text, ts)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, res.Scenario, i, msg.Level, msg.Text, msg.Timestamp,
		); err != nil {
			return fmt.Errorf("store: insert console: %w", err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, entry_url, started_at, finished_at, passed, failed, skipped, aborted
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.EntryURL, &started, &finished,
			&r.Passed, &r.Failed, &r.Skipped, &r.Aborted); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun rebuilds a full report. Excerpts carry markdown only; fetch the
// sanitized HTML with Excerpt.
func (s *Store) GetRun(ctx context.Context, id string) (*scenario.Report, error) {
	var rep scenario.Report
	var started, finished int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, entry_url, started_at, finished_at, aborted FROM runs WHERE id = ?`, id,
	).Scan(&rep.RunID, &rep.EntryURL, &started, &finished, &rep.Aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	rep.StartedAt = time.UnixMilli(started).UTC()
	rep.FinishedAt = time.UnixMilli(finished).UTC()

	rows, err := s.DB.QueryContext(ctx, `
		SELECT scenario, url, status, error, failed_step, selector, elapsed_ms, duration_ms,
		       started_at, artifacts, excerpt_md
		FROM scenario_results WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get results: %w", err)
	}
	for rows.Next() {
		res := scenario.Result{RunID: id}
		var status, artifacts, md string
		var elapsedMs, durationMs, startedMs int64
		if err := rows.Scan(&res.Scenario, &res.URL, &status, &res.Error, &res.FailedStep,
			&res.Selector, &elapsedMs, &durationMs, &startedMs, &artifacts, &md); err != nil {
			rows.Close()
			return nil, err
		}
		res.Status = scenario.Status(status)
		res.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		res.Duration = time.Duration(durationMs) * time.Millisecond
		res.StartedAt = time.UnixMilli(startedMs).UTC()
		if err := json.Unmarshal([]byte(artifacts), &res.Artifacts); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: run %s scenario %s: decode artifacts: %w", id, res.Scenario, err)
		}
		if md != "" {
			res.Excerpt = &scenario.Excerpt{Markdown: md}
		}
		rep.Results = append(rep.Results, res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rep.Results {
		res := &rep.Results[i]
		if err := s.loadSteps(ctx, id, res); err != nil {
			return nil, err
		}
		if err := s.loadConsole(ctx, id, res); err != nil {
			return nil, err
		}
	}
	return &rep, nil
}

func (s *Store) loadSteps(ctx context.Context, runID string, res *scenario.Result) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT idx, action, target, status, duration_ms, error, artifact
		FROM step_results WHERE run_id = ? AND scenario = ? ORDER BY idx`, runID, res.Scenario)
	if err != nil {
		return fmt.Errorf("store: get steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st scenario.StepResult
		var action, status string
		var ms int64
		if err := rows.Scan(&st.Index, &action, &st.Target, &status, &ms, &st.Error, &st.Artifact); err != nil {
			return err
		}
		st.Action = scenario.Action(action)
		st.Status = scenario.Status(status)
		st.Duration = time.Duration(ms) * time.Millisecond
		res.Steps = append(res.Steps, st)
	}
	return rows.Err()
}

func (s *Store) loadConsole(ctx context.Context, runID string, res *scenario.Result) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT level, text, ts FROM console_messages
		WHERE run_id = ? AND scenario = ? ORDER BY seq`, runID, res.Scenario)
	if err != nil {
		return fmt.Errorf("store: get console: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m scenario.ConsoleMessage
		if err := rows.Scan(&m.Level, &m.Text, &m.Timestamp); err != nil {
			return err
		}
		res.Console = append(res.Console, m)
	}
	return rows.Err()
}

// Excerpt returns the sanitized failure HTML captured for a scenario.
func (s *Store) Excerpt(ctx context.Context, runID, scenarioName string) (string, error) {
	var html string
	err := s.DB.QueryRowContext(ctx, `
		SELECT excerpt_html FROM scenario_results WHERE run_id = ? AND scenario = ?`,
		runID, scenarioName).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get excerpt: %w", err)
	}
	return html, nil
}
