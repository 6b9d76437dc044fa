package store

// Schema for run history. Times are epoch milliseconds, durations
// milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	entry_url   TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	aborted     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS scenario_results (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	scenario      TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	url           TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	failed_step   INTEGER NOT NULL DEFAULT -1,
	selector      TEXT NOT NULL DEFAULT '',
	elapsed_ms    INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	started_at    INTEGER NOT NULL,
	artifacts     TEXT NOT NULL DEFAULT '[]',
	excerpt_html  TEXT NOT NULL DEFAULT '',
	excerpt_md    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, scenario)
);

CREATE TABLE IF NOT EXISTS step_results (
	run_id      TEXT NOT NULL,
	scenario    TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	action      TEXT NOT NULL,
	target      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	artifact    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, scenario, idx),
	FOREIGN KEY (run_id, scenario) REFERENCES scenario_results(run_id, scenario) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS console_messages (
	run_id   TEXT NOT NULL,
	scenario TEXT NOT NULL,
	seq      INTEGER NOT NULL,
	level    TEXT NOT NULL,
	text     TEXT NOT NULL,
	ts       INTEGER NOT NULL,
	PRIMARY KEY (run_id, scenario, seq),
	FOREIGN KEY (run_id, scenario) REFERENCES scenario_results(run_id, scenario) ON DELETE CASCADE
);
`
