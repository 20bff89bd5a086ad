package runlog

// Schema is the ledger DDL. Open applies it; it is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    seeds TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER,
    pages INTEGER NOT NULL DEFAULT 0,
    fixes INTEGER NOT NULL DEFAULT 0,
    error TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS page_results (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    url TEXT NOT NULL,
    depth INTEGER NOT NULL,
    status TEXT NOT NULL,
    critical INTEGER NOT NULL DEFAULT 0,
    serious INTEGER NOT NULL DEFAULT 0,
    moderate INTEGER NOT NULL DEFAULT 0,
    minor INTEGER NOT NULL DEFAULT 0,
    total INTEGER NOT NULL DEFAULT 0,
    violations TEXT NOT NULL DEFAULT '[]',
    error TEXT,
    scanned_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_page_results_run ON page_results(run_id, scanned_at);

CREATE TABLE IF NOT EXISTS fix_events (
    event_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    file_path TEXT,
    rules TEXT NOT NULL DEFAULT '',
    description TEXT,
    confidence REAL,
    error TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fix_events_run ON fix_events(run_id, outcome);
`
