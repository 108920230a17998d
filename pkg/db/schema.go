package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- Runs: one row per batch invocation of a tool
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,          -- uuid
    tool TEXT NOT NULL,               -- enforce, head-assets, inject
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    total_files INTEGER DEFAULT 0,
    files_changed INTEGER DEFAULT 0,
    total_fixes INTEGER DEFAULT 0,
    warnings INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_tool ON runs(tool);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Run entries: the literal fix and warning lines of a run
CREATE TABLE IF NOT EXISTS run_entries (
    entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,               -- change, warning
    file TEXT,
    message TEXT NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_run_entries_run ON run_entries(run_id);
CREATE INDEX IF NOT EXISTS idx_run_entries_file ON run_entries(file);

-- Documents: content hash of each file as a run left it
CREATE TABLE IF NOT EXISTS documents (
    path TEXT PRIMARY KEY,
    content_hash TEXT NOT NULL,
    canonical_url TEXT,
    last_run_id TEXT,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (last_run_id) REFERENCES runs(run_id) ON DELETE SET NULL
);
`
