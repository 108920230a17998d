package db

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one batch invocation of a tool.
type Run struct {
	RunID        string
	Tool         string
	StartedAt    time.Time
	DurationMs   int64
	TotalFiles   int
	FilesChanged int
	TotalFixes   int
	Warnings     int
}

// Entry is one fix or warning line of a run.
type Entry struct {
	Kind    string // EntryChange or EntryWarning
	File    string
	Message string
}

const (
	EntryChange  = "change"
	EntryWarning = "warning"
)

// DocumentState is the content hash of a file as a run left it.
type DocumentState struct {
	Path         string
	ContentHash  string
	CanonicalURL string
	LastRunID    string
	UpdatedAt    time.Time
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// ContentHash computes SHA256 hash of content and returns hex string.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// InsertRun stores a run, its entries and the resulting document hashes in
// one transaction.
func (db *DB) InsertRun(run Run, entries []Entry, docs []DocumentState) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, tool, started_at, duration_ms, total_files, files_changed, total_fixes, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Tool, run.StartedAt, run.DurationMs, run.TotalFiles, run.FilesChanged, run.TotalFixes, run.Warnings)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(`
			INSERT INTO run_entries (run_id, kind, file, message)
			VALUES (?, ?, ?, ?)
		`, run.RunID, e.Kind, e.File, e.Message); err != nil {
			return fmt.Errorf("failed to insert run entry: %w", err)
		}
	}

	for _, d := range docs {
		if _, err := tx.Exec(`
			INSERT INTO documents (path, content_hash, canonical_url, last_run_id, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				content_hash = excluded.content_hash,
				canonical_url = excluded.canonical_url,
				last_run_id = excluded.last_run_id,
				updated_at = excluded.updated_at
		`, d.Path, d.ContentHash, d.CanonicalURL, run.RunID, run.StartedAt); err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", d.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns retrieves runs ordered by most recent first. An empty tool lists
// every tool.
func (db *DB) ListRuns(tool string, limit int) ([]Run, error) {
	query := `
		SELECT run_id, tool, started_at, duration_ms, total_files, files_changed, total_fixes, warnings
		FROM runs
	`
	var args []any
	if tool != "" {
		query += " WHERE tool = ?"
		args = append(args, tool)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Tool, &r.StartedAt, &r.DurationMs, &r.TotalFiles,
			&r.FilesChanged, &r.TotalFixes, &r.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindRun returns the run whose ID starts with prefix. It is an error when
// no run or more than one run matches.
func (db *DB) FindRun(prefix string) (*Run, error) {
	rows, err := db.Query(`
		SELECT run_id, tool, started_at, duration_ms, total_files, files_changed, total_fixes, warnings
		FROM runs
		WHERE run_id LIKE ? || '%'
		LIMIT 2
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.Tool, &r.StartedAt, &r.DurationMs, &r.TotalFiles,
			&r.FilesChanged, &r.TotalFixes, &r.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no run matches %q", prefix)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", prefix)
	}
}

// GetRunEntries returns the entries of a run in insertion order.
func (db *DB) GetRunEntries(runID string) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT kind, COALESCE(file, ''), message
		FROM run_entries
		WHERE run_id = ?
		ORDER BY entry_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Kind, &e.File, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan run entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetDocument returns the recorded state of path, or nil when none exists.
func (db *DB) GetDocument(path string) (*DocumentState, error) {
	var d DocumentState
	var canonicalURL, lastRun sql.NullString
	err := db.QueryRow(`
		SELECT path, content_hash, canonical_url, last_run_id, updated_at
		FROM documents
		WHERE path = ?
	`, path).Scan(&d.Path, &d.ContentHash, &canonicalURL, &lastRun, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	d.CanonicalURL = canonicalURL.String
	d.LastRunID = lastRun.String
	return &d, nil
}

// ListDocuments returns every recorded document sorted by path.
func (db *DB) ListDocuments() ([]DocumentState, error) {
	rows, err := db.Query(`
		SELECT path, content_hash, COALESCE(canonical_url, ''), COALESCE(last_run_id, ''), updated_at
		FROM documents
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentState
	for rows.Next() {
		var d DocumentState
		if err := rows.Scan(&d.Path, &d.ContentHash, &d.CanonicalURL, &d.LastRunID, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
