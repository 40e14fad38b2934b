// Package journal keeps an append-only SQLite log of everything that happened
// to each application: attempts, submissions, failures and recorded outcomes.
// It supplements the snapshot store: the snapshot holds current state, the
// journal holds the trail.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id     TEXT NOT NULL,
    event      TEXT NOT NULL,
    detail     TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_journal_job ON journal(job_id);
`

// Journal events.
const (
	EventApplied  = "applied"
	EventFailed   = "failed"
	EventDeferred = "deferred"
	EventOutcome  = "outcome"
	EventEnqueued = "enqueued"
	EventRemoved  = "removed"
)

// Entry is one journal row.
type Entry struct {
	ID        int64
	JobID     string
	Event     string
	Detail    string
	CreatedAt time.Time
}

// Journal is the SQLite-backed event log.
type Journal struct {
	db *sql.DB
}

// New opens (or creates) the journal database, initializing the schema.
func New(dbPath string) (*Journal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one event for a job.
func (j *Journal) Record(ctx context.Context, jobID, event, detail string) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO journal (job_id, event, detail, created_at) VALUES (?, ?, ?, ?)`,
		jobID, event, detail, time.Now(),
	)
	return err
}

// History returns all events for a job, oldest first.
func (j *Journal) History(ctx context.Context, jobID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, job_id, event, COALESCE(detail, ''), created_at
		 FROM journal WHERE job_id = ? ORDER BY id ASC`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns the latest events across all jobs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, job_id, event, COALESCE(detail, ''), created_at
		 FROM journal ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.JobID, &entry.Event, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
