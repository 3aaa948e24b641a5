// Package storage keeps an append-only sqlite history of reported
// change-sets, for auditing with the `changes` command. The JSON snapshot
// in pkg/snapshot remains the source of truth for diffing; this log is a
// convenience record of what was notified and when.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/canvaswatch/canvaswatch/pkg/overrides"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS override_changes (
  id          INTEGER PRIMARY KEY,
  occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  course_id   TEXT NOT NULL,
  quiz_id     TEXT NOT NULL,
  change_type TEXT NOT NULL CHECK (change_type IN ('added','removed','changed')),
  position    INTEGER NOT NULL DEFAULT -1,
  field       TEXT NOT NULL DEFAULT '',
  old_value   TEXT,
  new_value   TEXT
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON override_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_course ON override_changes(course_id, occurred_at);
	`); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// Change is one row of the history: a quiz-level add/remove, or a single
// field change at a position within a quiz's override group.
type Change struct {
	OccurredAt time.Time
	CourseID   string
	QuizID     string
	ChangeType string // added | removed | changed
	Position   int    // -1 for quiz-level changes
	Field      string // "" for quiz-level changes
	OldValue   string // JSON-encoded
	NewValue   string // JSON-encoded
}

// LogChangeSet records every event of a change-set in one transaction.
func (d *DB) LogChangeSet(ctx context.Context, courseID string, cs overrides.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO override_changes(course_id, quiz_id, change_type, position, field, old_value, new_value) VALUES(?,?,?,?,?,?,?)`

	for _, id := range cs.Added {
		if _, err = tx.ExecContext(ctx, insert, courseID, id, "added", -1, "", nil, nil); err != nil {
			return err
		}
	}
	for _, id := range cs.Removed {
		if _, err = tx.ExecContext(ctx, insert, courseID, id, "removed", -1, "", nil, nil); err != nil {
			return err
		}
	}
	for _, g := range cs.Changed {
		for _, p := range g.Positions {
			for _, field := range orderedFields(p.Fields) {
				fc := p.Fields[field]
				if _, err = tx.ExecContext(ctx, insert, courseID, g.ID, "changed", p.Index, field, jsonText(fc.Old), jsonText(fc.New)); err != nil {
					return err
				}
			}
		}
	}

	err = tx.Commit()
	return err
}

// ListRecentChanges returns the most recent N history rows, newest first.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT occurred_at, course_id, quiz_id, change_type, position, field, old_value, new_value
FROM override_changes ORDER BY occurred_at DESC, id DESC LIMIT ?`
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAtStr string
		var oldNS, newNS sql.NullString
		if err := rows.Scan(&occurredAtStr, &c.CourseID, &c.QuizID, &c.ChangeType, &c.Position, &c.Field, &oldNS, &newNS); err != nil {
			return nil, err
		}
		c.OccurredAt = parseSQLiteTime(occurredAtStr)
		c.OldValue = oldNS.String
		c.NewValue = newNS.String
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// CourseStats summarizes the history per course.
type CourseStats struct {
	CourseID     string
	ChangeCount  int
	LastChangeAt time.Time
}

func (d *DB) GetStats(ctx context.Context) ([]CourseStats, error) {
	const q = `SELECT course_id, COUNT(*), MAX(occurred_at) FROM override_changes GROUP BY course_id ORDER BY course_id`
	rows, err := d.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CourseStats
	for rows.Next() {
		var s CourseStats
		var lastStr string
		if err := rows.Scan(&s.CourseID, &s.ChangeCount, &lastStr); err != nil {
			return nil, err
		}
		s.LastChangeAt = parseSQLiteTime(lastStr)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func parseSQLiteTime(s string) time.Time {
	// SQLite CURRENT_TIMESTAMP format first, then RFC3339.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func jsonText(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func orderedFields(fields map[string]overrides.FieldChange) []string {
	var out []string
	known := make(map[string]bool, len(overrides.Fields)+1)
	if _, ok := fields[overrides.EntryField]; ok {
		out = append(out, overrides.EntryField)
	}
	known[overrides.EntryField] = true
	for _, k := range overrides.Fields {
		known[k] = true
		if _, ok := fields[k]; ok {
			out = append(out, k)
		}
	}
	var extras []string
	for k := range fields {
		if !known[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}
