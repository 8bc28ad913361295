// Package store persists completed turns to a local SQLite database.
//
// The archive is an additive sink: quota decisions read only the
// in-memory session, and the relay runs fine with the archive disabled.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	prompt      TEXT NOT NULL,
	response    TEXT NOT NULL,
	usage_delta INTEGER NOT NULL,
	usage_total INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
`

// TurnRecord is one archived exchange.
type TurnRecord struct {
	SessionID  string
	CreatedAt  time.Time
	Prompt     string
	Response   string
	UsageDelta int
	UsageTotal int
}

// Archive is a SQLite-backed turn log. Safe for concurrent use across
// connections; writes are serialized on a single connection since SQLite
// allows one writer at a time.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// RecordTurn appends one completed exchange.
func (a *Archive) RecordTurn(ctx context.Context, sessionID, prompt, response string, usageDelta, usageTotal int) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, created_at, prompt, response, usage_delta, usage_total)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, time.Now().UTC(), prompt, response, usageDelta, usageTotal)
	if err != nil {
		return fmt.Errorf("recording turn: %w", err)
	}
	return nil
}

// Turns returns all archived turns for a session in insertion order.
func (a *Archive) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT session_id, created_at, prompt, response, usage_delta, usage_total
		 FROM turns WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []TurnRecord
	for rows.Next() {
		var r TurnRecord
		if err := rows.Scan(&r.SessionID, &r.CreatedAt, &r.Prompt, &r.Response, &r.UsageDelta, &r.UsageTotal); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
