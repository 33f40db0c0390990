// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: eventlog/store.go
// Summary: SQLite-backed store for named event logs.

package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var ErrSessionNotFound = errors.New("eventlog: session not found")

const storeSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    shell TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    created INTEGER NOT NULL            -- UnixNano
);

CREATE TABLE IF NOT EXISTS events (
    session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq INTEGER NOT NULL,
    offset_ns INTEGER NOT NULL,
    kind INTEGER NOT NULL,
    data BLOB,
    cols INTEGER NOT NULL DEFAULT 0,
    rows INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, seq)
);
`

// SessionInfo summarises a stored log.
type SessionInfo struct {
	Name     string
	Width    int
	Height   int
	Created  time.Time
	Events   int
	Duration time.Duration
}

// Store keeps event logs in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and writes serialised.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveLog stores l under name, replacing any log already stored there.
func (s *Store) SaveLog(ctx context.Context, name string, l *Log) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return err
	}
	created := l.Metadata.Timestamp
	if created.IsZero() {
		created = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (name, width, height, shell, description, title, created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, l.Metadata.Width, l.Metadata.Height, l.Metadata.Shell, l.Metadata.Description, l.Metadata.Title, created.UnixNano())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (session_id, seq, offset_ns, kind, data, cols, rows) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ev := range l.Events {
		if _, err := stmt.ExecContext(ctx, id, i, int64(ev.Offset), int(ev.Kind), ev.Data, ev.Cols, ev.Rows); err != nil {
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadLog reads the log stored under name.
func (s *Store) LoadLog(ctx context.Context, name string) (*Log, error) {
	var (
		id      int64
		created int64
		l       Log
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, width, height, shell, description, title, created FROM sessions WHERE name = ?`, name).
		Scan(&id, &l.Metadata.Width, &l.Metadata.Height, &l.Metadata.Shell, &l.Metadata.Description, &l.Metadata.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	l.Metadata.Timestamp = time.Unix(0, created)

	rows, err := s.db.QueryContext(ctx,
		`SELECT offset_ns, kind, data, cols, rows FROM events WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ev     Event
			offset int64
			kind   int
		)
		if err := rows.Scan(&offset, &kind, &ev.Data, &ev.Cols, &ev.Rows); err != nil {
			return nil, err
		}
		ev.Offset = time.Duration(offset)
		ev.Kind = Kind(kind)
		l.Events = append(l.Events, ev)
	}
	return &l, rows.Err()
}

// Sessions lists stored logs, newest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.name, s.width, s.height, s.created, COUNT(e.seq), COALESCE(MAX(e.offset_ns), 0)
FROM sessions s LEFT JOIN events e ON e.session_id = s.id
GROUP BY s.id
ORDER BY s.created DESC, s.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var (
			info     SessionInfo
			created  int64
			duration int64
		)
		if err := rows.Scan(&info.Name, &info.Width, &info.Height, &created, &info.Events, &duration); err != nil {
			return nil, err
		}
		info.Created = time.Unix(0, created)
		info.Duration = time.Duration(duration)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the log stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
