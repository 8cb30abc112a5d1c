// Protection event journal backed by SQLite
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration

	"idleguard/pkg/clock"
	"idleguard/pkg/errors"
	"idleguard/pkg/idle"
)

// ErrNotFound is returned when an event doesn't exist.
var ErrNotFound = stderrors.New("event not found")

// Store persists protection events.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates an event store at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StoreError(err, "opening database")
	}
	// A single connection keeps ":memory:" databases alive across queries.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, errors.StoreError(err, "creating tables")
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq      INTEGER PRIMARY KEY AUTOINCREMENT,
			id       TEXT NOT NULL UNIQUE,
			at_ns    INTEGER NOT NULL,
			clock_ms INTEGER NOT NULL,
			kind     TEXT NOT NULL,
			resource TEXT NOT NULL,
			from_val REAL NOT NULL,
			to_val   REAL NOT NULL,
			message  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_at ON events(at_ns);
	`)
	return err
}

// Append stores one event.
func (s *Store) Append(ctx context.Context, ev idle.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, at_ns, clock_ms, kind, resource, from_val, to_val, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID.String(), ev.At.UnixNano(), int64(ev.Clock),
		string(ev.Kind), ev.Resource, ev.From, ev.To, ev.Message)
	if err != nil {
		return errors.StoreError(err, "inserting event")
	}
	return nil
}

// Get retrieves an event by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (idle.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, at_ns, clock_ms, kind, resource, from_val, to_val, message
		FROM events WHERE id = ?
	`, id.String())
	ev, err := scanEvent(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return idle.Event{}, ErrNotFound
	}
	return ev, err
}

// Query filters List results. Zero fields are ignored.
type Query struct {
	Kind  idle.Kind
	Since time.Time
	Limit int
}

// List returns matching events, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]idle.Event, error) {
	stmt := `SELECT id, at_ns, clock_ms, kind, resource, from_val, to_val, message FROM events WHERE 1=1`
	var args []any
	if q.Kind != "" {
		stmt += ` AND kind = ?`
		args = append(args, string(q.Kind))
	}
	if !q.Since.IsZero() {
		stmt += ` AND at_ns >= ?`
		args = append(args, q.Since.UnixNano())
	}
	stmt += ` ORDER BY seq DESC`
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.StoreError(err, "querying events")
	}
	defer rows.Close()

	events := []idle.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the number of stored events per kind.
func (s *Store) Count(ctx context.Context) (map[idle.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM events GROUP BY kind`)
	if err != nil {
		return nil, errors.StoreError(err, "counting events")
	}
	defer rows.Close()

	counts := make(map[idle.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, errors.StoreError(err, "scanning count")
		}
		counts[idle.Kind(kind)] = n
	}
	return counts, rows.Err()
}

// Prune deletes events older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE at_ns < ?`, before.UnixNano())
	if err != nil {
		return 0, errors.StoreError(err, "pruning events")
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (idle.Event, error) {
	var (
		ev      idle.Event
		id      string
		atNs    int64
		clockMs int64
		kind    string
	)
	err := row.Scan(&id, &atNs, &clockMs, &kind, &ev.Resource, &ev.From, &ev.To, &ev.Message)
	if stderrors.Is(err, sql.ErrNoRows) {
		return ev, err
	}
	if err != nil {
		return ev, errors.StoreError(err, "scanning event")
	}
	ev.ID, _ = uuid.Parse(id)
	ev.At = time.Unix(0, atNs).UTC()
	ev.Clock = clock.Millis(clockMs)
	ev.Kind = idle.Kind(kind)
	return ev, nil
}
