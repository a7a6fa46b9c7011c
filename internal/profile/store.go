// Package profile records call-site transitions in a SQLite database so that
// dispatch behavior of a long-running embedding can be inspected afterwards.
package profile

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/funvibe/hostinterop/internal/dispatch"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	site      TEXT    NOT NULL,
	name      TEXT    NOT NULL,
	from_state TEXT   NOT NULL,
	to_state  TEXT    NOT NULL,
	method    TEXT    NOT NULL,
	shape     TEXT    NOT NULL,
	at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_site ON transitions(site);
`

// Store is a dispatch.Reporter persisting transitions to SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	insert *sql.Stmt
	failed int
}

// Transition is one recorded call-site transition.
type Transition struct {
	Site   uuid.UUID
	Name   string
	From   string
	To     string
	Method string
	Shape  string
	At     time.Time
}

// SiteSummary aggregates the transitions of one call site.
type SiteSummary struct {
	Site        uuid.UUID
	Name        string
	State       string
	Transitions int
	Methods     int
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens (creating if needed) the store at path. ":memory:" gives a
// private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create profile schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT INTO transitions
		(site, name, from_state, to_state, method, shape, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	s := &Store{db: db, insert: insert, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Report implements dispatch.Reporter. Write failures are logged and counted,
// never returned to the dispatching caller.
func (s *Store) Report(ev dispatch.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insert == nil {
		s.failed++
		return
	}
	_, err := s.insert.Exec(ev.Site.String(), ev.Name, ev.From.String(), ev.To.String(),
		ev.Method, ev.Shape, ev.At.UnixNano())
	if err != nil {
		s.failed++
		s.logger.Warn("failed to record call site transition",
			zap.String("site", ev.Site.String()), zap.Error(err))
	}
}

// Failed returns the number of transitions that could not be written.
func (s *Store) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Transitions returns the recorded transitions of one site in order.
func (s *Store) Transitions(site uuid.UUID) ([]Transition, error) {
	rows, err := s.db.Query(`SELECT site, name, from_state, to_state, method, shape, at
		FROM transitions WHERE site = ? ORDER BY id`, site.String())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t       Transition
			id      string
			atNanos int64
		)
		if err := rows.Scan(&id, &t.Name, &t.From, &t.To, &t.Method, &t.Shape, &atNanos); err != nil {
			return nil, err
		}
		if t.Site, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt site id %q: %w", id, err)
		}
		t.At = time.Unix(0, atNanos)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Summary aggregates all recorded sites, most active first.
func (s *Store) Summary() ([]SiteSummary, error) {
	rows, err := s.db.Query(`
		SELECT t.site, t.name, t.to_state, agg.n, agg.methods
		FROM transitions t
		JOIN (
			SELECT site, MAX(id) AS last, COUNT(*) AS n, COUNT(DISTINCT method) AS methods
			FROM transitions GROUP BY site
		) agg ON t.id = agg.last
		ORDER BY agg.n DESC, t.name, t.site`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []SiteSummary
	for rows.Next() {
		var (
			sum SiteSummary
			id  string
		)
		if err := rows.Scan(&id, &sum.Name, &sum.State, &sum.Transitions, &sum.Methods); err != nil {
			return nil, err
		}
		if sum.Site, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt site id %q: %w", id, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insert != nil {
		s.insert.Close()
		s.insert = nil
	}
	return s.db.Close()
}

var _ dispatch.Reporter = (*Store)(nil)
