// Package store implements the typed graph store: event-sourced entity and
// bond persistence, bond-type physics constraints, full-text search, and an
// embedding table, all on top of a single SQLite database.
//
// A single writer, commit-then-log shape, and a "registration table built
// once, looked up under a lock" pattern for the save-hook bus instead of a
// package-level singleton.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"chora/core/graph"
)

// Hook is called after a successful entity commit. A failing hook is
// logged and never rolls back the commit.
type Hook func(id string, typ graph.EntityType, data map[string]any)

// Store is the single writer / multi reader typed graph store. Writes are
// serialized through mu; hooks run after the critical section, giving
// documented eventual consistency.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	log *logrus.Entry

	hooksMu sync.RWMutex
	hooks   []namedHook
}

type namedHook struct {
	name string
	fn   Hook
}

// Open creates or opens a SQLite-backed store at path. path may be
// ":memory:" for ephemeral stores (tests, the pulse sandbox).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer model; sqlite serializes anyway
	s := &Store{db: db, log: logrus.WithField("component", "store")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	s.RegisterHook("fts-index", func(id string, typ graph.EntityType, data map[string]any) {
		if err := s.ftsIndex(graph.Entity{ID: id, Type: typ, Data: data}); err != nil {
			s.log.WithError(err).WithField("entity", id).Warn("fts reindex failed")
		}
	})
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	data TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bonds (
	id TEXT PRIMARY KEY,
	verb TEXT NOT NULL,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,
	status TEXT NOT NULL DEFAULT 'active',
	metadata TEXT NOT NULL DEFAULT '{}',
	FOREIGN KEY(from_id) REFERENCES entities(id),
	FOREIGN KEY(to_id) REFERENCES entities(id)
);
CREATE INDEX IF NOT EXISTS idx_bonds_from ON bonds(from_id);
CREATE INDEX IF NOT EXISTS idx_bonds_to ON bonds(to_id);
CREATE INDEX IF NOT EXISTS idx_bonds_verb ON bonds(verb);

CREATE TABLE IF NOT EXISTS archive (
	id TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL,
	archived_at TEXT NOT NULL,
	PRIMARY KEY(id, kind)
);

CREATE TABLE IF NOT EXISTS embeddings (
	entity_id TEXT PRIMARY KEY,
	model_name TEXT NOT NULL,
	vector BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY(entity_id) REFERENCES entities(id) ON DELETE CASCADE
);

CREATE VIRTUAL TABLE IF NOT EXISTS fts_entities USING fts5(id UNINDEXED, body);

CREATE TABLE IF NOT EXISTS signal_outcomes (
	signal_id TEXT NOT NULL,
	protocol_id TEXT NOT NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signal_outcomes_signal ON signal_outcomes(signal_id);

CREATE TABLE IF NOT EXISTS pulse_history (
	ts TEXT PRIMARY KEY,
	signals_processed INTEGER NOT NULL,
	errors INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// RegisterHook appends a named save hook to the bus, run in registration
// order after every successful commit.
func (s *Store) RegisterHook(name string, fn Hook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

// UnregisterHook removes a previously registered hook by name (used by the
// sync router's close()).
func (s *Store) UnregisterHook(name string) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	out := s.hooks[:0]
	for _, h := range s.hooks {
		if h.name != name {
			out = append(out, h)
		}
	}
	s.hooks = out
}

// fireHooks runs every registered hook in isolation; a panicking or
// otherwise failing hook is logged and never affects the commit that
// already happened.
func (s *Store) fireHooks(id string, typ graph.EntityType, data map[string]any) {
	s.hooksMu.RLock()
	hooks := append([]namedHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.WithFields(logrus.Fields{"hook": h.name, "entity": id}).
						Errorf("save hook panicked: %v", r)
				}
			}()
			h.fn(id, typ, data)
		}()
	}
}
