// Package history optionally persists a mirror of the exit-status table
// to disk, so operators can query macro history across process restarts.
// The in-memory exit table still accepts unbounded retention on its own;
// this is an opt-in durability layer on top of that, not a replacement
// for it. Grounded on an internal/webapi/d1_bridge.go style bridge:
// database/sql plus glebarez/sqlite, no gorm, one isolated file per store.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/glebarez/sqlite"

	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

// Store persists completed macro executions. A nil *Store is valid and
// simply does nothing (history is off by default).
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a SQLite-backed Store at path. Pass ":memory:"
// for an ephemeral store, matching d1_bridge.go's NewD1BridgeMemory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS macro_runs (
	pid INTEGER PRIMARY KEY,
	instance_id TEXT,
	status_kind INTEGER NOT NULL,
	status_time INTEGER NOT NULL,
	status_message TEXT NOT NULL DEFAULT ''
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating macro_runs table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RecordExit inserts a completed run. One row per PID; a PID already
// recorded is left untouched (first Stopped is authoritative).
func (s *Store) RecordExit(pid lifecycle.Pid, instanceID *string, status lifecycle.ExitStatus) error {
	if s == nil {
		return nil
	}
	var instanceIDVal any
	if instanceID != nil {
		instanceIDVal = *instanceID
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO macro_runs (pid, instance_id, status_kind, status_time, status_message) VALUES (?, ?, ?, ?, ?)`,
		uint64(pid), instanceIDVal, int(status.Kind), status.Time, status.Message,
	)
	if err != nil {
		return fmt.Errorf("recording exit for pid %d: %w", pid, err)
	}
	return nil
}

// Run is one historical record.
type Run struct {
	Pid        lifecycle.Pid
	InstanceID *string
	Status     lifecycle.ExitStatus
}

// Get returns the historical record for pid, if any.
func (s *Store) Get(pid lifecycle.Pid) (*Run, error) {
	if s == nil {
		return nil, nil
	}
	row := s.db.QueryRow(`SELECT instance_id, status_kind, status_time, status_message FROM macro_runs WHERE pid = ?`, uint64(pid))

	var instanceID sql.NullString
	var run Run
	run.Pid = pid
	if err := row.Scan(&instanceID, &run.Status.Kind, &run.Status.Time, &run.Status.Message); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying pid %d: %w", pid, err)
	}
	if instanceID.Valid {
		run.InstanceID = &instanceID.String
	}
	return &run, nil
}
