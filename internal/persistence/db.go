// Package persistence provides SQLite-based save storage for the grid
// simulation. Saves are full snapshots keyed by a generated save id; the
// newest save wins on load.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ironveil/fluxgrid/internal/engine"
)

// DB wraps a SQLite connection for simulation persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		save_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		sim_time REAL NOT NULL,
		snapshot_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sim_time REAL NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grid_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_saves_created ON saves(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(sim_time);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot persists a full simulation snapshot and returns its save id.
func (db *DB) SaveSnapshot(s engine.Snapshot) (string, error) {
	blob, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	id := uuid.NewString()
	_, err = db.conn.Exec(
		"INSERT INTO saves (save_id, created_at, tick, sim_time, snapshot_json) VALUES (?, ?, ?, ?, ?)",
		id, time.Now().Unix(), s.Tick, s.SimTime, string(blob),
	)
	if err != nil {
		return "", fmt.Errorf("insert save: %w", err)
	}

	slog.Info("snapshot saved", "save_id", id, "tick", s.Tick)
	return id, nil
}

// LoadLatest returns the most recent snapshot, or ok=false when no save
// exists. A corrupt snapshot blob is ignored rather than failing the load
// — availability over strictness.
func (db *DB) LoadLatest() (engine.Snapshot, bool, error) {
	var blob string
	err := db.conn.Get(&blob,
		"SELECT snapshot_json FROM saves ORDER BY created_at DESC, save_id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load save: %w", err)
	}

	var s engine.Snapshot
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		slog.Warn("snapshot blob unreadable, ignoring save", "error", err)
		return engine.Snapshot{}, false, nil
	}
	return s, true, nil
}

// LoadSave returns one snapshot by save id.
func (db *DB) LoadSave(saveID string) (engine.Snapshot, bool, error) {
	var blob string
	err := db.conn.Get(&blob, "SELECT snapshot_json FROM saves WHERE save_id = ?", saveID)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Snapshot{}, false, nil
	}
	if err != nil {
		return engine.Snapshot{}, false, fmt.Errorf("load save %s: %w", saveID, err)
	}

	var s engine.Snapshot
	if err := json.Unmarshal([]byte(blob), &s); err != nil {
		slog.Warn("snapshot blob unreadable", "save_id", saveID, "error", err)
		return engine.Snapshot{}, false, nil
	}
	return s, true, nil
}

// PruneSaves keeps the newest n saves and deletes the rest.
func (db *DB) PruneSaves(keep int) error {
	_, err := db.conn.Exec(`
		DELETE FROM saves WHERE save_id NOT IN (
			SELECT save_id FROM saves ORDER BY created_at DESC, save_id DESC LIMIT ?
		)`, keep)
	return err
}

// AppendEvents archives grid events for post-game diagnostics.
func (db *DB) AppendEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (sim_time, kind, description) VALUES (?, ?, ?)",
			e.Time, e.Kind.String(), e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ArchivedEvent is one persisted event row.
type ArchivedEvent struct {
	SimTime     float64 `db:"sim_time" json:"sim_time"`
	Kind        string  `db:"kind" json:"kind"`
	Description string  `db:"description" json:"description"`
}

// RecentEvents returns the most recent N archived events, newest first.
func (db *DB) RecentEvents(limit int) ([]ArchivedEvent, error) {
	var events []ArchivedEvent
	err := db.conn.Select(&events,
		"SELECT sim_time, kind, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SetMeta stores a key-value pair in simulation metadata.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO grid_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value, ok=false when absent.
func (db *DB) GetMeta(key string) (string, bool, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM grid_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
