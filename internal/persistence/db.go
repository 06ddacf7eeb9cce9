// Package persistence provides SQLite-backed storage for the simulation:
// a queryable ledger and event log, archived task history, and a full
// aggregate snapshot for resume. The core never reads its own history back;
// these tables serve auditing and the API.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/vendsim/internal/state"
)

// DB wraps a SQLite connection for simulation storage.
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
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		amount INTEGER NOT NULL,
		description TEXT NOT NULL,
		period INTEGER NOT NULL,
		at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		period INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_history (
		execution_id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		task TEXT NOT NULL,
		status TEXT NOT NULL,
		steps INTEGER NOT NULL,
		result TEXT NOT NULL,
		period INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_period ON transactions(period);
	CREATE INDEX IF NOT EXISTS idx_events_period ON events(period);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveState writes the full aggregate: a snapshot for resume, plus a full
// replace of the ledger, events, and task history tables for querying.
func (db *DB) SaveState(st *state.State) error {
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO snapshot (id, state_json) VALUES (1, ?)",
		string(stateJSON),
	); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM transactions"); err != nil {
		return err
	}
	txStmt, err := tx.Preparex(
		"INSERT INTO transactions (kind, amount, description, period, at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer txStmt.Close()
	for _, t := range st.Ledger {
		if _, err := txStmt.Exec(string(t.Kind), int64(t.Amount), t.Description, t.Period, t.At.Format("2006-01-02T15:04:05.000Z")); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}
	for _, e := range st.Events {
		if _, err := tx.Exec(
			"INSERT INTO events (period, category, description) VALUES (?, ?, ?)",
			e.Period, e.Category, e.Description,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	for _, t := range st.TaskHistory {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO task_history
			 (execution_id, worker_id, task, status, steps, result, period)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ExecutionID, t.WorkerID, t.Task, t.Status.String(), t.Steps, t.Result, t.Period,
		); err != nil {
			return fmt.Errorf("insert task history: %w", err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('period', ?)",
		fmt.Sprintf("%d", st.Period),
	); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("state saved", "period", st.Period, "ledger_entries", len(st.Ledger))
	return nil
}

// LoadState restores the aggregate from the snapshot, or returns (nil, nil)
// when no snapshot exists.
func (db *DB) LoadState() (*state.State, error) {
	var stateJSON string
	err := db.conn.Get(&stateJSON, "SELECT state_json FROM snapshot WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var st state.State
	if err := json.Unmarshal([]byte(stateJSON), &st); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	if st.Processed == nil {
		st.Processed = make(map[string]bool)
	}
	return &st, nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]state.Event, error) {
	var events []state.Event
	err := db.conn.Select(&events,
		"SELECT period, category, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
