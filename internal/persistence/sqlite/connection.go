// Package sqlite implements the persistence contracts on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/bloc-scheduler/internal/persistence"
	_ "modernc.org/sqlite"
)

// ConnectionPool manages the SQLite database handle and transaction helpers.
type ConnectionPool struct {
	db *sql.DB
}

// Open connects to the SQLite database at the given DSN and applies the
// pragmas the engine relies on.
func Open(dsn string) (*ConnectionPool, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dsn, err)
	}

	// SQLite tolerates one writer; the busy timeout absorbs short
	// contention instead of surfacing SQLITE_BUSY to callers.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	return &ConnectionPool{db: db}, nil
}

// DB returns the underlying database handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the database handle.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// Migrate creates the schema. Every statement is idempotent, so Migrate can
// run on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS day_plannings (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL,
			site_id TEXT NOT NULL,
			status TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL,
			rooms TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (date, site_id)
		)`,
		`CREATE TABLE IF NOT EXISTS planning_rooms (
			planning_id TEXT NOT NULL REFERENCES day_plannings(id) ON DELETE CASCADE,
			room_id TEXT NOT NULL,
			PRIMARY KEY (planning_id, room_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_planning_rooms_room ON planning_rooms(room_id)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			sector_id TEXT NOT NULL,
			active INTEGER NOT NULL,
			unavailable INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS sectors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL,
			room_ids TEXT NOT NULL,
			max_rooms INTEGER NOT NULL DEFAULT 0,
			requires_skills INTEGER NOT NULL DEFAULT 0,
			special_supervision INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS staff_profiles (
			user_id TEXT PRIMARY KEY,
			sector_id TEXT NOT NULL DEFAULT '',
			skills TEXT NOT NULL,
			available INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS supervision_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			sector_id TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL,
			active INTEGER NOT NULL,
			constraints TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active INTEGER NOT NULL,
			site_id TEXT NOT NULL DEFAULT '',
			slots TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS absences (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			surgeon_id TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			status TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_absences_user ON absences(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_absences_surgeon ON absences(surgeon_id)`,
	}

	for _, statement := range statements {
		if _, err := cp.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// TransactionFunc runs within a database transaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction executes fn inside a transaction, rolling back on error or
// panic.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	return nil
}

// mapSQLError translates driver errors into the persistence sentinels.
func mapSQLError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return persistence.ErrDuplicate
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"):
		return persistence.ErrConstraintViolation
	}
	return err
}
