package storage

import (
	"database/sql"
	"fmt"
)

// MigrationVersion tracks the current database schema version.
const MigrationVersion = 1

// InitializeDatabase creates the SQLite schema for sync history.
func InitializeDatabase(db *sql.DB) error {
	migrationsTable := `
	CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version INTEGER NOT NULL UNIQUE,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := db.Exec(migrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to check migration version: %w", err)
	}

	if currentVersion < 1 {
		if err := applyMigration1(db); err != nil {
			return fmt.Errorf("failed to apply migration 1: %w", err)
		}
	}

	return nil
}

// applyMigration1 creates the runs and sync_results tables.
func applyMigration1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// One row per push or pull invocation
	runsTable := `
	CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		verb TEXT NOT NULL,
		profile TEXT NOT NULL,
		remote TEXT NOT NULL,
		branch TEXT NOT NULL,
		target TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := tx.Exec(runsTable); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	runsIndexes := []string{
		"CREATE INDEX idx_runs_started_at ON runs(started_at DESC);",
		"CREATE INDEX idx_runs_verb ON runs(verb, started_at DESC);",
		"CREATE INDEX idx_runs_outcome ON runs(outcome, started_at DESC);",
	}

	for _, idx := range runsIndexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create run index: %w", err)
		}
	}

	// Ordered per-file outcomes of a run
	resultsTable := `
	CREATE TABLE sync_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		commit_ref TEXT,
		reason TEXT,
		warning TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);`

	if _, err := tx.Exec(resultsTable); err != nil {
		return fmt.Errorf("failed to create sync_results table: %w", err)
	}

	if _, err := tx.Exec("CREATE INDEX idx_sync_results_entity ON sync_results(entity_id);"); err != nil {
		return fmt.Errorf("failed to create sync result index: %w", err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", 1); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}
