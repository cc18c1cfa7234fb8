package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/flowsync/pkg/domain/history"
	"github.com/dshills/flowsync/pkg/domain/types"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// HistoryDBName is the history database file name inside the config directory.
const HistoryDBName = "history.db"

// ErrRunNotFound is returned by Load when no run has the given id.
var ErrRunNotFound = errors.New("run not found")

// SQLiteHistoryRepository implements history.Repository using SQLite storage.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

var _ history.Repository = (*SQLiteHistoryRepository)(nil)

// NewSQLiteHistoryRepository opens the history database inside configDir.
func NewSQLiteHistoryRepository(configDir string) (*SQLiteHistoryRepository, error) {
	return NewSQLiteHistoryRepositoryWithPath(filepath.Join(configDir, HistoryDBName))
}

// NewSQLiteHistoryRepositoryWithPath opens a history database at dbPath,
// creating its directory and schema when needed.
func NewSQLiteHistoryRepositoryWithPath(dbPath string) (*SQLiteHistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	if err := InitializeDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}

// Save persists a run and replaces its results. Saving the same run twice
// updates it in place.
func (r *SQLiteHistoryRepository) Save(run *history.Run) error {
	if run == nil {
		return fmt.Errorf("cannot save nil run")
	}
	if run.ID.IsZero() {
		return fmt.Errorf("cannot save run without id")
	}
	if !run.Outcome.IsValid() {
		return fmt.Errorf("invalid run outcome %q", run.Outcome)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var runErr sql.NullString
	if run.Error != "" {
		runErr = sql.NullString{String: run.Error, Valid: true}
	}
	var completedAt sql.NullTime
	if !run.CompletedAt.IsZero() {
		completedAt = sql.NullTime{Time: run.CompletedAt, Valid: true}
	}

	query := `
		INSERT INTO runs (
			id, verb, profile, remote, branch, target, outcome, error, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome = excluded.outcome,
			error = excluded.error,
			completed_at = excluded.completed_at`

	_, err = tx.Exec(query,
		run.ID.String(), string(run.Verb), run.Profile, run.Remote, run.Branch, run.Target,
		string(run.Outcome), runErr, run.StartedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM sync_results WHERE run_id = ?", run.ID.String()); err != nil {
		return fmt.Errorf("failed to clear run results: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sync_results (
			run_id, position, kind, entity_id, name, path, status, commit_ref, reason, warning
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, res := range run.Results {
		if !res.Status.IsValid() {
			return fmt.Errorf("result %d: invalid status %q", i, res.Status)
		}
		_, err := stmt.Exec(
			run.ID.String(), i, string(res.Kind), res.EntityID, res.Name, res.Path,
			string(res.Status), nullable(res.CommitRef), nullable(res.Reason), nullable(res.Warning),
		)
		if err != nil {
			return fmt.Errorf("failed to save result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Load retrieves a run and its results.
func (r *SQLiteHistoryRepository) Load(id types.RunID) (*history.Run, error) {
	query := `
		SELECT id, verb, profile, remote, branch, target, outcome, error, started_at, completed_at
		FROM runs WHERE id = ?`

	run, err := scanRun(r.db.QueryRow(query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	results, err := r.loadResults(id)
	if err != nil {
		return nil, err
	}
	run.Results = results
	return run, nil
}

func (r *SQLiteHistoryRepository) loadResults(id types.RunID) ([]types.SyncResult, error) {
	rows, err := r.db.Query(`
		SELECT kind, entity_id, name, path, status, commit_ref, reason, warning
		FROM sync_results WHERE run_id = ?
		ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []types.SyncResult
	for rows.Next() {
		var (
			res                        types.SyncResult
			kind, status               string
			commitRef, reason, warning sql.NullString
		)
		if err := rows.Scan(&kind, &res.EntityID, &res.Name, &res.Path, &status, &commitRef, &reason, &warning); err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}
		res.Kind = types.EntityKind(kind)
		res.Status = types.SyncStatus(status)
		res.CommitRef = commitRef.String
		res.Reason = reason.String
		res.Warning = warning.String
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run results: %w", err)
	}
	return results, nil
}

// List returns runs most recent first, with filtering and pagination.
// Results are not loaded; use Load for a single run's detail.
func (r *SQLiteHistoryRepository) List(options history.ListOptions) (*history.ListResult, error) {
	if err := validateListOptions(options); err != nil {
		return nil, err
	}

	whereClause, args := buildWhereClause(options)

	var totalCount int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM runs"+whereClause, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	dataQuery := `
		SELECT id, verb, profile, remote, branch, target, outcome, error, started_at, completed_at
		FROM runs` + whereClause + `
		ORDER BY started_at DESC`
	if options.Limit > 0 {
		dataQuery += fmt.Sprintf(" LIMIT %d OFFSET %d", options.Limit, options.Offset)
	}

	rows, err := r.db.Query(dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*history.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return &history.ListResult{
		Runs:       runs,
		TotalCount: totalCount,
		Limit:      options.Limit,
		Offset:     options.Offset,
	}, nil
}

// Prune deletes runs started before the given number of most recent runs.
// It returns how many runs were removed.
func (r *SQLiteHistoryRepository) Prune(keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("keep cannot be negative: %d", keep)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stale := `SELECT id FROM runs ORDER BY started_at DESC LIMIT -1 OFFSET ?`
	if _, err := tx.Exec("DELETE FROM sync_results WHERE run_id IN ("+stale+")", keep); err != nil {
		return 0, fmt.Errorf("failed to prune results: %w", err)
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id IN ("+stale+")", keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*history.Run, error) {
	var (
		run               history.Run
		id, verb, outcome string
		runErr            sql.NullString
		completedAt       sql.NullTime
	)
	err := row.Scan(&id, &verb, &run.Profile, &run.Remote, &run.Branch, &run.Target,
		&outcome, &runErr, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	run.ID = types.RunID(id)
	run.Verb = history.Verb(verb)
	run.Outcome = history.Outcome(outcome)
	run.Error = runErr.String
	if completedAt.Valid {
		run.CompletedAt = completedAt.Time
	}
	return &run, nil
}

// validateListOptions validates the ListOptions parameters
func validateListOptions(options history.ListOptions) error {
	if options.Limit < 0 {
		return fmt.Errorf("limit cannot be negative: %d", options.Limit)
	}
	if options.Offset < 0 {
		return fmt.Errorf("offset cannot be negative: %d", options.Offset)
	}
	if options.Outcome != nil && !options.Outcome.IsValid() {
		return fmt.Errorf("invalid outcome filter %q", *options.Outcome)
	}
	return nil
}

// buildWhereClause constructs the WHERE clause and argument list for filtering
func buildWhereClause(options history.ListOptions) (string, []any) {
	var conditions []string
	var args []any

	if options.Verb != nil {
		conditions = append(conditions, "verb = ?")
		args = append(args, string(*options.Verb))
	}
	if options.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, string(*options.Outcome))
	}
	if options.StartedAfter != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, *options.StartedAfter)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
