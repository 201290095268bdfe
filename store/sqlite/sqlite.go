/*
Package sqlite provides a SQLite-backed implementation of finance.Store.

PURPOSE:
  Persists simulation runs and saved scenario documents for the HTTP API
  and the scheduler. The same schema ports to PostgreSQL with only minor
  dialect differences.

INTERFACES IMPLEMENTED:
  finance.RunStore:      Run persistence and violation queries
  finance.ScenarioStore: Scenario documents

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on runs or run_violations
  - Re-running a scenario inserts a new run
  - Scenarios are the only mutable records (saving an ID replaces it)

KEY TABLES:
  runs:           One row per run, summary and full result as JSON
  run_violations: Violations flattened for filtering without decoding
                  the result blob
  scenarios:      Saved scenario documents (canonical JSON)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/runs.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - finance/store.go: Interface definitions
  - finance/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements finance.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Runs (append-only)
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario_id TEXT,
		name TEXT NOT NULL DEFAULT '',
		summary_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario
		ON runs(scenario_id) WHERE scenario_id IS NOT NULL;

	-- Violations per run, in recorded order
	CREATE TABLE IF NOT EXISTS run_violations (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL,
		details TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_run_violations_kind
		ON run_violations(run_id, kind);

	-- Saved scenarios
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		document_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (finance.RunStore interface)
// =============================================================================

// SaveRun inserts a run and its violations atomically.
func (s *Store) SaveRun(ctx context.Context, run *finance.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summary finance.Summary
	var violations []finance.Violation
	if run.Result != nil {
		summary = run.Result.Summary
		violations = run.Result.Violations
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	resultJSON, err := json.Marshal(run.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario_id, name, summary_json, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		nullString(run.ScenarioID),
		run.Name,
		string(summaryJSON),
		string(resultJSON),
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("run %s: %w", run.ID, finance.ErrDuplicateID)
		}
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_violations (run_id, seq, date, kind, account_id, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare violation insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range violations {
		if _, err := stmt.ExecContext(ctx, run.ID, i, v.Date.String(), string(v.Kind), string(v.AccountID), v.Details); err != nil {
			return fmt.Errorf("failed to insert violation: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its full result.
func (s *Store) GetRun(ctx context.Context, id string) (*finance.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		run        finance.Run
		scenarioID sql.NullString
		resultJSON string
		createdAt  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scenario_id, name, result_json, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &scenarioID, &run.Name, &resultJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	run.ScenarioID = scenarioID.String
	run.CreatedAt = parseTime(createdAt)
	var result finance.Result
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	run.Result = &result
	return &run, nil
}

// ListRuns returns run summaries newest first.
func (s *Store) ListRuns(ctx context.Context, filter finance.RunFilter) ([]finance.RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, scenario_id, name, summary_json, created_at FROM runs`
	var args []any
	if filter.ScenarioID != "" {
		query += ` WHERE scenario_id = ?`
		args = append(args, filter.ScenarioID)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []finance.RunInfo
	for rows.Next() {
		var (
			info        finance.RunInfo
			scenarioID  sql.NullString
			summaryJSON string
			createdAt   string
		)
		if err := rows.Scan(&info.ID, &scenarioID, &info.Name, &summaryJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.ScenarioID = scenarioID.String
		info.CreatedAt = parseTime(createdAt)
		if err := json.Unmarshal([]byte(summaryJSON), &info.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of run %s: %w", info.ID, err)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// Violations returns a run's violations, optionally filtered by kind.
func (s *Store) Violations(ctx context.Context, runID string, kind finance.ViolationKind) ([]finance.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, generic.ErrNotFound)
	}

	query := `SELECT date, kind, account_id, details FROM run_violations WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var result []finance.Violation
	for rows.Next() {
		var (
			v       finance.Violation
			date    string
			vKind   string
			account string
		)
		if err := rows.Scan(&date, &vKind, &account, &v.Details); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.Date, err = generic.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("violation date: %w", err)
		}
		v.Kind = finance.ViolationKind(vKind)
		v.AccountID = generic.AccountID(account)
		result = append(result, v)
	}
	return result, rows.Err()
}

// =============================================================================
// SCENARIO STORE (finance.ScenarioStore interface)
// =============================================================================

// SaveScenario inserts a scenario or replaces the document of an existing one.
func (s *Store) SaveScenario(ctx context.Context, sc *finance.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenarios (id, name, document_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document_json = excluded.document_json,
			updated_at = excluded.updated_at
	`,
		sc.ID,
		sc.Name,
		string(sc.Document),
		sc.CreatedAt.UTC().Format(timeLayout),
		now.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	return nil
}

func (s *Store) GetScenario(ctx context.Context, id string) (*finance.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sc        finance.Scenario
		doc       string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, document_json, created_at FROM scenarios WHERE id = ?
	`, id).Scan(&sc.ID, &sc.Name, &doc, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	sc.Document = []byte(doc)
	sc.CreatedAt = parseTime(createdAt)
	return &sc, nil
}

func (s *Store) ListScenarios(ctx context.Context) ([]*finance.Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, document_json, created_at FROM scenarios
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var result []*finance.Scenario
	for rows.Next() {
		var (
			sc        finance.Scenario
			doc       string
			createdAt string
		)
		if err := rows.Scan(&sc.ID, &sc.Name, &doc, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		sc.Document = []byte(doc)
		sc.CreatedAt = parseTime(createdAt)
		result = append(result, &sc)
	}
	return result, rows.Err()
}

var _ finance.Store = (*Store)(nil)

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
