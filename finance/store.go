/*
store.go - Persistence contract for runs and saved scenarios

PURPOSE:
  A run is computed once and then only read: the API lists runs, serves
  their tables and violations, and the scheduler appends new runs for saved
  scenarios. This file defines what gets stored and the interfaces the
  storage layer implements.

APPEND-ONLY CONTRACT:
  Runs are never updated or deleted. Re-running a scenario produces a new
  run with a new ID.

IDENTIFIERS:
  Run IDs are ULIDs (time sortable, so listing newest-first is a string
  sort). Scenario IDs are UUIDs assigned by the store when empty.

IMPLEMENTATIONS:
  - finance/store/memory.go: In-memory for tests and the CLI
  - store/sqlite/sqlite.go: SQLite for the server
*/
package finance

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// =============================================================================
// RECORDS
// =============================================================================

// Run is one persisted simulation.
type Run struct {
	ID         string
	ScenarioID string // empty for ad-hoc runs
	Name       string
	CreatedAt  time.Time
	Result     *Result
}

// NewRun wraps a result with a fresh ULID.
func NewRun(scenarioID, name string, result *Result) *Run {
	return &Run{
		ID:         ulid.Make().String(),
		ScenarioID: scenarioID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		Result:     result,
	}
}

// RunInfo is the listing view of a run, without its tables.
type RunInfo struct {
	ID         string
	ScenarioID string
	Name       string
	CreatedAt  time.Time
	Summary    Summary
}

func (r *Run) Info() RunInfo {
	info := RunInfo{ID: r.ID, ScenarioID: r.ScenarioID, Name: r.Name, CreatedAt: r.CreatedAt}
	if r.Result != nil {
		info.Summary = r.Result.Summary
	}
	return info
}

// Scenario is a saved input document. Document holds the JSON form the
// factory package decodes into Inputs.
type Scenario struct {
	ID        string
	Name      string
	Document  []byte
	CreatedAt time.Time
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	ScenarioID string
	Limit      int
}

// =============================================================================
// INTERFACES
// =============================================================================

// RunStore persists simulation runs.
type RunStore interface {
	// SaveRun stores a run. Returns ErrDuplicateID if the ID exists.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns a run with its full result, or generic.ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunInfo, error)

	// Violations returns a run's violations in recorded order, optionally
	// narrowed to one kind. Unknown run IDs return generic.ErrNotFound.
	Violations(ctx context.Context, runID string, kind ViolationKind) ([]Violation, error)
}

// ScenarioStore persists scenario documents.
type ScenarioStore interface {
	// SaveScenario stores a scenario, assigning an ID and CreatedAt when
	// empty. Saving an existing ID replaces the document.
	SaveScenario(ctx context.Context, sc *Scenario) error

	GetScenario(ctx context.Context, id string) (*Scenario, error)

	// ListScenarios returns scenarios ordered by creation time.
	ListScenarios(ctx context.Context) ([]*Scenario, error)
}

// Store is everything the API needs.
type Store interface {
	RunStore
	ScenarioStore
}
