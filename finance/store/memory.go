// Package store provides in-memory finance.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/CLI)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	runs      map[string]*finance.Run
	scenarios map[string]*finance.Scenario
}

func NewMemory() *Memory {
	return &Memory{
		runs:      make(map[string]*finance.Run),
		scenarios: make(map[string]*finance.Scenario),
	}
}

// SaveRun adds a run. Append-only.
func (m *Memory) SaveRun(_ context.Context, run *finance.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, finance.ErrDuplicateID)
	}
	stored := *run
	m.runs[run.ID] = &stored
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*finance.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, generic.ErrNotFound)
	}
	out := *run
	return &out, nil
}

func (m *Memory) ListRuns(_ context.Context, filter finance.RunFilter) ([]finance.RunInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.RunInfo
	for _, run := range m.runs {
		if filter.ScenarioID != "" && run.ScenarioID != filter.ScenarioID {
			continue
		}
		result = append(result, run.Info())
	}
	// ULIDs sort by creation time
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Memory) Violations(_ context.Context, runID string, kind finance.ViolationKind) ([]finance.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, generic.ErrNotFound)
	}
	var result []finance.Violation
	if run.Result == nil {
		return result, nil
	}
	for _, v := range run.Result.Violations {
		if kind == "" || v.Kind == kind {
			result = append(result, v)
		}
	}
	return result, nil
}

func (m *Memory) SaveScenario(_ context.Context, sc *finance.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	stored := *sc
	stored.Document = append([]byte(nil), sc.Document...)
	m.scenarios[sc.ID] = &stored
	return nil
}

func (m *Memory) GetScenario(_ context.Context, id string) (*finance.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sc, ok := m.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("scenario %s: %w", id, generic.ErrNotFound)
	}
	out := *sc
	return &out, nil
}

func (m *Memory) ListScenarios(_ context.Context) ([]*finance.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*finance.Scenario, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		out := *sc
		result = append(result, &out)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ finance.Store = (*Memory)(nil)
