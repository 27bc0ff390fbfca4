package workflow

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store kept in process memory.
// It does not survive restarts; use the SQLite store for durable runs.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]Run
	steps map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]Run),
		steps: make(map[string][]byte),
	}
}

func stepKey(runID, name string) string {
	return runID + "\x00" + name
}

// LoadStep implements StepStore.
func (m *MemoryStore) LoadStep(_ context.Context, runID, name string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, ok := m.steps[stepKey(runID, name)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), out...), true, nil
}

// SaveStep implements StepStore.
func (m *MemoryStore) SaveStep(_ context.Context, runID, name string, output []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[stepKey(runID, name)] = append([]byte(nil), output...)
	return nil
}

// CreateRun implements RunStore.
func (m *MemoryStore) CreateRun(_ context.Context, run *Run) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return false, nil
	}
	m.runs[run.ID] = *run
	return true, nil
}

// UpdateRun implements RunStore.
func (m *MemoryStore) UpdateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	existing.Status = run.Status
	existing.Stage = run.Stage
	existing.Output = run.Output
	existing.Error = run.Error
	existing.UpdatedAt = run.UpdatedAt
	m.runs[run.ID] = existing
	return nil
}

// GetRun implements RunStore.
func (m *MemoryStore) GetRun(_ context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

// ListRunsByEvent implements RunStore.
func (m *MemoryStore) ListRunsByEvent(_ context.Context, eventID string) ([]*Run, error) {
	return m.filter(func(r Run) bool { return r.EventID == eventID }), nil
}

// ListRunsByStatus implements RunStore.
func (m *MemoryStore) ListRunsByStatus(_ context.Context, statuses ...RunStatus) ([]*Run, error) {
	want := make(map[RunStatus]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	return m.filter(func(r Run) bool {
		_, ok := want[r.Status]
		return ok
	}), nil
}

func (m *MemoryStore) filter(keep func(Run) bool) []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Run
	for _, r := range m.runs {
		if keep(r) {
			run := r
			out = append(out, &run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
