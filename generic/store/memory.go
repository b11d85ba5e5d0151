// Package store provides in-memory LogStore, DatasetReader and
// ScenarioStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	records     map[int64][]generic.ChangeRecord
	idempotency map[string]bool
	seq         int64

	dataset   *staffing.Dataset
	scenarios map[int64]staffing.Scenario
	lastID    int64
}

func NewMemory() *Memory {
	return &Memory{
		records:     make(map[int64][]generic.ChangeRecord),
		idempotency: make(map[string]bool),
		dataset:     &staffing.Dataset{},
		scenarios:   make(map[int64]staffing.Scenario),
	}
}

// SetDataset replaces the base snapshot served by LoadDataset.
func (m *Memory) SetDataset(ds *staffing.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = ds.Clone()
}

// LoadDataset returns a copy so callers can never alter the stored base.
func (m *Memory) LoadDataset(_ context.Context) (*staffing.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataset.Clone(), nil
}

// =============================================================================
// SCENARIOS
// =============================================================================

func (m *Memory) CreateScenario(_ context.Context, name string) (staffing.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.scenarios {
		if sc.Name == name {
			return staffing.Scenario{}, fmt.Errorf("scenario %q: %w", name, generic.ErrDuplicateName)
		}
	}
	m.lastID++
	sc := staffing.Scenario{ID: m.lastID, Name: name, CreatedAt: time.Now().UTC()}
	m.scenarios[sc.ID] = sc
	return sc, nil
}

// ListScenarios returns the newest scenario first.
func (m *Memory) ListScenarios(_ context.Context) ([]staffing.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]staffing.Scenario, 0, len(m.scenarios))
	for _, sc := range m.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) GetScenario(_ context.Context, id int64) (staffing.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scenarios[id]
	if !ok {
		return staffing.Scenario{}, generic.NotFound("scenario", id)
	}
	return sc, nil
}

// =============================================================================
// CHANGE LOG
// =============================================================================

// Append adds a single record. Append-only.
func (m *Memory) Append(_ context.Context, rec generic.ChangeRecord) (generic.ChangeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.IdempotencyKey != "" && m.idempotency[rec.IdempotencyKey] {
		return generic.ChangeRecord{}, generic.ErrDuplicateIdempotencyKey
	}

	m.seq++
	rec.Seq = m.seq
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	// Seq is monotonic, so appending keeps each log ordered.
	m.records[rec.LogID] = append(m.records[rec.LogID], rec)

	if rec.IdempotencyKey != "" {
		m.idempotency[rec.IdempotencyKey] = true
	}
	return rec, nil
}

func (m *Memory) Load(_ context.Context, logID int64) ([]generic.ChangeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.ChangeRecord, len(m.records[logID]))
	copy(result, m.records[logID])
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
