package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process store for tests and one-shot CLI runs.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Key]Record)}
}

// Upsert implements Store.
func (m *Memory) Upsert(ctx context.Context, key Key, e Entry) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if err := e.validate(); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		ProjectID: key.ProjectID,
		UserID:    key.UserID,
		Kind:      e.Kind,
		Status:    e.Status,
		RunID:     e.RunID,
		Version:   m.records[key].Version + 1,
		Data:      slices.Clone(e.Data),
		UpdatedAt: nowUTC(),
	}
	m.records[key] = rec
	return rec, nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, key Key) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Data = slices.Clone(rec.Data)
	return rec, nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
