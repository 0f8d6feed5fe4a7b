package records

import (
	"context"
	"sync"
)

// MemorySource keeps records in a map. Useful for tests and for record types
// owned by the process itself.
type MemorySource struct {
	mu      sync.RWMutex
	records map[uint]Record
	calls   int
}

// NewMemorySource creates a MemorySource holding recs
func NewMemorySource(recs ...Record) *MemorySource {
	m := &MemorySource{records: make(map[uint]Record)}
	for _, rec := range recs {
		m.records[rec.ID] = rec
	}
	return m
}

// Put adds or replaces a record
func (m *MemorySource) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
}

// Remove deletes a record
func (m *MemorySource) Remove(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
}

// Calls returns how many times Lookup ran
func (m *MemorySource) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func (m *MemorySource) Lookup(_ context.Context, ids []uint) (map[uint]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := make(map[uint]Record, len(ids))
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}
