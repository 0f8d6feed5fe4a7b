// Package cache keeps external systems keyed by code so hot lookups
// (linking, resolving, redirects) skip the database.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikepea/extids/pkg/extids/models"
)

// SystemCache stores systems by code. A miss returns (nil, nil).
type SystemCache interface {
	Get(ctx context.Context, code string) (*models.ExternalSystem, error)
	Set(ctx context.Context, system *models.ExternalSystem) error
	Invalidate(ctx context.Context, codes ...string) error
}

// Nop never stores anything
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.ExternalSystem, error) { return nil, nil }
func (Nop) Set(context.Context, *models.ExternalSystem) error           { return nil }
func (Nop) Invalidate(context.Context, ...string) error                 { return nil }

type memoryEntry struct {
	system  models.ExternalSystem
	expires time.Time
}

// Memory is an in-process cache. Only safe when this process is the sole writer.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates a Memory cache whose entries live for ttl
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, code string) (*models.ExternalSystem, error) {
	m.mu.RLock()
	entry, ok := m.entries[code]
	m.mu.RUnlock()
	if !ok || m.now().After(entry.expires) {
		return nil, nil
	}
	system := entry.system
	return &system, nil
}

func (m *Memory) Set(_ context.Context, system *models.ExternalSystem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[system.Code] = memoryEntry{system: *system, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, codes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, code := range codes {
		delete(m.entries, code)
	}
	return nil
}
