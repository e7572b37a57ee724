// Package store provides in-memory CodeStore and AuditLog implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/access-engine/access"
)

// =============================================================================
// MEMORY CODE STORE - For testing/dev
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	codes map[string]access.Code
	order []string // creation order
}

func NewMemory() *Memory {
	return &Memory{codes: make(map[string]access.Code)}
}

func (m *Memory) Create(_ context.Context, c access.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := access.NormalizeCode(c.Code)
	if _, exists := m.codes[key]; exists {
		return access.ErrCodeExists
	}
	c.Version = 1
	m.codes[key] = c
	m.order = append(m.order, key)
	return nil
}

func (m *Memory) Get(_ context.Context, code string) (access.Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.codes[access.NormalizeCode(code)]
	if !ok {
		return access.Code{}, access.ErrNotFound
	}
	return c, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, code string, expectedVersion int64, c access.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := access.NormalizeCode(code)
	cur, ok := m.codes[key]
	if !ok {
		return access.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return access.ErrConcurrentModification
	}
	c.Code = cur.Code // immutable after creation
	c.Version = expectedVersion + 1
	m.codes[key] = c
	return nil
}

func (m *Memory) List(_ context.Context) ([]access.Code, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]access.Code, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.codes[key])
	}
	return out, nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type MemoryAudit struct {
	mu     sync.RWMutex
	events []access.Event
	seq    int64
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Append(_ context.Context, e access.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	e.Seq = m.seq
	m.events = append(m.events, e)
	return nil
}

// Recent returns events newest first. limit <= 0 means all.
func (m *MemoryAudit) Recent(_ context.Context, limit int) ([]access.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]access.Event, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *MemoryAudit) CountLoginsSince(_ context.Context, t time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.events {
		if e.Action == access.ActionLogin && e.Timestamp.After(t) {
			count++
		}
	}
	return count, nil
}
