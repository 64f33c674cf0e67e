// Package store provides in-memory implementations of the anticheat
// persistence interfaces, used by tests and dev mode.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// MEMORY COUNTERS
// =============================================================================

type MemoryCounters struct {
	mu     sync.Mutex
	counts map[anticheat.CounterKey]int
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[anticheat.CounterKey]int)}
}

func (m *MemoryCounters) Increment(_ context.Context, key anticheat.CounterKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

func (m *MemoryCounters) Get(_ context.Context, key anticheat.CounterKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *MemoryCounters) Reset(_ context.Context, key anticheat.CounterKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, key)
	return nil
}

// =============================================================================
// MEMORY PENDING RECORDS
// =============================================================================

type MemoryPending struct {
	mu      sync.Mutex
	records map[anticheat.PendingKey]anticheat.PendingRecord
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{records: make(map[anticheat.PendingKey]anticheat.PendingRecord)}
}

func (m *MemoryPending) Find(_ context.Context, key anticheat.PendingKey) (anticheat.PendingRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *MemoryPending) Put(_ context.Context, rec anticheat.PendingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.Key]; exists {
		return nil
	}
	m.records[rec.Key] = rec
	return nil
}

// Confirm holds the lock across the read-then-write so two confirmers
// cannot race past each other.
func (m *MemoryPending) Confirm(_ context.Context, key anticheat.PendingKey, confirmerID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || rec.Key.CounterpartID != confirmerID {
		return false, nil
	}
	if rec.State == anticheat.StateConfirmed {
		return true, nil
	}
	rec.State = anticheat.StateConfirmed
	rec.ConfirmedAt = at
	m.records[key] = rec
	return true, nil
}

func (m *MemoryPending) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, rec := range m.records {
		if rec.State == anticheat.StatePending && rec.CreatedAt.Before(cutoff) {
			delete(m.records, key)
			removed++
		}
	}
	return removed, nil
}

// =============================================================================
// MEMORY WINDOWS
// =============================================================================

type MemoryWindows struct {
	mu      sync.Mutex
	windows map[anticheat.WindowKey][]time.Time
}

func NewMemoryWindows() *MemoryWindows {
	return &MemoryWindows{windows: make(map[anticheat.WindowKey][]time.Time)}
}

func (m *MemoryWindows) Observe(_ context.Context, key anticheat.WindowKey, at, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	window := append(m.windows[key], at)
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.windows[key] = kept
	return len(kept), nil
}

func (m *MemoryWindows) Prune(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for key, window := range m.windows {
		kept := window[:0]
		for _, ts := range window {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			} else {
				pruned++
			}
		}
		if len(kept) == 0 {
			delete(m.windows, key)
			continue
		}
		m.windows[key] = kept
	}
	return pruned, nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type MemoryAudit struct {
	mu      sync.Mutex
	entries []anticheat.AuditEntry
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Append(_ context.Context, entry anticheat.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryAudit) Query(_ context.Context, filter anticheat.AuditFilter) ([]anticheat.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []anticheat.AuditEntry
	for _, e := range m.entries {
		if !matches(e, filter) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(e anticheat.AuditEntry, f anticheat.AuditFilter) bool {
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	if len(f.Actions) > 0 {
		ok := false
		for _, a := range f.Actions {
			if e.Action == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
