// Package mirror holds the client's local copy of server-authoritative
// equipment state. Reconcile merges snapshots in place and reports what
// changed; unchanged records keep their pointer identity so consumers can
// skip re-rendering unaffected rows.
package mirror

import (
	"sync"
	"time"

	"gym-status-client/internal/model"
)

// Mirror is safe for concurrent use by the feed goroutine, flash timers and
// HTTP handlers.
type Mirror struct {
	mu         sync.RWMutex
	order      []string
	records    map[string]*model.EquipmentRecord
	flashing   map[string]uint64 // id -> seq of the batch that marked it
	timers     map[uint64]*time.Timer
	batchSeq   uint64
	flashDelay time.Duration
	closed     bool
}

func New(flashDelay time.Duration) *Mirror {
	return &Mirror{
		records:    make(map[string]*model.EquipmentRecord),
		flashing:   make(map[string]uint64),
		timers:     make(map[uint64]*time.Timer),
		flashDelay: flashDelay,
	}
}

// Reconcile merges a normalized snapshot and returns the ids whose observable
// fields changed. New ids count as changed; ids absent from the snapshot
// simply vanish from the mirror. suppressFlash is set for the initial
// snapshot, which is a first paint, not a change.
func (m *Mirror) Reconcile(records []*model.EquipmentRecord, suppressFlash bool) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := make([]string, 0, len(records))
	next := make(map[string]*model.EquipmentRecord, len(records))
	var changed []string

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if _, dup := next[rec.ID]; dup {
			continue
		}
		if prev, ok := m.records[rec.ID]; ok && prev.Same(rec) {
			next[rec.ID] = prev
		} else {
			next[rec.ID] = rec
			changed = append(changed, rec.ID)
		}
		order = append(order, rec.ID)
	}

	m.order = order
	m.records = next

	if suppressFlash || len(changed) == 0 || m.closed {
		return changed
	}

	m.batchSeq++
	seq := m.batchSeq
	for _, id := range changed {
		m.flashing[id] = seq
	}
	batch := append([]string(nil), changed...)
	m.timers[seq] = time.AfterFunc(m.flashDelay, func() {
		m.clearFlash(batch, seq)
	})
	return changed
}

// clearFlash only clears the ids its own batch marked. A later batch bumps an
// id's seq, so a stale earlier timer leaves a freshly re-set flag alone.
func (m *Mirror) clearFlash(ids []string, seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if m.flashing[id] == seq {
			delete(m.flashing, id)
		}
	}
	delete(m.timers, seq)
}

// Flashing reports whether the id is currently under visual emphasis.
func (m *Mirror) Flashing(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.flashing[id]
	return ok
}

// Snapshot returns the mirrored records in snapshot order.
func (m *Mirror) Snapshot() []*model.EquipmentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.EquipmentRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

// ByCategory returns the records matching the category, preserving mirror
// order. "all" (or empty) returns everything. Pure view, no network
// implication.
func (m *Mirror) ByCategory(category string) []*model.EquipmentRecord {
	if category == "" || category == "all" {
		return m.Snapshot()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.EquipmentRecord, 0, len(m.order))
	for _, id := range m.order {
		if rec := m.records[id]; string(rec.Category) == category {
			out = append(out, rec)
		}
	}
	return out
}

// Get returns the record for id, or nil.
func (m *Mirror) Get(id string) *model.EquipmentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id]
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Close cancels every pending flash timer. Dangling timers touching torn-down
// state are a correctness bug, not just tidiness.
func (m *Mirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for seq, t := range m.timers {
		t.Stop()
		delete(m.timers, seq)
	}
	m.flashing = make(map[string]uint64)
}
