// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package client implements the reconciliation side of schedule
// synchronization: a local replica of the schedule set plus two transport
// bindings that keep it converged with the server — a persistent websocket
// agent with bounded reconnection, and a polling fallback for callers that
// cannot hold a connection.
package client

import (
	"sync"

	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/models"
)

// Replica is the ordered local copy of the schedule set. It is replaced
// wholesale on a full-state snapshot and patched incrementally on
// create/update/delete events. All apply operations are idempotent by entry
// id, so at-least-once delivery with duplicates converges to the same set.
type Replica struct {
	mu      sync.RWMutex
	entries []*models.ScheduleEntry
	names   []string
	counts  models.DerivedCounts
}

// NewReplica returns an empty replica.
func NewReplica() *Replica {
	return &Replica{}
}

// ReplaceAll installs a full snapshot, discarding the previous state.
func (r *Replica) ReplaceAll(state models.FullState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]*models.ScheduleEntry(nil), state.Schedules...)
	r.names = append([]string(nil), state.Names...)
	r.counts = state.Counts
}

// Upsert applies a created or updated entry. An existing entry with the
// same id is replaced in place; otherwise the entry is appended.
func (r *Replica) Upsert(entry *models.ScheduleEntry, counts models.DerivedCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = counts
	for i, existing := range r.entries {
		if existing.ID == entry.ID {
			r.entries[i] = entry
			return
		}
	}
	r.entries = append(r.entries, entry)
}

// Remove applies a delete event. Removing an absent id is a no-op.
func (r *Replica) Remove(id uuid.UUID, counts models.DerivedCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = counts
	for i, existing := range r.entries {
		if existing.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// SetPresence applies a presence update.
func (r *Replica) SetPresence(names []string, counts models.DerivedCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append([]string(nil), names...)
	r.counts = counts
}

// Entries returns the replica's entries in order.
func (r *Replica) Entries() []*models.ScheduleEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*models.ScheduleEntry(nil), r.entries...)
}

// Names returns the active display names last observed.
func (r *Replica) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Counts returns the derived counts last observed.
func (r *Replica) Counts() models.DerivedCounts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts
}

// Len returns the number of entries in the replica.
func (r *Replica) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
