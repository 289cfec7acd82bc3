// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package presence tracks the set of display names currently claimed by
// live sessions. The aggregate is value-based: two sessions sharing a name
// count once, and releasing one of them leaves the name claimed.
//
// Count returns the raw presence-set size. The alternative
// schedule-activity-derived "used today" count from earlier revisions of
// the reference system is intentionally not implemented; see DESIGN.md.
package presence

import (
	"sort"
	"strings"
	"sync"

	"github.com/thermoshare/thermoshare/internal/metrics"
	"github.com/thermoshare/thermoshare/internal/models"
)

// Broadcaster receives a notification after every observable change to the
// aggregate. Called outside the tracker's lock; implementations must not
// call back into the tracker from the same goroutine synchronously in a way
// that assumes unchanged state.
type Broadcaster interface {
	PresenceChanged(names []string, activeUsers int)
}

// NopBroadcaster discards presence notifications.
type NopBroadcaster struct{}

// PresenceChanged implements Broadcaster.
func (NopBroadcaster) PresenceChanged([]string, int) {}

// Tracker is the reference-counted display-name aggregate.
type Tracker struct {
	mu          sync.Mutex
	claims      map[string]int
	broadcaster Broadcaster
}

// NewTracker creates an empty tracker. A nil broadcaster is replaced with
// NopBroadcaster.
func NewTracker(b Broadcaster) *Tracker {
	if b == nil {
		b = NopBroadcaster{}
	}
	return &Tracker{
		claims:      make(map[string]int),
		broadcaster: b,
	}
}

// Claim adds name to the aggregate. Empty and anonymous sentinel names are
// no-ops and never change the count.
func (t *Tracker) Claim(name string) {
	if !countable(name) {
		return
	}
	t.mu.Lock()
	t.claims[name]++
	names, count := t.aggregateLocked()
	t.mu.Unlock()

	t.broadcaster.PresenceChanged(names, count)
}

// Release removes one claim on name. Safe to call for a name not present.
func (t *Tracker) Release(name string) {
	if !countable(name) {
		return
	}
	t.mu.Lock()
	changed := t.releaseLocked(name)
	names, count := t.aggregateLocked()
	t.mu.Unlock()

	if changed {
		t.broadcaster.PresenceChanged(names, count)
	}
}

// Rename atomically releases oldName and claims newName as one observable
// step: a concurrent Count never sees a state with both or neither applied.
func (t *Tracker) Rename(oldName, newName string) {
	t.mu.Lock()
	changed := false
	if countable(oldName) {
		changed = t.releaseLocked(oldName) || changed
	}
	if countable(newName) {
		t.claims[newName]++
		changed = true
	}
	names, count := t.aggregateLocked()
	t.mu.Unlock()

	if changed {
		t.broadcaster.PresenceChanged(names, count)
	}
}

// Count returns the current aggregate size: the number of distinct claimed
// names.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.claims)
}

// Names returns the claimed names in sorted order.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names, _ := t.aggregateLocked()
	return names
}

// releaseLocked decrements the claim count for name, removing it at zero.
// Reports whether the call released an existing claim.
func (t *Tracker) releaseLocked(name string) bool {
	n, ok := t.claims[name]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(t.claims, name)
	} else {
		t.claims[name] = n - 1
	}
	return true
}

func (t *Tracker) aggregateLocked() ([]string, int) {
	names := make([]string, 0, len(t.claims))
	for name := range t.claims {
		names = append(names, name)
	}
	sort.Strings(names)
	metrics.PresenceActiveUsers.Set(float64(len(names)))
	return names, len(names)
}

func countable(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && !strings.EqualFold(trimmed, models.AnonymousName)
}
