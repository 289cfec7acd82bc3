// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package schedule owns the canonical set of schedule entries and enforces
// the conflict invariant on every mutation. The store is the only writer of
// entry ids and timestamps; client-supplied values for those fields are
// ignored.
package schedule

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/metrics"
	"github.com/thermoshare/thermoshare/internal/models"
)

// Broadcaster receives a change notification for every committed mutation.
// The store calls it while still holding its write lock, so notification
// order always equals commit order; implementations must hand off quickly
// and never call back into the store.
type Broadcaster interface {
	ScheduleChanged(eventType string, entry *models.ScheduleEntry, totalSchedules int)
}

// NopBroadcaster discards change notifications. Useful for tests and for
// embedding the store without a fan-out layer.
type NopBroadcaster struct{}

// ScheduleChanged implements Broadcaster.
func (NopBroadcaster) ScheduleChanged(string, *models.ScheduleEntry, int) {}

// Store is the in-memory schedule set. All mutations are serialized behind
// one mutex around the read-check-write sequence, so two concurrent creates
// for overlapping intervals can never both succeed. Volatile by design; a
// durable deployment would put a persistent implementation behind the same
// method set.
type Store struct {
	mu          sync.RWMutex
	entries     map[uuid.UUID]*models.ScheduleEntry
	order       []uuid.UUID
	broadcaster Broadcaster
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the store's time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. A nil broadcaster is replaced with
// NopBroadcaster.
func NewStore(b Broadcaster, opts ...Option) *Store {
	if b == nil {
		b = NopBroadcaster{}
	}
	s := &Store{
		entries:     make(map[uuid.UUID]*models.ScheduleEntry),
		broadcaster: b,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all entries in insertion order. The returned entries are
// copies; mutating them does not affect the store.
func (s *Store) List() []*models.ScheduleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Get returns the entry with the given id.
func (s *Store) Get(id uuid.UUID) (*models.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	clone := *entry
	return &clone, nil
}

// Create validates the candidate, checks it against every existing entry on
// the same date and either commits it or rejects without mutating state.
// On success the change event has been handed to the broadcaster before
// Create returns.
func (s *Store) Create(candidate models.ScheduleCandidate) (*models.ScheduleEntry, error) {
	entry, err := s.normalize(candidate)
	if err != nil {
		metrics.ScheduleValidationFailures.Inc()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conflicts := FindConflicts(entry, s.listLocked()); len(conflicts) > 0 {
		metrics.ScheduleConflictsRejected.Inc()
		return nil, &ConflictError{Conflicts: cloneEntries(conflicts)}
	}

	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	metrics.ScheduleEntries.Set(float64(len(s.entries)))

	clone := *entry
	s.broadcaster.ScheduleChanged(models.EventScheduleCreated, &clone, len(s.entries))
	return &clone, nil
}

// Update merges patch onto the existing entry, re-runs conflict detection
// with self-exclusion and refreshes updatedAt. The previous version of the
// entry never conflicts with its replacement.
func (s *Store) Update(id uuid.UUID, patch models.SchedulePatch) (*models.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.entries[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	merged := *current
	applyPatch(&merged, patch)
	if err := validateTimes(merged.StartTime, merged.EndTime); err != nil {
		metrics.ScheduleValidationFailures.Inc()
		return nil, err
	}
	if merged.ComfortLevel < models.MinComfortLevel || merged.ComfortLevel > models.MaxComfortLevel {
		metrics.ScheduleValidationFailures.Inc()
		return nil, &ValidationError{Field: "comfortLevel", Reason: "must be between 16 and 30"}
	}

	if conflicts := FindConflicts(&merged, s.listLocked()); len(conflicts) > 0 {
		metrics.ScheduleConflictsRejected.Inc()
		return nil, &ConflictError{Conflicts: cloneEntries(conflicts)}
	}

	merged.UpdatedAt = s.now().UTC()
	s.entries[id] = &merged

	clone := merged
	s.broadcaster.ScheduleChanged(models.EventScheduleUpdated, &clone, len(s.entries))
	return &clone, nil
}

// Delete removes and returns the entry with the given id. Deleting an entry
// leaves no residual conflict: recreating an identical entry afterwards
// succeeds.
func (s *Store) Delete(id uuid.UUID) (*models.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	metrics.ScheduleEntries.Set(float64(len(s.entries)))

	clone := *entry
	s.broadcaster.ScheduleChanged(models.EventScheduleDeleted, &clone, len(s.entries))
	return &clone, nil
}

// normalize applies defaults and validates a candidate, returning the entry
// ready for the conflict check. Store-owned fields are assigned here.
func (s *Store) normalize(candidate models.ScheduleCandidate) (*models.ScheduleEntry, error) {
	if strings.TrimSpace(candidate.OwnerID) == "" {
		return nil, &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if err := validateTimes(candidate.StartTime, candidate.EndTime); err != nil {
		return nil, err
	}

	comfort := candidate.ComfortLevel
	if comfort == 0 {
		comfort = models.DefaultComfortLevel
	}
	if comfort < models.MinComfortLevel || comfort > models.MaxComfortLevel {
		return nil, &ValidationError{Field: "comfortLevel", Reason: "must be between 16 and 30"}
	}

	date := candidate.Date
	if date == "" {
		date = models.Today()
	} else if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "want YYYY-MM-DD"}
	}

	name := strings.TrimSpace(candidate.DisplayName)
	if name == "" {
		name = models.AnonymousName
	}

	room := candidate.RoomID
	if room == "" {
		room = models.DefaultRoomID
	}

	now := s.now().UTC()
	return &models.ScheduleEntry{
		ID:           uuid.New(),
		OwnerID:      candidate.OwnerID,
		DisplayName:  name,
		StartTime:    candidate.StartTime,
		EndTime:      candidate.EndTime,
		Date:         date,
		ComfortLevel: comfort,
		RoomID:       room,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func validateTimes(start, end string) error {
	startMin, err := models.MinuteOfDay(start)
	if err != nil {
		return &ValidationError{Field: "startTime", Reason: "want HH:MM"}
	}
	endMin, err := models.MinuteOfDay(end)
	if err != nil {
		return &ValidationError{Field: "endTime", Reason: "want HH:MM"}
	}
	if endMin <= startMin {
		return &ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	return nil
}

func applyPatch(entry *models.ScheduleEntry, patch models.SchedulePatch) {
	if patch.DisplayName != nil {
		entry.DisplayName = *patch.DisplayName
	}
	if patch.StartTime != nil {
		entry.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		entry.EndTime = *patch.EndTime
	}
	if patch.Date != nil {
		entry.Date = *patch.Date
	}
	if patch.ComfortLevel != nil {
		entry.ComfortLevel = *patch.ComfortLevel
	}
}

// listLocked returns the live entry pointers in insertion order.
// Callers must hold s.mu.
func (s *Store) listLocked() []*models.ScheduleEntry {
	out := make([]*models.ScheduleEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

// snapshotLocked returns cloned entries in insertion order.
// Callers must hold s.mu (read or write).
func (s *Store) snapshotLocked() []*models.ScheduleEntry {
	out := make([]*models.ScheduleEntry, 0, len(s.order))
	for _, id := range s.order {
		clone := *s.entries[id]
		out = append(out, &clone)
	}
	return out
}

func cloneEntries(entries []*models.ScheduleEntry) []*models.ScheduleEntry {
	out := make([]*models.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		clone := *e
		out = append(out, &clone)
	}
	return out
}
