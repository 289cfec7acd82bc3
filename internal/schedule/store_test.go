// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/models"
)

// recordingBroadcaster captures change notifications in order.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingBroadcaster) ScheduleChanged(eventType string, _ *models.ScheduleEntry, _ int) {
	r.mu.Lock()
	r.events = append(r.events, eventType)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func candidate(start, end string) models.ScheduleCandidate {
	return models.ScheduleCandidate{
		OwnerID:     "owner-1",
		DisplayName: "Alex",
		StartTime:   start,
		EndTime:     end,
		Date:        "2026-09-01",
	}
}

func TestStoreCreate(t *testing.T) {
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store := NewStore(nil, WithClock(func() time.Time { return fixed }))

	entry, err := store.Create(candidate("09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == uuid.Nil {
		t.Error("Create() did not assign an id")
	}
	if entry.ComfortLevel != models.DefaultComfortLevel {
		t.Errorf("ComfortLevel = %d, want default %d", entry.ComfortLevel, models.DefaultComfortLevel)
	}
	if entry.RoomID != models.DefaultRoomID {
		t.Errorf("RoomID = %q, want %q", entry.RoomID, models.DefaultRoomID)
	}
	if !entry.CreatedAt.Equal(fixed) || !entry.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps = %v/%v, want %v", entry.CreatedAt, entry.UpdatedAt, fixed)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStoreCreateDefaults(t *testing.T) {
	store := NewStore(nil)

	c := candidate("09:00", "10:00")
	c.DisplayName = "   "
	c.Date = ""
	entry, err := store.Create(c)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.DisplayName != models.AnonymousName {
		t.Errorf("DisplayName = %q, want %q", entry.DisplayName, models.AnonymousName)
	}
	if entry.Date != models.Today() {
		t.Errorf("Date = %q, want today %q", entry.Date, models.Today())
	}
}

func TestStoreCreateValidation(t *testing.T) {
	store := NewStore(nil)

	tests := []struct {
		name   string
		mutate func(*models.ScheduleCandidate)
		field  string
	}{
		{"missing owner", func(c *models.ScheduleCandidate) { c.OwnerID = " " }, "ownerId"},
		{"bad start time", func(c *models.ScheduleCandidate) { c.StartTime = "9:00" }, "startTime"},
		{"bad end time", func(c *models.ScheduleCandidate) { c.EndTime = "25:00" }, "endTime"},
		{"end before start", func(c *models.ScheduleCandidate) { c.StartTime = "10:00"; c.EndTime = "09:00" }, "endTime"},
		{"zero length window", func(c *models.ScheduleCandidate) { c.StartTime = "10:00"; c.EndTime = "10:00" }, "endTime"},
		{"comfort too low", func(c *models.ScheduleCandidate) { c.ComfortLevel = 10 }, "comfortLevel"},
		{"comfort too high", func(c *models.ScheduleCandidate) { c.ComfortLevel = 35 }, "comfortLevel"},
		{"bad date", func(c *models.ScheduleCandidate) { c.Date = "01-09-2026" }, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("09:00", "10:00")
			tt.mutate(&c)
			_, err := store.Create(c)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create() error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", verr.Field, tt.field)
			}
			if store.Len() != 0 {
				t.Errorf("rejected create mutated the store, Len() = %d", store.Len())
			}
		})
	}
}

func TestStoreCreateConflict(t *testing.T) {
	store := NewStore(nil)

	first, err := store.Create(candidate("09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = store.Create(candidate("09:30", "10:30"))
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("Create() error = %v, want ConflictError", err)
	}
	if len(ce.Conflicts) != 1 || ce.Conflicts[0].ID != first.ID {
		t.Errorf("ConflictError.Conflicts = %v, want the blocking entry", ce.Conflicts)
	}
	if store.Len() != 1 {
		t.Errorf("rejected create mutated the store, Len() = %d", store.Len())
	}
}

func TestStoreCreateTouchingWindows(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.Create(candidate("09:00", "10:00")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(candidate("10:00", "11:00")); err != nil {
		t.Fatalf("Create() touching window error = %v, want success", err)
	}
	if _, err := store.Create(candidate("08:00", "09:00")); err != nil {
		t.Fatalf("Create() touching window before error = %v, want success", err)
	}
}

func TestStoreUpdate(t *testing.T) {
	fixed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := fixed
	store := NewStore(nil, WithClock(func() time.Time { return clock }))

	entry, err := store.Create(candidate("09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clock = fixed.Add(time.Hour)
	start, end := "11:00", "12:00"
	updated, err := store.Update(entry.ID, models.SchedulePatch{StartTime: &start, EndTime: &end})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.StartTime != "11:00" || updated.EndTime != "12:00" {
		t.Errorf("Update() window = %s-%s, want 11:00-12:00", updated.StartTime, updated.EndTime)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", updated.UpdatedAt, updated.CreatedAt)
	}
}

func TestStoreUpdateSelfOverlap(t *testing.T) {
	store := NewStore(nil)

	entry, err := store.Create(candidate("09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Shift into a window overlapping the entry's own previous position.
	start, end := "09:30", "10:30"
	if _, err := store.Update(entry.ID, models.SchedulePatch{StartTime: &start, EndTime: &end}); err != nil {
		t.Fatalf("Update() overlapping own previous window error = %v, want success", err)
	}
}

func TestStoreUpdateConflict(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.Create(candidate("09:00", "10:00")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := store.Create(candidate("11:00", "12:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	start := "09:30"
	_, err = store.Update(second.ID, models.SchedulePatch{StartTime: &start})
	if !IsConflict(err) {
		t.Fatalf("Update() into occupied window error = %v, want ConflictError", err)
	}

	// Rejected update leaves the entry untouched.
	got, err := store.Get(second.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StartTime != "11:00" {
		t.Errorf("rejected update mutated entry, StartTime = %q", got.StartTime)
	}
}

func TestStoreUpdateNotFound(t *testing.T) {
	store := NewStore(nil)
	_, err := store.Update(uuid.New(), models.SchedulePatch{})
	if !IsNotFound(err) {
		t.Fatalf("Update() error = %v, want NotFoundError", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(nil)

	entry, err := store.Create(candidate("09:00", "10:00"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	removed, err := store.Delete(entry.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed.ID != entry.ID {
		t.Errorf("Delete() returned %v, want %v", removed.ID, entry.ID)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after delete, want 0", store.Len())
	}

	if _, err := store.Delete(entry.ID); !IsNotFound(err) {
		t.Errorf("second Delete() error = %v, want NotFoundError", err)
	}

	// No residual conflict: the identical window is free again.
	if _, err := store.Create(candidate("09:00", "10:00")); err != nil {
		t.Fatalf("Create() after delete error = %v, want success", err)
	}
}

func TestStoreListOrderAndIsolation(t *testing.T) {
	store := NewStore(nil)

	first, _ := store.Create(candidate("08:00", "09:00"))
	second, _ := store.Create(candidate("10:00", "11:00"))

	list := store.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("List() not in insertion order: %v", list)
	}

	list[0].StartTime = "00:00"
	got, _ := store.Get(first.ID)
	if got.StartTime != "08:00" {
		t.Error("mutating a listed entry leaked into the store")
	}
}

func TestStoreBroadcastOrder(t *testing.T) {
	rec := &recordingBroadcaster{}
	store := NewStore(rec)

	entry, _ := store.Create(candidate("09:00", "10:00"))
	level := 25
	if _, err := store.Update(entry.ID, models.SchedulePatch{ComfortLevel: &level}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := store.Delete(entry.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	want := []string{models.EventScheduleCreated, models.EventScheduleUpdated, models.EventScheduleDeleted}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("broadcast count = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("broadcast[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStoreConcurrentCreateRace(t *testing.T) {
	store := NewStore(nil)

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create(candidate("09:00", "10:00"))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !IsConflict(err) {
			t.Errorf("unexpected error %v, want ConflictError", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d concurrent creates of the same window succeeded, want exactly 1", ok)
	}
}
