// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Comfort level bounds in degrees Celsius. Values outside this range are
// rejected at the store boundary; a zero value defaults to DefaultComfortLevel.
const (
	MinComfortLevel     = 16
	MaxComfortLevel     = 30
	DefaultComfortLevel = 22
)

// DefaultRoomID is the single global schedule space. The field exists as a
// multi-tenant extension point only; the server never partitions by it.
const DefaultRoomID = "default"

// AnonymousName is the sentinel display name that never counts toward the
// presence aggregate.
const AnonymousName = "Anonymous"

// DateLayout is the wire format for ScheduleEntry.Date.
const DateLayout = "2006-01-02"

// ReferenceLocation is the fixed timezone used when a candidate entry omits
// its date and "today" must be derived.
var ReferenceLocation = time.UTC

// ScheduleEntry is one scheduled time window with an associated comfort
// setting. ID, CreatedAt and UpdatedAt are assigned by the store and never
// trusted from clients.
type ScheduleEntry struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      string    `json:"ownerId"`
	DisplayName  string    `json:"displayName"`
	StartTime    string    `json:"startTime"` // "HH:MM"
	EndTime      string    `json:"endTime"`   // "HH:MM"
	Date         string    `json:"date"`      // "YYYY-MM-DD"
	ComfortLevel int       `json:"comfortLevel"`
	RoomID       string    `json:"roomId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ScheduleCandidate is the client-supplied shape for create requests.
// Everything the store assigns (id, timestamps) is deliberately absent.
type ScheduleCandidate struct {
	OwnerID      string `json:"ownerId" validate:"required,max=128"`
	DisplayName  string `json:"displayName" validate:"max=64"`
	StartTime    string `json:"startTime" validate:"required,clocktime"`
	EndTime      string `json:"endTime" validate:"required,clocktime"`
	Date         string `json:"date" validate:"omitempty,scheduledate"`
	ComfortLevel int    `json:"comfortLevel" validate:"omitempty,min=16,max=30"`
	RoomID       string `json:"roomId" validate:"max=64"`
}

// SchedulePatch carries the mutable fields of an update request. Nil fields
// are left untouched by the merge.
type SchedulePatch struct {
	DisplayName  *string `json:"displayName,omitempty" validate:"omitempty,max=64"`
	StartTime    *string `json:"startTime,omitempty" validate:"omitempty,clocktime"`
	EndTime      *string `json:"endTime,omitempty" validate:"omitempty,clocktime"`
	Date         *string `json:"date,omitempty" validate:"omitempty,scheduledate"`
	ComfortLevel *int    `json:"comfortLevel,omitempty" validate:"omitempty,min=16,max=30"`
}

// TimeRange formats the entry's window for human-readable conflict messages.
func (e *ScheduleEntry) TimeRange() string {
	return fmt.Sprintf("%s-%s", e.StartTime, e.EndTime)
}

// MinuteOfDay converts an "HH:MM" clock value to minutes since midnight.
// Returns an error for anything that is not a well-formed 24h clock value.
func MinuteOfDay(clock string) (int, error) {
	h, m, ok := splitClock(clock)
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", clock)
	}
	return h*60 + m, nil
}

// IsClockTime reports whether s is a well-formed "HH:MM" 24h clock value.
func IsClockTime(s string) bool {
	_, _, ok := splitClock(s)
	return ok
}

func splitClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// Today returns the current date in the reference location, formatted for
// ScheduleEntry.Date.
func Today() string {
	return time.Now().In(ReferenceLocation).Format(DateLayout)
}
