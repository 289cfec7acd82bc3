// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package schedule

import (
	"testing"

	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/models"
)

func entryAt(start, end, date string) *models.ScheduleEntry {
	return &models.ScheduleEntry{
		ID:        uuid.New(),
		OwnerID:   "owner",
		StartTime: start,
		EndTime:   end,
		Date:      date,
	}
}

func TestFindConflicts(t *testing.T) {
	tests := []struct {
		name      string
		candidate *models.ScheduleEntry
		existing  []*models.ScheduleEntry
		want      int
	}{
		{
			name:      "empty set",
			candidate: entryAt("09:00", "10:00", "2026-09-01"),
			want:      0,
		},
		{
			name:      "identical window",
			candidate: entryAt("09:00", "10:00", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      1,
		},
		{
			name:      "partial overlap at end",
			candidate: entryAt("09:30", "10:30", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      1,
		},
		{
			name:      "partial overlap at start",
			candidate: entryAt("08:30", "09:30", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      1,
		},
		{
			name:      "candidate contains existing",
			candidate: entryAt("08:00", "12:00", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      1,
		},
		{
			name:      "existing contains candidate",
			candidate: entryAt("09:15", "09:45", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      1,
		},
		{
			name:      "touching windows do not conflict",
			candidate: entryAt("10:00", "11:00", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      0,
		},
		{
			name:      "touching windows before",
			candidate: entryAt("08:00", "09:00", "2026-09-01"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      0,
		},
		{
			name:      "same window different dates",
			candidate: entryAt("09:00", "10:00", "2026-09-02"),
			existing:  []*models.ScheduleEntry{entryAt("09:00", "10:00", "2026-09-01")},
			want:      0,
		},
		{
			name:      "multiple conflicts all reported",
			candidate: entryAt("08:00", "12:00", "2026-09-01"),
			existing: []*models.ScheduleEntry{
				entryAt("08:30", "09:00", "2026-09-01"),
				entryAt("09:30", "10:00", "2026-09-01"),
				entryAt("13:00", "14:00", "2026-09-01"),
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflicts(tt.candidate, tt.existing)
			if len(got) != tt.want {
				t.Fatalf("FindConflicts() returned %d conflicts, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFindConflictsSkipsSelf(t *testing.T) {
	existing := entryAt("09:00", "10:00", "2026-09-01")

	moved := *existing
	moved.StartTime = "09:30"
	moved.EndTime = "10:30"

	got := FindConflicts(&moved, []*models.ScheduleEntry{existing})
	if len(got) != 0 {
		t.Fatalf("entry conflicts with its own previous version: %d conflicts", len(got))
	}
}
