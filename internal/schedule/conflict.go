// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package schedule

import (
	"github.com/thermoshare/thermoshare/internal/models"
)

// FindConflicts returns every entry in existing whose time window overlaps
// the candidate's on the same date. It is a pure function: no ordering or
// locking assumptions, no mutation.
//
// Overlap uses the half-open interval rule on minute-of-day values:
// [s1,e1) and [s2,e2) conflict iff s1 < e2 && e1 > s2, so an entry ending
// exactly when another starts is not a conflict. An entry whose id equals
// the candidate's own id is skipped, which makes the same function usable
// for update-style re-checks.
//
// Entries with unparsable clock values cannot overlap anything; they are
// rejected at the store boundary before ever reaching the set.
func FindConflicts(candidate *models.ScheduleEntry, existing []*models.ScheduleEntry) []*models.ScheduleEntry {
	s1, err := models.MinuteOfDay(candidate.StartTime)
	if err != nil {
		return nil
	}
	e1, err := models.MinuteOfDay(candidate.EndTime)
	if err != nil {
		return nil
	}

	var conflicts []*models.ScheduleEntry
	for _, other := range existing {
		if other.Date != candidate.Date {
			continue
		}
		if other.ID == candidate.ID {
			continue
		}
		s2, err := models.MinuteOfDay(other.StartTime)
		if err != nil {
			continue
		}
		e2, err := models.MinuteOfDay(other.EndTime)
		if err != nil {
			continue
		}
		if s1 < e2 && e1 > s2 {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts
}
