// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package schedule

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/models"
)

// ValidationError reports a malformed or out-of-range candidate field.
// It is terminal for the triggering request; nothing is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports that a candidate overlaps existing entries on the
// same date. Conflicts holds every overlapping entry; Error renders the
// first one the way the UI surfaces it.
type ConflictError struct {
	Conflicts []*models.ScheduleEntry
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "schedule conflict"
	}
	first := e.Conflicts[0]
	return fmt.Sprintf("schedule conflicts with %s (%s)", first.DisplayName, first.TimeRange())
}

// NotFoundError reports an update or delete referencing an unknown id.
type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schedule %s not found", e.ID)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// AsConflict extracts the ConflictError from err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
