// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package models

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one live connection. A single user or device may hold
// several sessions at once (one per tab); SessionID is never reused after
// the connection closes.
type Session struct {
	SessionID   uuid.UUID `json:"sessionId"`
	DisplayName string    `json:"displayName,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// DerivedCounts is attached to every broadcast so clients can render the
// aggregate view without a follow-up request.
type DerivedCounts struct {
	// ActiveUsers is the size of the presence aggregate: distinct
	// non-empty, non-anonymous display names across live sessions.
	ActiveUsers int `json:"activeUsers"`

	// TotalSchedules is the number of entries currently in the store.
	TotalSchedules int `json:"totalSchedules"`
}
