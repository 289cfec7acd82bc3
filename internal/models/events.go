// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package models

// Event types carried on the event bus and the websocket wire.
// Server → client broadcasts plus the per-session error frame.
const (
	EventFullState       = "full_state"
	EventScheduleCreated = "schedule_created"
	EventScheduleUpdated = "schedule_updated"
	EventScheduleDeleted = "schedule_deleted"
	EventPresenceUpdated = "presence_updated"
	EventError           = "error"
	EventPong            = "pong"
)

// Client → server frame types.
const (
	FrameScheduleCreate = "schedule_create"
	FrameScheduleDelete = "schedule_delete"
	FrameUpdateUserName = "update_user_name"
	FramePing           = "ping"
)

// ScheduleEvent is the payload for schedule_created, schedule_updated and
// schedule_deleted broadcasts.
type ScheduleEvent struct {
	Entry  *ScheduleEntry `json:"schedule"`
	Counts DerivedCounts  `json:"counts"`
}

// PresenceEvent is the payload for presence_updated broadcasts.
type PresenceEvent struct {
	Names  []string      `json:"activeUserNames"`
	Counts DerivedCounts `json:"counts"`
}

// FullState is the complete snapshot a session receives at join time.
type FullState struct {
	Schedules []*ScheduleEntry `json:"schedules"`
	Names     []string         `json:"activeUserNames"`
	Counts    DerivedCounts    `json:"counts"`
}

// ErrorEvent is delivered only to the session whose request failed.
type ErrorEvent struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Conflicts []*ScheduleEntry `json:"conflicts,omitempty"`
}
