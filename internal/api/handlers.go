// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/thermoshare/thermoshare/internal/config"
	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/models"
	"github.com/thermoshare/thermoshare/internal/validation"
	ws "github.com/thermoshare/thermoshare/internal/websocket"
)

// Handler serves the REST mutation surface. It performs the same store
// operations as the socket frames, so clients that cannot hold a persistent
// connection stay first-class.
type Handler struct {
	schedules ws.ScheduleService
	updater   ScheduleUpdater
	presence  ws.PresenceService
	hub       *ws.Hub
	cfg       *config.Config
	startedAt time.Time
}

// ScheduleUpdater is the update surface, separate from ws.ScheduleService
// because the socket catalogue has no update frame. Satisfied by
// *schedule.Store.
type ScheduleUpdater interface {
	Update(id uuid.UUID, patch models.SchedulePatch) (*models.ScheduleEntry, error)
}

// NewHandler creates the REST handler.
func NewHandler(schedules ws.ScheduleService, updater ScheduleUpdater, presence ws.PresenceService, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		schedules: schedules,
		updater:   updater,
		presence:  presence,
		hub:       hub,
		cfg:       cfg,
		startedAt: time.Now().UTC(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"sessions":       h.hub.ClientCount(),
	})
}

// ListSchedules returns every entry in insertion order plus derived counts.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	entries := h.schedules.List()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"schedules": entries,
		"counts": models.DerivedCounts{
			ActiveUsers:    h.presence.Count(),
			TotalSchedules: len(entries),
		},
	})
}

// CreateSchedule validates and commits a candidate entry. The broadcast to
// connected sessions has been handed off before the response is written.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var candidate models.ScheduleCandidate
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "malformed JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&candidate); verr != nil {
		respondError(w, http.StatusUnprocessableEntity, models.ErrCodeValidationFailed, verr.Error(), verr.Fields())
		return
	}

	entry, err := h.schedules.Create(candidate)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, entry)
}

// UpdateSchedule merges a patch onto an existing entry and re-checks the
// conflict invariant.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid schedule id", nil)
		return
	}

	var patch models.SchedulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "malformed JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&patch); verr != nil {
		respondError(w, http.StatusUnprocessableEntity, models.ErrCodeValidationFailed, verr.Error(), verr.Fields())
		return
	}

	entry, err := h.updater.Update(id, patch)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, entry)
}

// DeleteSchedule removes an entry and returns it.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid schedule id", nil)
		return
	}

	entry, err := h.schedules.Delete(id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, entry)
}

// Presence returns the claimed display names and the active-user count.
func (h *Handler) Presence(w http.ResponseWriter, r *http.Request) {
	names := h.presence.Names()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"activeUserNames": names,
		"activeUsers":     len(names),
	})
}

// WebSocket upgrades the connection and hands it to the hub as a new
// session.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := gorillaws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: h.cfg.WebSocket.HandshakeTimeout,
		CheckOrigin:      h.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// checkOrigin validates browser origins against the configured allow list.
// Requests without an Origin header come from non-browser clients (the
// reconciliation agent, curl) and are allowed; CORS does not apply to them.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected from unauthorized origin")
	return false
}
