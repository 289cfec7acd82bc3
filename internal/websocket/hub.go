// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package websocket implements the fan-out side of schedule synchronization:
// the hub that tracks live sessions and pushes typed events to each of them
// over a single ordered per-session queue, and the per-connection client
// pumps with their session lifecycle (join snapshot, rename, teardown).
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/metrics"
	"github.com/thermoshare/thermoshare/internal/models"
)

// ScheduleService is the store surface the hub and its clients need.
// Satisfied by *schedule.Store.
type ScheduleService interface {
	List() []*models.ScheduleEntry
	Len() int
	Create(candidate models.ScheduleCandidate) (*models.ScheduleEntry, error)
	Delete(id uuid.UUID) (*models.ScheduleEntry, error)
}

// PresenceService is the tracker surface the hub and its clients need.
// Satisfied by *presence.Tracker.
type PresenceService interface {
	Claim(name string)
	Release(name string)
	Rename(oldName, newName string)
	Count() int
	Names() []string
}

// Message is one frame on the websocket wire.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Config holds hub and connection tuning. Zero values fall back to the
// defaults below.
type Config struct {
	SendBuffer       int
	BroadcastBuffer  int
	HandshakeTimeout time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageBytes  int64
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = 256
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 * 1024
	}
	return c
}

// Hub maintains the set of live sessions and fans broadcast events out to
// every one of them. Each session has its own buffered send queue, so one
// slow connection never delays delivery to the rest; a session whose queue
// is full is disconnected and will resynchronize through the join snapshot
// when it reconnects.
type Hub struct {
	config    Config
	schedules ScheduleService
	presence  PresenceService

	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub over the given store and tracker.
func NewHub(cfg Config, schedules ScheduleService, presence PresenceService) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		config:     cfg,
		schedules:  schedules,
		presence:   presence,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, cfg.BroadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Serve runs the hub event loop until ctx is canceled, then closes every
// session. Designed for suture supervision; returns ctx.Err() on shutdown.
//
// Selection is priority based so behavior stays predictable when several
// channels are ready at once: shutdown first, then session lifecycle, then
// broadcasts.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.handleRegister(client)
			continue
		case client := <-h.Unregister:
			h.handleUnregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.handleRegister(client)
		case client := <-h.Unregister:
			h.handleUnregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Broadcast implements events.Sink: enqueue one typed event for fan-out.
// Never blocks; if the hub's intake queue is full the event is dropped with
// a warning rather than stalling the publisher.
func (h *Hub) Broadcast(eventType string, data json.RawMessage) {
	select {
	case h.broadcast <- Message{Type: eventType, Data: data}:
	default:
		logging.Warn().Str("event_type", eventType).Msg("broadcast queue full, dropping event")
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleRegister completes the Connecting -> Joined transition: the session
// is added to the fan-out set and its full-state snapshot is queued as the
// first frame on its send channel. Because the snapshot is taken after
// registration, it can never be older than a broadcast already flushed to
// other sessions before the join completed; a duplicate create arriving
// after the snapshot is absorbed by the replica's id-based upsert.
func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("session_id", client.session.SessionID.String()).
		Int("total_clients", total).
		Msg("session joined")

	client.enqueue(Message{Type: models.EventFullState, Data: h.fullState()})
}

// handleUnregister completes the terminal Joined -> Disconnected transition:
// the session leaves the fan-out set and its presence claim, if any, is
// released (which itself fans out a presence update to the remaining
// sessions).
func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.markClosed()
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	metrics.WSConnections.Set(float64(total))
	logging.Info().
		Str("session_id", client.session.SessionID.String()).
		Int("total_clients", total).
		Msg("session disconnected")

	if name := client.Name(); name != "" {
		h.presence.Release(name)
	}
}

// broadcastToClients delivers one message to every session in deterministic
// id order. Sessions whose send queue is full are disconnected rather than
// allowed to delay the others.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.WithLabelValues(message.Type).Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		client.markClosed()
		close(client.send)
		delete(h.clients, client)
		metrics.WSSlowClientsDropped.Inc()
		logging.Warn().
			Str("session_id", client.session.SessionID.String()).
			Msg("dropping slow session, send queue full")
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))

	// Release presence outside the clients lock; each release fans out its
	// own presence update.
	for _, client := range toRemove {
		if name := client.Name(); name != "" {
			h.presence.Release(name)
		}
	}
}

// fullState composes the join snapshot from the live store and tracker.
func (h *Hub) fullState() models.FullState {
	entries := h.schedules.List()
	names := h.presence.Names()
	return models.FullState{
		Schedules: entries,
		Names:     names,
		Counts: models.DerivedCounts{
			ActiveUsers:    len(names),
			TotalSchedules: len(entries),
		},
	}
}

// shutdown closes every session in id order.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.markClosed()
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}
