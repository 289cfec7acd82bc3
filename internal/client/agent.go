// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package client

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/thermoshare/thermoshare/internal/config"
	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/models"
)

// Status is the agent's connection state, readable at any time without
// blocking on transport activity.
type Status struct {
	Connected         bool
	ReconnectAttempts int
}

// frame is the websocket wire envelope in both directions.
type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Agent maintains a live replica over a websocket connection. When the
// connection drops it reconnects with a linearly growing delay, up to a
// bounded number of attempts; past the budget it stops for good and Run
// returns ErrRetriesExhausted. A successful reconnect resets the budget,
// and the full-state snapshot received on rejoin repairs anything missed
// while disconnected.
type Agent struct {
	url     string
	cfg     config.ClientConfig
	replica *Replica
	dialer  *gorillaws.Dialer

	// OnError, when set, receives per-session error frames (conflict and
	// validation rejections of this agent's own requests).
	OnError func(models.ErrorEvent)

	mu     sync.RWMutex
	status Status
	conn   *gorillaws.Conn
}

// NewAgent returns an agent for the given websocket URL (ws://.../api/v1/ws).
// The replica starts empty and fills on first connect.
func NewAgent(url string, cfg config.ClientConfig) *Agent {
	return &Agent{
		url:     url,
		cfg:     cfg,
		replica: NewReplica(),
		dialer: &gorillaws.Dialer{
			HandshakeTimeout: cfg.RequestTimeout,
		},
	}
}

// Replica returns the agent's local schedule copy.
func (a *Agent) Replica() *Replica {
	return a.replica
}

// Status returns the current connection state.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Run connects and processes frames until ctx is cancelled or the
// reconnection budget is exhausted.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
		if err != nil {
			if retryErr := a.backoff(ctx, err); retryErr != nil {
				return retryErr
			}
			continue
		}

		a.setConnected(conn)
		logging.Info().Str("url", a.url).Msg("agent connected")

		readErr := a.readLoop(ctx, conn)
		a.setDisconnected()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryErr := a.backoff(ctx, readErr); retryErr != nil {
			return retryErr
		}
	}
}

// backoff records a failed attempt and sleeps attempt*base before the next
// one. It returns ErrRetriesExhausted when the budget is spent.
func (a *Agent) backoff(ctx context.Context, cause error) error {
	a.mu.Lock()
	a.status.ReconnectAttempts++
	attempt := a.status.ReconnectAttempts
	a.mu.Unlock()

	if attempt > a.cfg.MaxReconnectAttempts {
		logging.Error().Err(cause).
			Int("attempts", attempt-1).
			Msg("agent giving up")
		return ErrRetriesExhausted
	}

	delay := time.Duration(attempt) * a.cfg.ReconnectBaseDelay
	logging.Warn().Err(cause).
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("agent reconnecting")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Agent) setConnected(conn *gorillaws.Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = conn
	a.status = Status{Connected: true, ReconnectAttempts: 0}
}

func (a *Agent) setDisconnected() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = nil
	a.status.Connected = false
}

// readLoop applies inbound frames to the replica until the connection fails.
func (a *Agent) readLoop(ctx context.Context, conn *gorillaws.Conn) error {
	// Unblock ReadJSON on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		a.apply(f)
	}
}

// apply routes one server frame into the replica. Unknown frame types are
// skipped so protocol additions do not break older agents.
func (a *Agent) apply(f frame) {
	switch f.Type {
	case models.EventFullState:
		var state models.FullState
		if err := json.Unmarshal(f.Data, &state); err != nil {
			logging.Warn().Err(err).Msg("bad full_state frame")
			return
		}
		a.replica.ReplaceAll(state)

	case models.EventScheduleCreated, models.EventScheduleUpdated:
		var ev models.ScheduleEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil || ev.Entry == nil {
			logging.Warn().Err(err).Str("type", f.Type).Msg("bad schedule frame")
			return
		}
		a.replica.Upsert(ev.Entry, ev.Counts)

	case models.EventScheduleDeleted:
		var ev models.ScheduleEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil || ev.Entry == nil {
			logging.Warn().Err(err).Msg("bad schedule_deleted frame")
			return
		}
		a.replica.Remove(ev.Entry.ID, ev.Counts)

	case models.EventPresenceUpdated:
		var ev models.PresenceEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			logging.Warn().Err(err).Msg("bad presence_updated frame")
			return
		}
		a.replica.SetPresence(ev.Names, ev.Counts)

	case models.EventError:
		var ev models.ErrorEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			logging.Warn().Err(err).Msg("bad error frame")
			return
		}
		logging.Warn().Str("code", ev.Code).Str("message", ev.Message).Msg("server rejected request")
		if a.OnError != nil {
			a.OnError(ev)
		}

	case models.EventPong:
		// Keepalive reply, nothing to apply.

	default:
		logging.Debug().Str("type", f.Type).Msg("ignoring unknown frame")
	}
}

// send marshals and writes one frame. It fails fast when disconnected; the
// caller retries after the next reconnect rather than queueing blind.
func (a *Agent) send(frameType string, payload interface{}) error {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()
	if conn == nil {
		return &TransportError{Op: frameType, Err: ErrNotConnected}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: frameType, Err: err}
	}
	if err := conn.WriteJSON(frame{Type: frameType, Data: data}); err != nil {
		return &TransportError{Op: frameType, Err: err}
	}
	return nil
}

// CreateSchedule submits a new schedule. Acceptance arrives as a
// schedule_created broadcast; rejection arrives on OnError.
func (a *Agent) CreateSchedule(candidate models.ScheduleCandidate) error {
	return a.send(models.FrameScheduleCreate, candidate)
}

// DeleteSchedule requests removal of the entry with the given id.
func (a *Agent) DeleteSchedule(id string) error {
	return a.send(models.FrameScheduleDelete, map[string]string{"id": id})
}

// UpdateUserName announces this session's display name for presence.
func (a *Agent) UpdateUserName(name string) error {
	return a.send(models.FrameUpdateUserName, map[string]string{"userName": name})
}

// Ping sends a keepalive probe; the server answers with a pong frame.
func (a *Agent) Ping() error {
	return a.send(models.FramePing, nil)
}
