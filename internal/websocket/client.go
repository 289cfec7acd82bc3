// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/models"
	"github.com/thermoshare/thermoshare/internal/schedule"
)

// clientIDCounter orders sessions for deterministic broadcast iteration.
var clientIDCounter atomic.Uint64

// Client is the middleman between one websocket connection and the hub. It
// owns the session identity: a fresh sessionId on connect, never reused, and
// the display name the session has claimed (if any).
type Client struct {
	id      uint64
	session models.Session
	hub     *Hub
	conn    *websocket.Conn
	send    chan Message

	mu     sync.Mutex
	name   string
	closed bool
}

// NewClient wraps an upgraded connection into a session. The session is not
// live until it is registered with the hub and Start is called.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id: clientIDCounter.Add(1),
		session: models.Session{
			SessionID:   uuid.New(),
			ConnectedAt: time.Now().UTC(),
		},
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.config.SendBuffer),
	}
}

// Session returns the session identity record.
func (c *Client) Session() models.Session {
	return c.session
}

// Name returns the display name this session currently claims, or "".
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// enqueue queues a frame on the session's ordered send channel. Used by the
// hub (registration snapshot, broadcasts) and by the read pump (error and
// pong frames). Safe against the channel being closed by the hub.
func (c *Client) enqueue(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// Queue full; the hub's broadcast path notices and drops the
		// session. Nothing useful to do from here.
	}
}

// markClosed records that the hub closed the send channel.
func (c *Client) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// inboundFrame is the client -> server wire shape.
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// readPump consumes frames from the connection until it closes, then hands
// the session to the hub for teardown. Transport close, clean or not,
// promptly triggers the terminal Disconnected transition.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.config.MaxMessageBytes)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.config.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.config.PongWait))
	})

	for {
		var frame inboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).
					Str("session_id", c.session.SessionID.String()).
					Msg("unexpected websocket close")
			}
			return
		}
		c.handleFrame(frame)
	}
}

// handleFrame dispatches one inbound frame. Mutations go through the same
// store operations as the REST surface; failures come back to this session
// only, as an error frame.
func (c *Client) handleFrame(frame inboundFrame) {
	switch frame.Type {
	case models.FramePing:
		c.enqueue(Message{Type: models.EventPong})

	case models.FrameUpdateUserName:
		var payload struct {
			UserName string `json:"userName"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			c.sendError(models.ErrCodeBadRequest, "update_user_name wants {userName}", nil)
			return
		}
		old := c.Name()
		c.setName(payload.UserName)
		c.hub.presence.Rename(old, payload.UserName)

	case models.FrameScheduleCreate:
		var candidate models.ScheduleCandidate
		if err := json.Unmarshal(frame.Data, &candidate); err != nil {
			c.sendError(models.ErrCodeBadRequest, "schedule_create wants a schedule candidate", nil)
			return
		}
		if _, err := c.hub.schedules.Create(candidate); err != nil {
			c.sendStoreError(err)
		}

	case models.FrameScheduleDelete:
		var payload struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			c.sendError(models.ErrCodeBadRequest, "schedule_delete wants {id}", nil)
			return
		}
		if _, err := c.hub.schedules.Delete(payload.ID); err != nil {
			c.sendStoreError(err)
		}

	default:
		logging.Debug().
			Str("frame_type", frame.Type).
			Str("session_id", c.session.SessionID.String()).
			Msg("ignoring unknown frame type")
	}
}

func (c *Client) sendStoreError(err error) {
	switch {
	case schedule.IsConflict(err):
		ce, _ := schedule.AsConflict(err)
		c.sendError(models.ErrCodeConflict, ce.Error(), ce.Conflicts)
	case schedule.IsValidation(err):
		c.sendError(models.ErrCodeValidationFailed, err.Error(), nil)
	case schedule.IsNotFound(err):
		c.sendError(models.ErrCodeNotFound, err.Error(), nil)
	default:
		c.sendError(models.ErrCodeInternalError, "internal error", nil)
	}
}

func (c *Client) sendError(code, message string, conflicts []*models.ScheduleEntry) {
	c.enqueue(Message{
		Type: models.EventError,
		Data: models.ErrorEvent{Code: code, Message: message, Conflicts: conflicts},
	})
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings. One goroutine per session; frames leave in
// exactly the order they were queued.
func (c *Client) writePump() {
	pingPeriod := c.hub.config.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				c.markClosed()
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logging.Warn().Err(err).
					Str("session_id", c.session.SessionID.String()).
					Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
