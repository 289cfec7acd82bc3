// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/thermoshare/thermoshare/internal/config"
	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/models"
)

// envelope mirrors the REST response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Conflicts []*models.ScheduleEntry `json:"conflicts,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// listData is the GET /schedules response body.
type listData struct {
	Schedules []*models.ScheduleEntry `json:"schedules"`
	Counts    models.DerivedCounts    `json:"counts"`
}

// presenceData is the GET /presence response body.
type presenceData struct {
	Names []string `json:"activeUserNames"`
	Count int      `json:"activeUsers"`
}

// Poller keeps a replica converged by re-fetching the full schedule list on
// an interval instead of holding a connection. Fetches flow through a
// circuit breaker so a down server costs one fast-failed call per interval
// instead of a hung request. "Connected" here means the last poll succeeded.
type Poller struct {
	base     string
	cfg      config.ClientConfig
	replica  *Replica
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*listData]
	interval time.Duration

	mu     sync.RWMutex
	status Status
}

// NewPoller returns a poller for the given API base URL
// (http://host:port/api/v1, no trailing slash).
func NewPoller(base string, cfg config.ClientConfig) *Poller {
	p := &Poller{
		base:     strings.TrimRight(base, "/"),
		cfg:      cfg,
		replica:  NewReplica(),
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		interval: cfg.PollInterval,
	}
	p.breaker = gobreaker.NewCircuitBreaker[*listData](gobreaker.Settings{
		Name:    "thermoshare-poll",
		Timeout: cfg.PollInterval * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("poll breaker state change")
		},
	})
	return p
}

// Replica returns the poller's local schedule copy.
func (p *Poller) Replica() *Replica {
	return p.replica
}

// Status returns the current poll health. ReconnectAttempts counts
// consecutive failed polls.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	state, err := p.breaker.Execute(func() (*listData, error) {
		return p.fetchList(ctx)
	})
	if err != nil {
		p.mu.Lock()
		p.status.Connected = false
		p.status.ReconnectAttempts++
		attempts := p.status.ReconnectAttempts
		p.mu.Unlock()
		logging.Warn().Err(err).Int("failures", attempts).Msg("poll failed")
		return
	}

	full := models.FullState{Schedules: state.Schedules, Counts: state.Counts}
	if names, err := p.fetchPresence(ctx); err == nil {
		full.Names = names
	}
	p.replica.ReplaceAll(full)

	p.mu.Lock()
	p.status = Status{Connected: true, ReconnectAttempts: 0}
	p.mu.Unlock()
}

func (p *Poller) fetchList(ctx context.Context) (*listData, error) {
	var data listData
	if err := p.get(ctx, "/schedules", &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (p *Poller) fetchPresence(ctx context.Context) ([]string, error) {
	var data presenceData
	if err := p.get(ctx, "/presence", &data); err != nil {
		return nil, err
	}
	return data.Names, nil
}

// get performs one GET and decodes the envelope's data field into out.
func (p *Poller) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path, nil)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	if !env.Success {
		return requestError(env, resp.StatusCode)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Op: "GET " + path, Err: err}
	}
	return nil
}

// CreateSchedule submits a candidate over REST and applies the accepted
// entry to the replica without waiting for the next poll.
func (p *Poller) CreateSchedule(ctx context.Context, candidate models.ScheduleCandidate) (*models.ScheduleEntry, error) {
	body, err := json.Marshal(candidate)
	if err != nil {
		return nil, &TransportError{Op: "create schedule", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/schedules", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "create schedule", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	entry, err := p.doEntry(req)
	if err != nil {
		return nil, err
	}
	counts := p.replica.Counts()
	counts.TotalSchedules = p.replica.Len() + 1
	p.replica.Upsert(entry, counts)
	return entry, nil
}

// DeleteSchedule removes an entry over REST and drops it from the replica.
func (p *Poller) DeleteSchedule(ctx context.Context, id string) (*models.ScheduleEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.base+"/schedules/"+id, nil)
	if err != nil {
		return nil, &TransportError{Op: "delete schedule", Err: err}
	}
	entry, err := p.doEntry(req)
	if err != nil {
		return nil, err
	}
	counts := p.replica.Counts()
	if counts.TotalSchedules > 0 {
		counts.TotalSchedules--
	}
	p.replica.Remove(entry.ID, counts)
	return entry, nil
}

func (p *Poller) doEntry(req *http.Request) (*models.ScheduleEntry, error) {
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	if !env.Success {
		return nil, requestError(env, resp.StatusCode)
	}
	var entry models.ScheduleEntry
	if err := json.Unmarshal(env.Data, &entry); err != nil {
		return nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
	}
	return &entry, nil
}

func decodeEnvelope(body io.Reader) (*envelope, error) {
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	return &env, nil
}

func requestError(env *envelope, statusCode int) error {
	re := &RequestError{
		Code:      models.ErrCodeInternalError,
		Message:   fmt.Sprintf("server returned status %d", statusCode),
		Conflicts: env.Conflicts,
	}
	if env.Error != nil {
		re.Code = env.Error.Code
		re.Message = env.Error.Message
	}
	if env.Message != "" {
		re.Message = env.Message
	}
	return re
}
