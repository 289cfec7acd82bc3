// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/thermoshare/thermoshare/internal/models"
)

// ErrRetriesExhausted is returned by Agent.Run once the reconnection budget
// is spent. The agent does not retry past it.
var ErrRetriesExhausted = errors.New("reconnection attempts exhausted")

// ErrNotConnected is the cause inside a TransportError for frames sent
// while no connection is up.
var ErrNotConnected = errors.New("not connected")

// TransportError wraps a network-level failure of a client operation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a transport failure caused by a
// deadline: a poll or dial that ran past the configured request timeout.
// Timeouts are recoverable; the next attempt may succeed.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// RequestError is a request the server rejected, carrying the server's
// error code. Conflicts holds the blocking entries when the code is
// CONFLICT.
type RequestError struct {
	Code      string
	Message   string
	Conflicts []*models.ScheduleEntry
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConflict reports whether err is a server conflict rejection.
func IsConflict(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Code == models.ErrCodeConflict
}
