// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package events

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/thermoshare/thermoshare/internal/logging"
)

// Sink receives decoded bus events in publish order. Satisfied by the
// websocket hub.
type Sink interface {
	Broadcast(eventType string, data json.RawMessage)
}

// Forwarder drains the bus into a Sink from a single goroutine, preserving
// publish order end to end. It is designed to run under suture supervision:
// Serve blocks until the context is canceled.
type Forwarder struct {
	bus  *Bus
	sink Sink
}

// NewForwarder creates a bus-to-sink forwarder.
func NewForwarder(bus *Bus, sink Sink) *Forwarder {
	return &Forwarder{bus: bus, sink: sink}
}

// Serve implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	messages, err := f.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	logging.Info().Str("component", "event-forwarder").Msg("forwarder started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "event-forwarder").Msg("forwarder stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			env, err := DecodeEnvelope(msg)
			if err != nil {
				logging.Warn().Err(err).Msg("dropping undecodable bus event")
				msg.Ack()
				continue
			}
			f.sink.Broadcast(env.Type, env.Data)
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (f *Forwarder) String() string {
	return "event-forwarder"
}
