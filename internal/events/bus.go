// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package events carries committed store and presence mutations from their
// owning components to the websocket fan-out layer over an in-process
// Watermill Pub/Sub. A single topic keeps bus order identical to commit
// order, which the per-session delivery guarantee builds on.
package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/metrics"
	"github.com/thermoshare/thermoshare/internal/models"
)

// Topic is the single bus topic for all broadcast events.
const Topic = "thermoshare.events"

// metadataType is the message metadata key holding the event type.
const metadataType = "type"

// Envelope is the serialized form of one bus event.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PresenceSource exposes the presence aggregate to schedule events.
type PresenceSource interface {
	Count() int
}

// StoreSource exposes the store size to presence events.
type StoreSource interface {
	Len() int
}

// Bus implements schedule.Broadcaster and presence.Broadcaster on top of a
// Watermill gochannel Pub/Sub. It completes the derived counts on each
// event: the publishing component supplies its own count, the bus reads the
// other side's. Neither read re-enters the publisher's lock.
type Bus struct {
	pubsub   *gochannel.GoChannel
	presence PresenceSource
	store    StoreSource
}

// NewBus creates the bus with the given output channel buffer. Publishing
// blocks only when a subscriber's buffer is full.
func NewBus(buffer int) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(buffer)},
		NewWatermillLogger(),
	)
	return &Bus{pubsub: pubsub}
}

// Bind attaches the count sources. Must be called before the first mutation;
// split from NewBus because the store and tracker are constructed with the
// bus as their broadcaster.
func (b *Bus) Bind(store StoreSource, presence PresenceSource) {
	b.store = store
	b.presence = presence
}

// ScheduleChanged implements schedule.Broadcaster.
func (b *Bus) ScheduleChanged(eventType string, entry *models.ScheduleEntry, totalSchedules int) {
	counts := models.DerivedCounts{TotalSchedules: totalSchedules}
	if b.presence != nil {
		counts.ActiveUsers = b.presence.Count()
	}
	b.publish(eventType, models.ScheduleEvent{Entry: entry, Counts: counts})
}

// PresenceChanged implements presence.Broadcaster.
func (b *Bus) PresenceChanged(names []string, activeUsers int) {
	counts := models.DerivedCounts{ActiveUsers: activeUsers}
	if b.store != nil {
		counts.TotalSchedules = b.store.Len()
	}
	if names == nil {
		names = []string{}
	}
	b.publish(models.EventPresenceUpdated, models.PresenceEvent{Names: names, Counts: counts})
}

// Subscribe returns the ordered event stream for a forwarder. The channel
// closes when ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, Topic)
}

// Close shuts down the Pub/Sub, closing all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

func (b *Bus) publish(eventType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal bus event")
		return
	}
	payload, err := json.Marshal(Envelope{Type: eventType, Data: raw})
	if err != nil {
		logging.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal bus envelope")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataType, eventType)

	if err := b.pubsub.Publish(Topic, msg); err != nil {
		logging.Error().Err(err).Str("event_type", eventType).Msg("failed to publish bus event")
		return
	}
	metrics.BusEventsPublished.WithLabelValues(eventType).Inc()
}

// DecodeEnvelope parses a bus message payload.
func DecodeEnvelope(msg *message.Message) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return nil, fmt.Errorf("decode bus envelope: %w", err)
	}
	if env.Type == "" {
		env.Type = msg.Metadata.Get(metadataType)
	}
	return &env, nil
}
