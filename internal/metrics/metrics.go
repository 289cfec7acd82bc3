// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Package metrics provides Prometheus instrumentation for the thermoshare
// server. Metrics are exposed at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Schedule store metrics

	ScheduleEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermoshare_schedule_entries",
			Help: "Current number of schedule entries in the store",
		},
	)

	ScheduleConflictsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thermoshare_schedule_conflicts_rejected_total",
			Help: "Total number of mutations rejected by the conflict invariant",
		},
	)

	ScheduleValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thermoshare_schedule_validation_failures_total",
			Help: "Total number of mutations rejected by field validation",
		},
	)

	// Presence metrics

	PresenceActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermoshare_presence_active_users",
			Help: "Distinct claimed display names across live sessions",
		},
	)

	// WebSocket metrics

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "thermoshare_websocket_connections",
			Help: "Current number of connected websocket sessions",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermoshare_websocket_messages_sent_total",
			Help: "Total messages queued for delivery to sessions",
		},
		[]string{"type"},
	)

	WSSlowClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "thermoshare_websocket_slow_clients_dropped_total",
			Help: "Sessions disconnected because their send queue was full",
		},
	)

	// Event bus metrics

	BusEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermoshare_bus_events_published_total",
			Help: "Total events published on the in-process event bus",
		},
		[]string{"type"},
	)

	// HTTP metrics

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermoshare_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thermoshare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
