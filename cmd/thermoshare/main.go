// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

// Command thermoshare runs the schedule coordination server: the in-memory
// conflict-checked store, presence tracking, the REST surface and the
// websocket fan-out, all under one supervision tree.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/thermoshare/thermoshare/internal/api"
	"github.com/thermoshare/thermoshare/internal/config"
	"github.com/thermoshare/thermoshare/internal/events"
	"github.com/thermoshare/thermoshare/internal/logging"
	"github.com/thermoshare/thermoshare/internal/presence"
	"github.com/thermoshare/thermoshare/internal/schedule"
	"github.com/thermoshare/thermoshare/internal/supervisor"
	ws "github.com/thermoshare/thermoshare/internal/websocket"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Msg("thermoshare starting")

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("server exited")
	}
	logging.Info().Msg("thermoshare stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store and tracker publish through the bus; the bus reads them back for
	// the derived counts on the other component's events, so binding happens
	// after both exist.
	bus := events.NewBus(cfg.WebSocket.BusBuffer)
	defer bus.Close()

	store := schedule.NewStore(bus)
	tracker := presence.NewTracker(bus)
	bus.Bind(store, tracker)

	hub := ws.NewHub(ws.Config{
		SendBuffer:       cfg.WebSocket.SendBuffer,
		BroadcastBuffer:  cfg.WebSocket.BusBuffer,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		PongWait:         cfg.WebSocket.PongWait,
		WriteWait:        cfg.WebSocket.WriteWait,
		MaxMessageBytes:  cfg.WebSocket.MaxMessageBytes,
	}, store, tracker)
	forwarder := events.NewForwarder(bus, hub)

	handler := api.NewHandler(store, store, tracker, hub, cfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(cfg, handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMessagingService(hub)
	tree.AddMessagingService(forwarder)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	return tree.Serve(ctx)
}
