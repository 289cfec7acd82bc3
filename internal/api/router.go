// Thermoshare - Collaborative Appliance Schedule Coordination
// Copyright 2026 Thermoshare Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/thermoshare/thermoshare

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thermoshare/thermoshare/internal/config"
	"github.com/thermoshare/thermoshare/internal/middleware"
)

// NewRouter wires the REST surface with the shared middleware stack.
func NewRouter(cfg *config.Config, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// The websocket route stays outside the rate limiter: one upgrade
		// per session, then the connection is long-lived.
		r.Get("/ws", handler.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow))
			r.Use(middleware.Prometheus)

			r.Get("/health", handler.Health)
			r.Get("/presence", handler.Presence)
			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", handler.ListSchedules)
				r.Post("/", handler.CreateSchedule)
				r.Put("/{id}", handler.UpdateSchedule)
				r.Delete("/{id}", handler.DeleteSchedule)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
