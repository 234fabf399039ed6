// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ocwarden/internal/auth"
	"github.com/tomtom215/ocwarden/internal/config"
	"github.com/tomtom215/ocwarden/internal/middleware"
	"github.com/tomtom215/ocwarden/internal/websocket"
)

// Router builds the chi route tree for the admin API.
type Router struct {
	handler       *Handler
	authenticator *auth.Authenticator
	hub           *websocket.Hub
	corsOrigins   []string
}

// NewRouter wires a router from its collaborators.
func NewRouter(handler *Handler, authenticator *auth.Authenticator, hub *websocket.Hub, cfg config.ServerConfig) *Router {
	return &Router{
		handler:       handler,
		authenticator: authenticator,
		hub:           hub,
		corsOrigins:   cfg.CORSOrigins,
	}
}

// Setup returns the complete HTTP handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global stack, applied to every route.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Handle("/metrics", promhttp.Handler())

	// Generous rate limit for monitoring probes.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.Limit(1000, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Login gets the strictest limit to slow brute forcing.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.Limit(5, 5*time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/login", router.handler.Login)
	})

	// Authenticated admin surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Use(middleware.Prometheus)
		r.Use(router.authenticator.Middleware)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", router.handler.ListAccounts)
			r.Post("/", router.handler.CreateAccount)
			r.Route("/{username}", func(r chi.Router) {
				r.Get("/", router.handler.GetAccount)
				r.Put("/", router.handler.UpdateAccount)
				r.Delete("/", router.handler.DeleteAccount)
				r.Post("/password", router.handler.SetAccountPassword)
				r.Post("/reset", router.handler.ResetAccountQuota)
				r.Post("/extend", router.handler.ExtendAccountExpiry)
				r.Post("/disconnect", router.handler.DisconnectAccount)
			})
		})

		r.Get("/sessions", router.handler.ListSessions)
		r.Delete("/sessions/{id}", router.handler.DisconnectSession)

		r.Get("/bans", router.handler.ListBans)
		r.Delete("/bans/{address}", router.handler.Unban)

		r.Get("/stats/quota", router.handler.QuotaStats)
		r.Get("/stats/alerts", router.handler.QuotaAlerts)
		r.Get("/daemon/status", router.handler.DaemonStatus)
	})

	// The event feed authenticates like the rest of the API but skips the
	// Prometheus wrapper: the instrumented writer does not support the
	// connection hijack the websocket upgrade needs.
	r.Route("/api/v1/ws", func(r chi.Router) {
		r.Use(router.authenticator.Middleware)
		r.Get("/events", router.hub.ServeWS)
	})

	return r
}
