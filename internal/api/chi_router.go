// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/threatcast/internal/middleware"
	"github.com/tomtom215/threatcast/internal/websocket"
)

// Router ties the REST handlers and the WebSocket endpoints to one Chi mux.
type Router struct {
	handler       *Handler
	ws            *websocket.Server
	chiMiddleware *ChiMiddleware
	latency       *middleware.LatencyMonitor
}

// NewRouter creates a router. ws may be nil when only the REST API is served.
func NewRouter(handler *Handler, ws *websocket.Server, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		ws:            ws,
		chiMiddleware: mw,
		latency:       handler.latency,
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Core API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		if router.latency != nil {
			r.Use(router.latency.Middleware)
		}

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chiMiddleware(middleware.Compression))

			r.Get("/events/recent", router.handler.EventsRecent)
			r.Get("/events/history", router.handler.EventsHistory)
			r.Get("/alerts/recent", router.handler.AlertsRecent)
			r.Get("/stats", router.handler.Stats)
			r.Get("/stats/realtime", router.handler.StatsRealtime)
			r.Get("/topology", router.handler.Topology)
			r.Get("/connections", router.handler.Connections)
			r.Get("/latency", router.handler.Latency)
		})

		r.With(router.chiMiddleware.RateLimitIngest()).Post("/ingest", router.handler.Ingest)
	})

	// ========================
	// WebSocket Endpoints
	// ========================
	if router.ws != nil {
		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitWebSocket())
			r.Get("/ws/rooms", router.ws.ServeRooms)
			r.Get("/ws/stream", router.ws.ServeStream)
			r.Get("/ws/ingest", router.ws.ServeIngest)
		})
	}

	// ========================
	// Metrics
	// ========================
	r.Handle("/metrics", promhttp.Handler())

	return r
}
