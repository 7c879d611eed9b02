// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/metrics"
	"github.com/tomtom215/threatcast/internal/middleware"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow per client IP on the read API.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// Per-minute, per-IP budgets for the other route groups.
	WSUpgradeLimit int
	IngestLimit    int
	HealthLimit    int
}

// DefaultChiMiddlewareConfig returns the defaults. No CORS origin is allowed
// until one is configured.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,

		// dashboards reconnect every few seconds, so upgrades stay permissive
		WSUpgradeLimit: 30,
		IngestLimit:    600,
		HealthLimit:    1000,
	}
}

// ChiMiddleware builds the CORS handler once and hands out per-group rate
// limiters.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the factory. A nil config uses the defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	return &ChiMiddleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins: config.CORSAllowedOrigins,
			AllowedMethods: config.CORSAllowedMethods,
			AllowedHeaders: config.CORSAllowedHeaders,
			ExposedHeaders: config.CORSExposedHeaders,
			MaxAge:         config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// limiter returns a per-IP httprate limiter for one route group. Rejections
// use the API error envelope and are counted per group.
func (m *ChiMiddleware) limiter(group string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimited(group)
			logging.Debug().
				Str("group", group).
				Str("request_id", middleware.GetRequestID(r)).
				Msg("rate limited")
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED",
				"Too many requests, retry after the window resets", nil)
		}),
	)
}

// RateLimit limits the read API.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.limiter("api", m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// RateLimitWebSocket limits WebSocket upgrades.
func (m *ChiMiddleware) RateLimitWebSocket() func(http.Handler) http.Handler {
	return m.limiter("websocket", m.config.WSUpgradeLimit, time.Minute)
}

// RateLimitHealth limits the health probes.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.limiter("health", m.config.HealthLimit, time.Minute)
}

// RateLimitIngest limits POST /api/v1/ingest.
func (m *ChiMiddleware) RateLimitIngest() func(http.Handler) http.Handler {
	return m.limiter("ingest", m.config.IngestLimit, time.Minute)
}

// APISecurityHeaders returns a middleware that adds security headers to API responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Referrer-Policy: strict-origin-when-cross-origin
//
// HSTS is added when the request arrived over HTTPS.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Check X-Forwarded-Proto for reverse proxy setups
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
