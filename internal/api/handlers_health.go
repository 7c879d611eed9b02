// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
)

// HealthLive handles liveness probe requests.
// Returns 200 OK as long as the process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests.
//
// The broker is ready once its event buffer and registry exist. Optional
// collaborators (store, NATS) are reported per component; a failing one marks
// the broker "degraded" but it keeps serving from the in-memory buffer, so the
// probe still answers 200.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := &models.HealthResponse{
		Status:     "ready",
		Components: make(map[string]string, len(h.checks)+1),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}

	if h.events == nil || h.registry == nil {
		resp.Status = "not_ready"
		resp.Components["broker"] = "unavailable"
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   resp.Status,
			Data:     resp,
			Metadata: models.Metadata{Timestamp: time.Now()},
		})
		return
	}

	resp.Components["broker"] = "ok"
	resp.BufferSize = h.events.Len()
	resp.Connections = h.registry.Count()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("component", name).Msg("readiness check failed")
			resp.Components[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Components[name] = "ok"
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   resp.Status,
		Data:     resp,
		Metadata: models.Metadata{Timestamp: time.Now(), Degraded: resp.Status == "degraded"},
	})
}
