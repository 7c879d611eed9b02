// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
)

const (
	sourceBuffer = "buffer"
	sourceStore  = "store"
)

// RecentRequest is the validated query of the list endpoints.
type RecentRequest struct {
	Limit int `validate:"min=1,max=1000"`
}

// StatsRequest is the validated query of GET /api/v1/stats.
type StatsRequest struct {
	WindowHours int `validate:"min=1,max=720"`
}

// parseRecent reads ?limit= plus the optional filter parameters.
// It writes the error response itself and returns ok=false on bad input.
func (h *Handler) parseRecent(w http.ResponseWriter, r *http.Request) (RecentRequest, *models.FilterSpec, bool) {
	req := RecentRequest{Limit: getIntParam(r, "limit", h.cfg.DefaultLimit)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return req, nil, false
	}
	filter, err := parseFilterParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return req, nil, false
	}
	return req, filter, true
}

// limitFiltered applies filter and keeps at most limit events, preserving order.
func limitFiltered(events []*models.Event, filter *models.FilterSpec, limit int) []*models.Event {
	out := broker.FilterEvents(events, filter)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// storeMatch turns a filter into a store predicate; nil scans unfiltered.
func storeMatch(filter *models.FilterSpec) func(*models.Event) bool {
	if filter.IsEmpty() {
		return nil
	}
	return func(e *models.Event) bool { return broker.Matches(e, filter) }
}

// EventsRecent returns the newest buffered events, most recent first.
//
//	GET /api/v1/events/recent?limit=100&severity=HIGH,CRITICAL
func (h *Handler) EventsRecent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, filter, ok := h.parseRecent(w, r)
	if !ok {
		return
	}

	events := limitFiltered(h.events.Recent(h.events.Len()), filter, req.Limit)
	respondSuccess(w, http.StatusOK, events, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
		Source:      sourceBuffer,
	})
}

// EventsHistory returns recent events from the persistence store. When the
// store is disabled or failing it answers from the buffer instead.
//
//	GET /api/v1/events/history?limit=500
func (h *Handler) EventsHistory(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, filter, ok := h.parseRecent(w, r)
	if !ok {
		return
	}

	meta := models.Metadata{Source: sourceBuffer}
	var events []*models.Event
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.StoreTimeout)
		stored, err := h.store.Find(ctx, req.Limit, storeMatch(filter))
		cancel()
		if err == nil {
			events = stored
			meta.Source = sourceStore
		} else {
			h.logDegraded("events_history", err)
			meta.Degraded = true
		}
	}
	if meta.Source == sourceBuffer {
		events = h.events.Recent(h.events.Len())
	}

	meta.QueryTimeMS = time.Since(start).Milliseconds()
	respondSuccess(w, http.StatusOK, limitFiltered(events, filter, req.Limit), meta)
}

// AlertsRecent returns the newest HIGH and CRITICAL alerts.
//
//	GET /api/v1/alerts/recent?limit=50
func (h *Handler) AlertsRecent(w http.ResponseWriter, r *http.Request) {
	req, filter, ok := h.parseRecent(w, r)
	if !ok {
		return
	}

	alerts := h.broadcaster.Alerts()
	respondSuccess(w, http.StatusOK, limitFiltered(alerts.Recent(alerts.Len()), filter, req.Limit), models.Metadata{
		Source: sourceBuffer,
	})
}

// Stats returns aggregates over the trailing window_hours from the store,
// falling back to the buffer when the store is unavailable.
//
//	GET /api/v1/stats?window_hours=24
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := StatsRequest{WindowHours: getIntParam(r, "window_hours", 24)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	meta := models.Metadata{Source: sourceBuffer}
	var stats *models.StoredStats
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.StoreTimeout)
		stored, err := h.store.Stats(ctx, req.WindowHours)
		cancel()
		if err == nil {
			stats = stored
			meta.Source = sourceStore
		} else {
			h.logDegraded("stats", err)
			meta.Degraded = true
		}
	}
	if stats == nil {
		stats = broker.ComputeStoredStats(h.events.Recent(h.events.Len()), req.WindowHours, h.cfg.TopK, h.now())
	}

	meta.QueryTimeMS = time.Since(start).Milliseconds()
	respondSuccess(w, http.StatusOK, stats, meta)
}

// StatsRealtime returns the same snapshot the stats cadence pushes.
//
//	GET /api/v1/stats/realtime
func (h *Handler) StatsRealtime(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.broadcaster.Stats(), models.Metadata{Source: sourceBuffer})
}

// Topology returns a full node/edge snapshot of the recent event window.
//
//	GET /api/v1/topology
func (h *Handler) Topology(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	topo := h.broadcaster.Topology()
	respondSuccess(w, http.StatusOK, topo, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
		Source:      sourceBuffer,
	})
}

// Connections lists live dashboard connections with their heartbeat status.
//
//	GET /api/v1/connections
func (h *Handler) Connections(w http.ResponseWriter, r *http.Request) {
	conns := h.registry.Connections()
	out := make([]models.ConnectionInfo, 0, len(conns))
	for _, c := range conns {
		info := models.ConnectionInfo{
			ID:        c.ID(),
			Transport: c.Transport(),
			Rooms:     h.registry.Rooms(c.ID()),
		}
		if at, ok := h.registry.ConnectedAt(c.ID()); ok {
			info.ConnectedAt = at
		}
		if m, ok := h.liveness[c.Transport()]; ok {
			if st, tracked := m.Status(c.ID()); tracked {
				info.LastPongAt = st.LastPongAt
				info.Alive = st.State != broker.StateDead
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].ID < out[j].ID
	})

	respondSuccess(w, http.StatusOK, out, models.Metadata{})
}

// Latency reports per-endpoint request latency percentiles.
//
//	GET /api/v1/latency
func (h *Handler) Latency(w http.ResponseWriter, r *http.Request) {
	if h.latency == nil {
		respondError(w, http.StatusNotFound, "LATENCY_DISABLED", "Latency sampling is not enabled", nil)
		return
	}
	respondSuccess(w, http.StatusOK, h.latency.Stats(), models.Metadata{})
}

func (h *Handler) logDegraded(query string, err error) {
	logging.Warn().
		Err(err).
		Str("query", query).
		Bool("collaborator_unavailable", errors.Is(err, broker.ErrCollaboratorUnavailable)).
		Msg("store unavailable, answering from event buffer")
}
