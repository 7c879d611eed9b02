// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/middleware"
	"github.com/tomtom215/threatcast/internal/models"
)

// maxReportedErrors caps the per-event error strings echoed to a producer.
const maxReportedErrors = 20

// Ingest accepts a producer envelope, a bare event or an array of events.
//
//	POST /api/v1/ingest
//	{"type": "threat", "data": [{"sourceAddress": "...", ...}], "timestamp": "..."}
//
// Answers 202 with the accepted ids when at least one event was buffered,
// 400 when every event was rejected and 413 when the body is too large.
// Malformed events never fail the batch.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.IngestBodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body exceeds the ingest limit", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Failed to read request body", err)
		return
	}

	res := h.ingestor.IngestEnvelope(r.Context(), broker.SourceHTTP, body)

	resp := &models.IngestResponse{
		Accepted: len(res.Accepted),
		Rejected: res.Rejected,
		IDs:      make([]string, 0, len(res.Accepted)),
	}
	for _, e := range res.Accepted {
		resp.IDs = append(resp.IDs, e.ID)
	}
	for i, e := range res.Errors {
		if i == maxReportedErrors {
			break
		}
		resp.Errors = append(resp.Errors, e.Error())
	}

	logging.Debug().
		Str("request_id", middleware.GetRequestID(r)).
		Int("accepted", resp.Accepted).
		Int("rejected", resp.Rejected).
		Msg("http ingest")

	if resp.Accepted == 0 && resp.Rejected > 0 {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status: "error",
			Data:   resp,
			Metadata: models.Metadata{
				Timestamp: h.now(),
			},
			Error: &models.APIError{
				Code:    "VALIDATION_ERROR",
				Message: "No event in the request was accepted",
			},
		})
		return
	}

	respondSuccess(w, http.StatusAccepted, resp, models.Metadata{})
}
