// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package logging is the zerolog-based structured logger shared by every
threatcast component.

A single global logger is configured once from main:

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

and used through level helpers that always take structured fields:

	logging.Info().Str("transport", "stream").Int("clients", n).Msg("client connected")
	logging.Warn().Err(err).Str("conn_id", id).Msg("broadcast send failed")

Request-scoped logging picks up the request and connection IDs that the HTTP
middleware and WebSocket handlers store in the context:

	logging.Ctx(ctx).Debug().Msg("subscription updated")

# Bridges

NewSlogLogger adapts zerolog to log/slog for suture's sutureslog hook, and
NewWatermillAdapter adapts it to Watermill's LoggerAdapter for the NATS
ingest consumer. Both keep library output in the same JSON stream.
*/
package logging
