// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

/*
Package config provides centralized configuration management for Threatcast.

Configuration is layered with Koanf v2: struct defaults, then an optional YAML
file, then environment variables. Later layers override earlier ones.

# Configuration Sources

  - Defaults: defaultConfig
  - YAML file: CONFIG_PATH, or config.yaml / config.yml in the working
    directory, or /etc/threatcast/config.yaml
  - Environment variables: an explicit mapping table; unmapped variables are
    ignored

# Configuration Structure

  - ServerConfig: HTTP listener (HTTP_HOST, HTTP_PORT, timeouts, ENVIRONMENT)
  - BrokerConfig: ring buffer capacities, broadcast cadences, batch size,
    per-connection send buffer, ingest id deduplication
  - LivenessConfig: heartbeat period per transport
  - ClientConfig: base URL, retry delay, ping period and quality sample
    interval for cmd/agent and cmd/watch
  - NATSConfig: optional NATS ingestion and embedded server
  - StoreConfig: Badger persistence collaborator
  - ScoringConfig: scorer timeout and circuit breaker
  - ClassifierConfig: internal CIDRs and server addresses for topology
  - SecurityConfig: CORS and WebSocket origins, HTTP rate limits
  - LoggingConfig: LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	srv := &http.Server{Addr: cfg.Server.Addr()}

Slice settings (CORS_ORIGINS, INTERNAL_CIDRS, SERVER_ADDRESSES) accept
comma-separated values from the environment.
*/
package config
