// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package config

import (
	"fmt"
	"net/netip"
	"time"
)

// Validate checks that configuration values are present and within bounds.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateBroker(); err != nil {
		return err
	}

	if err := c.validateLiveness(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateClassifier(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

// IsProduction reports whether the broker runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// validateBroker validates buffer capacities and broadcast cadences
func (c *Config) validateBroker() error {
	b := c.Broker
	if b.StreamCapacity < 1 {
		return fmt.Errorf("STREAM_CAPACITY must be at least 1")
	}
	if b.AlertCapacity < 1 {
		return fmt.Errorf("ALERT_CAPACITY must be at least 1")
	}
	if err := minDuration("BROADCAST_EVENT_INTERVAL", b.EventInterval, 10*time.Millisecond); err != nil {
		return err
	}
	if err := minDuration("BROADCAST_TOPOLOGY_INTERVAL", b.TopologyInterval, 10*time.Millisecond); err != nil {
		return err
	}
	if err := minDuration("BROADCAST_STATS_INTERVAL", b.StatsInterval, 10*time.Millisecond); err != nil {
		return err
	}
	if b.BatchSize < 1 || b.BatchSize > b.StreamCapacity {
		return fmt.Errorf("BROADCAST_BATCH_SIZE must be between 1 and STREAM_CAPACITY (%d)", b.StreamCapacity)
	}
	if b.TopologyWindow < 1 {
		return fmt.Errorf("TOPOLOGY_WINDOW must be at least 1")
	}
	if b.StatsWindow <= 0 {
		return fmt.Errorf("STATS_WINDOW must be positive")
	}
	if b.SendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1")
	}
	if b.DedupWindow < 0 {
		return fmt.Errorf("INGEST_DEDUP_WINDOW must not be negative")
	}
	return nil
}

func (c *Config) validateLiveness() error {
	if err := minDuration("ROOMS_PING_PERIOD", c.Liveness.RoomsPeriod, 10*time.Millisecond); err != nil {
		return err
	}
	if err := minDuration("STREAM_PING_PERIOD", c.Liveness.StreamPeriod, 10*time.Millisecond); err != nil {
		return err
	}
	return minDuration("INGEST_KEEP_ALIVE", c.Liveness.IngestKeepAlive, 10*time.Millisecond)
}

func minDuration(name string, d, floor time.Duration) error {
	if d < floor {
		return fmt.Errorf("%s must be at least %v, got %v", name, floor, d)
	}
	return nil
}

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.Port < -1 || c.NATS.Port > 65535 {
			return fmt.Errorf("NATS_PORT must be between -1 and 65535")
		}
		if c.NATS.JetStream && c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when JetStream is enabled")
		}
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

// validateStore validates the persistence collaborator (only if enabled)
func (c *Config) validateStore() error {
	if !c.Store.Enabled {
		return nil
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required unless STORE_IN_MEMORY=true")
	}
	if c.Store.Retention < 0 {
		return fmt.Errorf("STORE_RETENTION must not be negative")
	}
	if c.Store.GCRatio < 0 || c.Store.GCRatio >= 1 {
		return fmt.Errorf("STORE_GC_RATIO must be in [0,1)")
	}
	if c.Store.QueueSize < 1 {
		return fmt.Errorf("STORE_QUEUE_SIZE must be at least 1")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	for _, cidr := range c.Classifier.InternalCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("INTERNAL_CIDRS entry %q is invalid: %w", cidr, err)
		}
	}
	for _, addr := range c.Classifier.Servers {
		if _, err := netip.ParseAddr(addr); err != nil {
			return fmt.Errorf("SERVER_ADDRESSES entry %q is invalid: %w", addr, err)
		}
	}
	return nil
}

// validateSecurity validates origin and rate limit configuration
func (c *Config) validateSecurity() error {
	if err := c.validateCORS(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if c.Security.IngestBodyLimit < 1 {
		return fmt.Errorf("INGEST_BODY_LIMIT must be at least 1 byte")
	}
	return nil
}

// validateCORS rejects wildcard origins in production. Dashboard WebSocket
// origin checks use the same list.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://soc.example.com,https://dashboard.example.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration should be flagged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	if c.Security.WSUpgradeLimit < 1 {
		return fmt.Errorf("WS_UPGRADE_LIMIT must be at least 1")
	}
	if c.Security.IngestRateLimit < 1 {
		return fmt.Errorf("INGEST_RATE_LIMIT must be at least 1")
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
