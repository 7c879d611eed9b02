// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package config

import (
	"time"
)

// Config holds all broker configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in values from defaultConfig
//  2. Config File: Optional YAML file (CONFIG_PATH or a default search path)
//  3. Environment Variables: Override any mapped setting
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Broker     BrokerConfig     `koanf:"broker"`
	Liveness   LivenessConfig   `koanf:"liveness"`
	Client     ClientConfig     `koanf:"client"`
	NATS       NATSConfig       `koanf:"nats"`
	Store      StoreConfig      `koanf:"store"`
	Scoring    ScoringConfig    `koanf:"scoring"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST, HTTP_PORT
//   - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT
//   - SHUTDOWN_TIMEOUT
//   - ENVIRONMENT: development or production
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// BrokerConfig holds buffer sizes, broadcast cadences and ingestion settings.
type BrokerConfig struct {
	// StreamCapacity bounds the main event ring buffer.
	StreamCapacity int `koanf:"stream_capacity"`
	// AlertCapacity bounds the HIGH/CRITICAL alert ring buffer.
	AlertCapacity int `koanf:"alert_capacity"`

	EventInterval    time.Duration `koanf:"event_interval"`
	TopologyInterval time.Duration `koanf:"topology_interval"`
	StatsInterval    time.Duration `koanf:"stats_interval"`
	BatchSize        int           `koanf:"batch_size"`
	TopologyWindow   int           `koanf:"topology_window"`
	StatsWindow      time.Duration `koanf:"stats_window"`
	TopK             int           `koanf:"top_k"`

	// ImmediateUpdates sends a threatUpdate per event on the rooms transport.
	ImmediateUpdates bool `koanf:"immediate_updates"`

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int `koanf:"send_buffer"`

	DedupWindow   time.Duration `koanf:"dedup_window"`
	DedupCapacity int           `koanf:"dedup_capacity"`
}

// LivenessConfig holds heartbeat periods. One monitor runs per transport.
type LivenessConfig struct {
	RoomsPeriod     time.Duration `koanf:"rooms_period"`
	StreamPeriod    time.Duration `koanf:"stream_period"`
	IngestKeepAlive time.Duration `koanf:"ingest_keep_alive"`
}

// ClientConfig holds settings for the Go client used by cmd/agent and cmd/watch.
type ClientConfig struct {
	BaseURL        string        `koanf:"base_url"`
	RetryDelay     time.Duration `koanf:"retry_delay"`
	PingPeriod     time.Duration `koanf:"ping_period"`
	SampleInterval time.Duration `koanf:"sample_interval"`
}

// NATSConfig holds the optional NATS ingestion path.
//
// Environment Variables:
//   - NATS_ENABLED: consume producer envelopes from NATS (default: false)
//   - NATS_URL: broker URL, ignored when NATS_EMBEDDED=true
//   - NATS_EMBEDDED: run an in-process NATS server (default: true)
//   - NATS_SUBJECT: ingest subject (default: threats.ingest)
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	JetStream        bool          `koanf:"jetstream"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	Subject          string        `koanf:"subject"`
	QueueGroup       string        `koanf:"queue_group"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
}

// StoreConfig holds the Badger persistence collaborator settings.
type StoreConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Path             string        `koanf:"path"`
	InMemory         bool          `koanf:"in_memory"`
	Retention        time.Duration `koanf:"retention"`
	SyncWrites       bool          `koanf:"sync_writes"`
	GCInterval       time.Duration `koanf:"gc_interval"`
	GCRatio          float64       `koanf:"gc_ratio"`
	QueryLimit       int           `koanf:"query_limit"`
	QueueSize        int           `koanf:"queue_size"`
	OperationTimeout time.Duration `koanf:"operation_timeout"`
}

// ScoringConfig configures the scorer used for events that arrive with
// features but no score or severity.
type ScoringConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

// ClassifierConfig configures address classification for topology snapshots.
type ClassifierConfig struct {
	// InternalCIDRs are the ranges treated as internal. Empty uses the
	// private, loopback and link-local ranges.
	InternalCIDRs []string `koanf:"internal_cidrs"`
	// Servers are exact addresses classified as servers.
	Servers []string `koanf:"servers"`
}

// SecurityConfig holds origin checks and request rate limits.
type SecurityConfig struct {
	CORSOrigins   []string `koanf:"cors_origins"`
	AllowNoOrigin bool     `koanf:"allow_no_origin"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// WSUpgradeLimit caps WebSocket upgrades per client IP per minute.
	WSUpgradeLimit int `koanf:"ws_upgrade_limit"`
	// IngestRateLimit caps POST /api/v1/ingest requests per client IP per minute.
	IngestRateLimit int `koanf:"ingest_rate_limit"`
	// IngestBodyLimit caps POST /api/v1/ingest request bodies in bytes.
	IngestBodyLimit int64 `koanf:"ingest_body_limit"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from all sources.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
