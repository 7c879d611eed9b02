// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/threatcast/config.yaml",
	"/etc/threatcast/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Broker: BrokerConfig{
			StreamCapacity:   1000,
			AlertCapacity:    50,
			EventInterval:    2 * time.Second,
			TopologyInterval: 10 * time.Second,
			StatsInterval:    5 * time.Second,
			BatchSize:        50,
			TopologyWindow:   1000,
			StatsWindow:      time.Minute,
			TopK:             10,
			ImmediateUpdates: false,
			SendBuffer:       256,
			DedupWindow:      5 * time.Minute,
			DedupCapacity:    10000,
		},
		Liveness: LivenessConfig{
			RoomsPeriod:     30 * time.Second,
			StreamPeriod:    30 * time.Second,
			IngestKeepAlive: 30 * time.Second,
		},
		Client: ClientConfig{
			BaseURL:        "http://localhost:3001",
			RetryDelay:     5 * time.Second,
			PingPeriod:     30 * time.Second,
			SampleInterval: 10 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			Host:             "127.0.0.1",
			Port:             4222,
			JetStream:        false,
			StoreDir:         "/data/threatcast/nats",
			MaxMemory:        256 << 20, // 256MB
			MaxStore:         1 << 30,   // 1GB
			Subject:          "threats.ingest",
			QueueGroup:       "threatcast",
			DurableName:      "threatcast-ingest",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
		},
		Store: StoreConfig{
			Enabled:          true,
			Path:             "/data/threatcast/events",
			InMemory:         false,
			Retention:        7 * 24 * time.Hour,
			SyncWrites:       false,
			GCInterval:       10 * time.Minute,
			GCRatio:          0.5,
			QueryLimit:       100000,
			QueueSize:        4096,
			OperationTimeout: 5 * time.Second,
		},
		Scoring: ScoringConfig{
			Enabled:          true,
			Timeout:          2 * time.Second,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
		},
		Classifier: ClassifierConfig{
			InternalCIDRs: []string{},
			Servers:       []string{},
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			AllowNoOrigin:     true,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			WSUpgradeLimit:    30,
			IngestRateLimit:   600,
			IngestBodyLimit:   1 << 20, // 1MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// HTTP_PORT -> server.port
	// BROADCAST_EVENT_INTERVAL -> broker.event_interval
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the config file Load would read, or "" when none exists.
func ConfigFile() string {
	return findConfigFile()
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"classifier.internal_cidrs",
	"classifier.servers",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	// Server mappings
	"http_port":          "server.port",
	"http_host":          "server.host",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"environment":        "server.environment",

	// Broker mappings
	"stream_capacity":             "broker.stream_capacity",
	"alert_capacity":              "broker.alert_capacity",
	"broadcast_event_interval":    "broker.event_interval",
	"broadcast_topology_interval": "broker.topology_interval",
	"broadcast_stats_interval":    "broker.stats_interval",
	"broadcast_batch_size":        "broker.batch_size",
	"topology_window":             "broker.topology_window",
	"stats_window":                "broker.stats_window",
	"stats_top_k":                 "broker.top_k",
	"immediate_updates":           "broker.immediate_updates",
	"ws_send_buffer":              "broker.send_buffer",
	"ingest_dedup_window":         "broker.dedup_window",
	"ingest_dedup_capacity":       "broker.dedup_capacity",

	// Liveness mappings
	"rooms_ping_period":  "liveness.rooms_period",
	"stream_ping_period": "liveness.stream_period",
	"ingest_keep_alive":  "liveness.ingest_keep_alive",

	// Client mappings
	"threatcast_url":         "client.base_url",
	"client_retry_delay":     "client.retry_delay",
	"client_ping_period":     "client.ping_period",
	"client_sample_interval": "client.sample_interval",

	// NATS mappings
	"nats_enabled":      "nats.enabled",
	"nats_url":          "nats.url",
	"nats_embedded":     "nats.embedded_server",
	"nats_host":         "nats.host",
	"nats_port":         "nats.port",
	"nats_jetstream":    "nats.jetstream",
	"nats_store_dir":    "nats.store_dir",
	"nats_max_memory":   "nats.max_memory",
	"nats_max_store":    "nats.max_store",
	"nats_subject":      "nats.subject",
	"nats_queue_group":  "nats.queue_group",
	"nats_durable_name": "nats.durable_name",
	"nats_subscribers":  "nats.subscribers_count",
	"nats_ack_wait":     "nats.ack_wait_timeout",

	// Store mappings
	"store_enabled":     "store.enabled",
	"store_path":        "store.path",
	"store_in_memory":   "store.in_memory",
	"store_retention":   "store.retention",
	"store_sync_writes": "store.sync_writes",
	"store_gc_interval": "store.gc_interval",
	"store_gc_ratio":    "store.gc_ratio",
	"store_query_limit": "store.query_limit",
	"store_queue_size":  "store.queue_size",
	"store_timeout":     "store.operation_timeout",

	// Scoring mappings
	"scoring_enabled":           "scoring.enabled",
	"scoring_timeout":           "scoring.timeout",
	"scoring_failure_threshold": "scoring.failure_threshold",
	"scoring_open_timeout":      "scoring.open_timeout",

	// Classifier mappings
	"internal_cidrs":   "classifier.internal_cidrs",
	"server_addresses": "classifier.servers",

	// Security mappings
	"cors_origins":        "security.cors_origins",
	"allow_no_origin":     "security.allow_no_origin",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"ws_upgrade_limit":    "security.ws_upgrade_limit",
	"ingest_rate_limit":   "security.ingest_rate_limit",
	"ingest_body_limit":   "security.ingest_body_limit",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - NATS_ENABLED -> nats.enabled
//   - STORE_RETENTION -> store.retention
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Skip unmapped keys so unrelated environment variables never reach the config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for synchronizing access to reloaded configuration.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
