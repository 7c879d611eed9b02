// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/api"
	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/config"
	"github.com/tomtom215/threatcast/internal/eventprocessor"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/supervisor/services"
)

// NATSComponents holds the optional NATS ingestion path.
type NATSComponents struct {
	server   *eventprocessor.EmbeddedServer
	consumer *eventprocessor.IngestConsumer
	url      string
}

// InitNATS starts the embedded server (when configured) and builds the
// ingest consumer. Returns nil, nil when NATS_ENABLED=false.
func InitNATS(cfg *config.Config, in *broker.Ingestor) (*NATSComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS ingestion disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	c := &NATSComponents{url: cfg.NATS.URL}

	if cfg.NATS.EmbeddedServer {
		serverCfg := eventprocessor.DefaultServerConfig()
		serverCfg.Host = cfg.NATS.Host
		serverCfg.Port = cfg.NATS.Port
		serverCfg.JetStream = cfg.NATS.JetStream
		serverCfg.StoreDir = cfg.NATS.StoreDir
		serverCfg.JetStreamMaxMem = cfg.NATS.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.NATS.MaxStore

		server, err := eventprocessor.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		c.server = server
		c.url = server.ClientURL()
	} else {
		logging.Info().Str("url", c.url).Msg("Using external NATS server")
	}

	subCfg := eventprocessor.DefaultSubscriberConfig(c.url)
	subCfg.QueueGroup = cfg.NATS.QueueGroup
	subCfg.SubscribersCount = cfg.NATS.SubscribersCount
	subCfg.AckWaitTimeout = cfg.NATS.AckWaitTimeout
	subCfg.JetStream = cfg.NATS.JetStream
	subCfg.DurableName = cfg.NATS.DurableName

	sub, err := eventprocessor.NewSubscriber(&subCfg, logging.NewWatermillAdapter())
	if err != nil {
		c.shutdownServer()
		return nil, err
	}
	c.consumer = eventprocessor.NewIngestConsumer(sub, cfg.NATS.Subject, in)

	logging.Info().
		Str("url", c.url).
		Str("subject", cfg.NATS.Subject).
		Bool("embedded", c.server != nil).
		Bool("jetstream", cfg.NATS.JetStream).
		Msg("NATS ingestion initialized")
	return c, nil
}

// ServerService returns the supervisor service for the embedded server, or
// nil when an external server is used.
func (c *NATSComponents) ServerService(shutdownTimeout time.Duration) suture.Service {
	if c == nil || c.server == nil {
		return nil
	}
	return services.NewEmbeddedNATSService(c.server, shutdownTimeout)
}

// ConsumerService returns the ingest consumer as a supervisor service.
func (c *NATSComponents) ConsumerService() suture.Service {
	if c == nil || c.consumer == nil {
		return nil
	}
	return c.consumer
}

// ReadinessCheck reports whether the NATS server accepts connections.
func (c *NATSComponents) ReadinessCheck() api.ReadinessCheck {
	return func(ctx context.Context) error {
		if c.server != nil {
			if !c.server.IsRunning() {
				return fmt.Errorf("embedded NATS server is not running")
			}
			return nil
		}

		timeout := 2 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		nc, err := natsgo.Connect(c.url, natsgo.Name("threatcast-readiness"), natsgo.Timeout(timeout))
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		nc.Close()
		return nil
	}
}

// Close releases the subscriber. The embedded server is stopped by its
// supervisor service.
func (c *NATSComponents) Close() {
	if c == nil || c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing NATS subscriber")
	}
}

func (c *NATSComponents) shutdownServer() {
	if c.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.server.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Error shutting down embedded NATS server")
	}
}
