// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatcast/internal/api"
	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/classify"
	"github.com/tomtom215/threatcast/internal/config"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/middleware"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/protocol"
	"github.com/tomtom215/threatcast/internal/resilience"
	"github.com/tomtom215/threatcast/internal/scoring"
	"github.com/tomtom215/threatcast/internal/store"
	"github.com/tomtom215/threatcast/internal/supervisor"
	"github.com/tomtom215/threatcast/internal/supervisor/services"
	ws "github.com/tomtom215/threatcast/internal/websocket"
)

const (
	latencySamples   = 1000
	latencySlowAfter = 500 * time.Millisecond
)

// brokerCore is the in-memory broker: buffers, registry, fan-out and
// liveness for both dashboard transports.
type brokerCore struct {
	registry    *broker.Registry
	events      *broker.EventBuffer
	broadcaster *broker.Broadcaster
	rooms       *broker.LivenessMonitor
	stream      *broker.LivenessMonitor
}

// storeComponents is the optional persistence path.
type storeComponents struct {
	db        *store.BadgerStore
	resilient *store.ResilientStore
	persister *store.Persister
}

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Bool("store_enabled", cfg.Store.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("scoring_enabled", cfg.Scoring.Enabled).
		Msg("Starting Threatcast with supervisor tree")

	classifier, err := classify.NewCIDRClassifier(cfg.Classifier.InternalCIDRs, cfg.Classifier.Servers)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid classifier configuration")
	}

	core := newBrokerCore(cfg, classifier)

	stores, err := initStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	if stores != nil {
		defer func() {
			if err := stores.db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event store")
			}
		}()
	}

	var sink broker.EventSink
	if stores != nil {
		sink = stores.persister
	}
	ingestor := broker.NewIngestor(broker.IngestorConfig{
		DedupWindow:   cfg.Broker.DedupWindow,
		DedupCapacity: cfg.Broker.DedupCapacity,
		ScorerTimeout: cfg.Scoring.Timeout,
	}, core.events, core.broadcaster, initScorer(cfg), sink)

	roomsHub := ws.NewHub(models.TransportRooms, core.registry, core.rooms)
	streamHub := ws.NewHub(models.TransportStream, core.registry, core.stream)
	wsServer := ws.NewServer(ws.ServerConfig{
		AllowedOrigins:  cfg.Security.CORSOrigins,
		AllowNoOrigin:   cfg.Security.AllowNoOrigin,
		SendBuffer:      cfg.Broker.SendBuffer,
		IngestKeepAlive: cfg.Liveness.IngestKeepAlive,
	}, roomsHub, streamHub, core.registry, core.broadcaster, ingestor)

	natsComponents, err := InitNATS(cfg, ingestor)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS ingestion")
	}
	defer natsComponents.Close()

	checks := make(map[string]api.ReadinessCheck)
	var eventStore store.Store
	if stores != nil {
		eventStore = stores.resilient
		checks["store"] = func(ctx context.Context) error {
			_, err := stores.resilient.Recent(ctx, 1)
			return err
		}
	}
	if natsComponents != nil {
		checks["nats"] = natsComponents.ReadinessCheck()
	}

	latency := middleware.NewLatencyMonitor(latencySamples, latencySlowAfter)
	handler := api.NewHandler(api.HandlerConfig{
		IngestBodyLimit: cfg.Security.IngestBodyLimit,
		TopK:            cfg.Broker.TopK,
		StoreTimeout:    cfg.Store.OperationTimeout,
	}, api.Dependencies{
		Registry:    core.registry,
		Events:      core.events,
		Broadcaster: core.broadcaster,
		Ingestor:    ingestor,
		Store:       eventStore,
		Liveness:    []*broker.LivenessMonitor{core.rooms, core.stream},
		Latency:     latency,
		Checks:      checks,
	})

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mwCfg.WSUpgradeLimit = cfg.Security.WSUpgradeLimit
	mwCfg.IngestLimit = cfg.Security.IngestRateLimit
	router := api.NewRouter(handler, wsServer, api.NewChiMiddleware(mwCfg))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	svcs := supervisor.BrokerServices{
		Hubs:       []suture.Service{roomsHub, streamHub},
		Cadences:   core.broadcaster.Cadences(),
		Liveness:   []*broker.LivenessMonitor{core.rooms, core.stream},
		NATSServer: natsComponents.ServerService(cfg.Server.ShutdownTimeout),
		Consumer:   natsComponents.ConsumerService(),
		HTTP:       services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout),
	}
	if stores != nil {
		svcs.StoreGC = stores.db
		svcs.Persister = stores.persister
	}
	tree.AddBroker(svcs)

	watchConfig()

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	fatal := false
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		fatal = logTreeError(err, "Supervisor tree error")
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		fatal = logTreeError(err, "Supervisor shutdown error") || fatal
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if fatal {
		// Deferred closes are skipped by os.Exit, so release the store first.
		natsComponents.Close()
		if stores != nil {
			if err := stores.db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event store")
			}
		}
		logging.Error().Msg("Threatcast stopped after a fatal error")
		os.Exit(1)
	}

	logging.Info().Msg("Application stopped gracefully")
}

// newBrokerCore builds the buffers, registry and broadcaster, and attaches
// one liveness monitor per dashboard transport.
func newBrokerCore(cfg *config.Config, classifier broker.AddressClassifier) *brokerCore {
	registry := broker.NewRegistry()
	events := broker.NewEventBuffer(cfg.Broker.StreamCapacity)
	alerts := broker.NewEventBuffer(cfg.Broker.AlertCapacity)

	b := broker.NewBroadcaster(broker.BroadcasterConfig{
		EventInterval:    cfg.Broker.EventInterval,
		TopologyInterval: cfg.Broker.TopologyInterval,
		StatsInterval:    cfg.Broker.StatsInterval,
		BatchSize:        cfg.Broker.BatchSize,
		TopologyWindow:   cfg.Broker.TopologyWindow,
		StatsWindow:      cfg.Broker.StatsWindow,
		TopK:             cfg.Broker.TopK,
		ImmediateUpdates: cfg.Broker.ImmediateUpdates,
	}, registry, events, alerts, classifier)
	b.SetCodec(models.TransportRooms, protocol.RoomCodec{})
	b.SetCodec(models.TransportStream, protocol.StreamCodec{})

	rooms := broker.NewLivenessMonitor(models.TransportRooms, cfg.Liveness.RoomsPeriod, registry)
	stream := broker.NewLivenessMonitor(models.TransportStream, cfg.Liveness.StreamPeriod, registry)
	b.AttachLiveness(rooms)
	b.AttachLiveness(stream)

	return &brokerCore{
		registry:    registry,
		events:      events,
		broadcaster: b,
		rooms:       rooms,
		stream:      stream,
	}
}

// initStore opens BadgerDB behind a circuit breaker. Returns nil, nil when
// STORE_ENABLED=false.
func initStore(cfg *config.Config) (*storeComponents, error) {
	if !cfg.Store.Enabled {
		logging.Info().Msg("Event store disabled (STORE_ENABLED=false)")
		return nil, nil
	}

	db, err := store.Open(store.Config{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		Retention:  cfg.Store.Retention,
		SyncWrites: cfg.Store.SyncWrites,
		GCInterval: cfg.Store.GCInterval,
		GCRatio:    cfg.Store.GCRatio,
		QueryLimit: cfg.Store.QueryLimit,
	})
	if err != nil {
		return nil, err
	}

	resilient := store.NewResilientStore(db, resilience.DefaultBreakerConfig("event-store"), cfg.Store.OperationTimeout)
	logging.Info().
		Str("path", cfg.Store.Path).
		Bool("in_memory", cfg.Store.InMemory).
		Dur("retention", cfg.Store.Retention).
		Msg("Event store opened")

	return &storeComponents{
		db:        db,
		resilient: resilient,
		persister: store.NewPersister(resilient, cfg.Store.QueueSize),
	}, nil
}

// initScorer returns the demo scorer behind a circuit breaker, or nil when
// scoring is disabled.
func initScorer(cfg *config.Config) broker.Scorer {
	if !cfg.Scoring.Enabled {
		logging.Info().Msg("Risk scoring disabled (SCORING_ENABLED=false)")
		return nil
	}
	bc := resilience.DefaultBreakerConfig("scorer")
	bc.FailureThreshold = cfg.Scoring.FailureThreshold
	bc.Timeout = cfg.Scoring.OpenTimeout
	return scoring.NewBreakerScorer(scoring.NewDemoScorer(), bc)
}

// watchConfig applies log level changes from the config file without a restart.
func watchConfig() {
	path := config.ConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		next, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config reload")
			return
		}
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

// logTreeError logs a supervisor error and reports whether it was fatal.
func logTreeError(err error, msg string) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	logging.Error().Err(err).Msg(msg)
	return errors.Is(err, suture.ErrTerminateSupervisorTree)
}
