// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/client"
	"github.com/tomtom215/threatcast/internal/config"
	"github.com/tomtom215/threatcast/internal/eventprocessor"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/scoring"
)

const (
	transportWS   = "ws"
	transportNATS = "nats"
)

// agentOptions are the command-line flags.
type agentOptions struct {
	transport string
	baseURL   string
	natsURL   string
	subject   string
	rate      float64
	batch     int
	count     int
	seed      int64
	features  bool
	blockRate float64
	logLevel  string
}

var opts agentOptions

var rootCmd = &cobra.Command{
	Use:   "threatcast-agent",
	Short: "Synthetic threat event producer",
	Long: `threatcast-agent generates randomized threat events and sends them to a
Threatcast broker.

With --transport ws (default) events go to /ws/ingest on --url and the
connection is retried with a fixed delay until the agent stops. With
--transport nats events are published as envelopes to --subject.

Examples:
  # 20 events per second in batches of 5
  threatcast-agent --rate 20 --batch 5

  # Let the broker score raw features
  threatcast-agent --features

  # Publish 1000 events through NATS, then exit
  threatcast-agent --transport nats --count 1000`,
	SilenceUsage: true,
	RunE:         runAgent,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaults := loadDefaults()

	flags := rootCmd.Flags()
	flags.StringVar(&opts.transport, "transport", transportWS, "delivery transport: ws or nats")
	flags.StringVar(&opts.baseURL, "url", defaults.Client.BaseURL, "broker base URL (ws transport)")
	flags.StringVar(&opts.natsURL, "nats-url", defaults.NATS.URL, "NATS server URL (nats transport)")
	flags.StringVar(&opts.subject, "subject", defaults.NATS.Subject, "NATS ingest subject")
	flags.Float64Var(&opts.rate, "rate", 10, "events per second")
	flags.IntVar(&opts.batch, "batch", 1, "events per envelope")
	flags.IntVar(&opts.count, "count", 0, "stop after this many events (0 runs until interrupted)")
	flags.Int64Var(&opts.seed, "seed", 0, "generator seed (0 picks a random seed)")
	flags.BoolVar(&opts.features, "features", false, "send raw features instead of a precomputed score")
	flags.Float64Var(&opts.blockRate, "block-rate", scoring.DefaultGeneratorConfig().BlockRate, "fraction of events marked blocked")
	flags.StringVar(&opts.logLevel, "log-level", defaults.Logging.Level, "log level")
}

// loadDefaults reads the shared config so flags default to the same broker
// the server is configured for.
func loadDefaults() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logging.Warn().Err(err).Msg("Could not load config, using built-in defaults")
		return &config.Config{
			Client:  config.ClientConfig{BaseURL: "http://localhost:3001", RetryDelay: 5 * time.Second, PingPeriod: 30 * time.Second},
			NATS:    config.NATSConfig{URL: "nats://127.0.0.1:4222", Subject: eventprocessor.DefaultIngestSubject},
			Logging: config.LoggingConfig{Level: "info"},
		}
	}
	return cfg
}

// EventPublisher delivers one batch of generated events.
type EventPublisher interface {
	Publish(ctx context.Context, events []broker.RawEvent, now time.Time) error
}

var (
	_ EventPublisher = natsPublisher{}
	_ EventPublisher = (*client.Producer)(nil)
)

// natsPublisher adapts eventprocessor.Publisher to a fixed subject.
type natsPublisher struct {
	p       *eventprocessor.Publisher
	subject string
}

func (n natsPublisher) Publish(ctx context.Context, events []broker.RawEvent, now time.Time) error {
	return n.p.PublishEvents(ctx, n.subject, events, now)
}

func (o agentOptions) validate() error {
	switch o.transport {
	case transportWS, transportNATS:
	default:
		return fmt.Errorf("unknown transport %q (want ws or nats)", o.transport)
	}
	if o.rate <= 0 {
		return fmt.Errorf("rate must be positive, got %v", o.rate)
	}
	if o.batch <= 0 {
		return fmt.Errorf("batch must be positive, got %d", o.batch)
	}
	if o.count < 0 {
		return fmt.Errorf("count must not be negative, got %d", o.count)
	}
	if o.blockRate < 0 || o.blockRate > 1 {
		return fmt.Errorf("block-rate must be in [0,1], got %v", o.blockRate)
	}
	if o.logLevel != "" && !logging.ValidLevel(o.logLevel) {
		return fmt.Errorf("unknown log level %q", o.logLevel)
	}
	return nil
}

func runAgent(cmd *cobra.Command, _ []string) error {
	if err := opts.validate(); err != nil {
		return err
	}
	logging.Init(logging.Config{Level: opts.logLevel, Format: "console", Timestamp: true})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defaults := loadDefaults()
	var pub EventPublisher
	switch opts.transport {
	case transportNATS:
		p, err := eventprocessor.NewPublisher(eventprocessor.DefaultPublisherConfig(opts.natsURL), logging.NewWatermillAdapter())
		if err != nil {
			return err
		}
		defer p.Close()
		pub = natsPublisher{p: p, subject: opts.subject}
	default:
		producer, err := client.NewProducer(opts.baseURL, client.Options{
			RetryDelay: defaults.Client.RetryDelay,
			PingPeriod: defaults.Client.PingPeriod,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := producer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("producer connection stopped")
			}
		}()
		pub = producer
	}

	gen := scoring.NewGenerator(scoring.GeneratorConfig{
		Seed:            opts.seed,
		BlockRate:       opts.blockRate,
		IncludeFeatures: opts.features,
	})

	logging.Info().
		Str("transport", opts.transport).
		Float64("rate", opts.rate).
		Int("batch", opts.batch).
		Int("count", opts.count).
		Msg("agent started")

	res := produce(ctx, pub, gen, opts)
	logging.Info().Int("sent", res.sent).Int("dropped", res.dropped).Msg("agent stopped")
	return nil
}

type produceResult struct {
	sent    int
	dropped int
}

// produce paces batches with a token bucket until ctx is done or count
// events have been sent. Batches that cannot be delivered are dropped.
func produce(ctx context.Context, pub EventPublisher, gen *scoring.Generator, o agentOptions) produceResult {
	burst := o.batch
	if int(o.rate) > burst {
		burst = int(o.rate)
	}
	limiter := rate.NewLimiter(rate.Limit(o.rate), burst)
	dropLog := rate.Sometimes{Interval: 10 * time.Second}

	var res produceResult
	for o.count == 0 || res.sent < o.count {
		n := o.batch
		if o.count > 0 && o.count-res.sent < n {
			n = o.count - res.sent
		}
		if err := limiter.WaitN(ctx, n); err != nil {
			return res
		}

		err := pub.Publish(ctx, gen.Batch(n, time.Now()), time.Now())
		if err != nil {
			if ctx.Err() != nil {
				return res
			}
			res.dropped += n
			dropLog.Do(func() {
				logging.Warn().Err(err).Int("dropped", res.dropped).Msg("batch not delivered")
			})
			continue
		}
		res.sent += n
	}
	return res
}
