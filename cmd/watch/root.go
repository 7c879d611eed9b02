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
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/threatcast/internal/client"
	"github.com/tomtom215/threatcast/internal/config"
	"github.com/tomtom215/threatcast/internal/logging"
	"github.com/tomtom215/threatcast/internal/models"
	"github.com/tomtom215/threatcast/internal/validation"
)

type watchOptions struct {
	baseURL        string
	severities     []string
	categories     []string
	sources        []string
	minScore       float64
	sampleInterval time.Duration
	retryDelay     time.Duration
	pingPeriod     time.Duration
	jsonOutput     bool
	quiet          bool
	logLevel       string
}

var opts watchOptions

var rootCmd = &cobra.Command{
	Use:   "threatcast-watch",
	Short: "Terminal dashboard for a Threatcast broker",
	Long: `threatcast-watch connects to /ws/rooms and /ws/stream, subscribes to every
room and prints event batches, alerts, topology and stats as they arrive.
Connection quality across both links is sampled on a fixed interval.

Both connections reconnect with a fixed delay and never give up.

Examples:
  # Everything
  threatcast-watch --url http://localhost:3001

  # Only high-severity brute force traffic, as JSON lines
  threatcast-watch --severity HIGH,CRITICAL --category brute_force --json`,
	SilenceUsage: true,
	RunE:         runWatch,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaults := config.ClientConfig{
		BaseURL:        "http://localhost:3001",
		RetryDelay:     5 * time.Second,
		PingPeriod:     30 * time.Second,
		SampleInterval: client.DefaultSampleInterval,
	}
	if cfg, err := config.Load(); err == nil {
		defaults = cfg.Client
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.baseURL, "url", defaults.BaseURL, "broker base URL")
	flags.StringSliceVar(&opts.severities, "severity", nil, "only these severities (LOW, MEDIUM, HIGH, CRITICAL)")
	flags.StringSliceVar(&opts.categories, "category", nil, "only these categories")
	flags.StringSliceVar(&opts.sources, "source", nil, "only these source addresses")
	flags.Float64Var(&opts.minScore, "min-score", -1, "only events scoring at least this (0..1)")
	flags.DurationVar(&opts.sampleInterval, "sample-interval", defaults.SampleInterval, "connection quality sample interval")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print one JSON object per line")
	flags.BoolVar(&opts.quiet, "quiet", false, "print alerts and quality samples only")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flags.DurationVar(&opts.retryDelay, "retry-delay", defaults.RetryDelay, "fixed delay between reconnect attempts")
	flags.DurationVar(&opts.pingPeriod, "ping-period", defaults.PingPeriod, "keepalive ping interval")
}

// buildFilter turns the filter flags into a FilterSpec, or nil when unset.
func (o watchOptions) buildFilter() (*models.FilterSpec, error) {
	f := &models.FilterSpec{
		Categories:      trimAll(o.categories),
		SourceAddresses: trimAll(o.sources),
	}
	for _, name := range trimAll(o.severities) {
		sev, err := models.ParseSeverity(name)
		if err != nil {
			return nil, err
		}
		f.Severities = append(f.Severities, sev)
	}
	if o.minScore >= 0 {
		v := o.minScore
		f.MinScore = &v
	}
	if f.IsEmpty() {
		return nil, nil
	}
	if err := validation.ValidateStruct(f); err != nil {
		return nil, err
	}
	return f, nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if !logging.ValidLevel(opts.logLevel) {
		return fmt.Errorf("unknown log level %q", opts.logLevel)
	}
	logging.Init(logging.Config{Level: opts.logLevel, Format: "console", Timestamp: true})

	filter, err := opts.buildFilter()
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := newPrinter(cmd.OutOrStdout(), opts.jsonOutput, opts.quiet)
	dash, err := client.NewDashboardClient(client.DashboardConfig{
		BaseURL: opts.baseURL,
		Filter:  filter,
		Options: client.Options{
			RetryDelay: opts.retryDelay,
			PingPeriod: opts.pingPeriod,
		},
	}, p.handlers())
	if err != nil {
		return err
	}

	sampler := client.NewSampler(opts.sampleInterval, p.sample, dash.Links()...)
	go func() {
		_ = sampler.Run(ctx)
	}()

	if err := dash.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
