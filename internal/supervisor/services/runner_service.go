// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package services

import (
	"context"
	"fmt"
)

// Runner is a component with a blocking, context-bound Run loop.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService adapts a Runner to suture.Service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps r. The service takes r's String() name when it has one.
func NewRunnerService(r Runner) *RunnerService {
	name := "runner"
	if s, ok := r.(fmt.Stringer); ok {
		name = s.String()
	}
	return &RunnerService{runner: r, name: name}
}

// NewNamedRunnerService wraps r under an explicit name.
func NewNamedRunnerService(name string, r Runner) *RunnerService {
	return &RunnerService{runner: r, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

func (s *RunnerService) String() string {
	return s.name
}
