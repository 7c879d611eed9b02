// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if len(a) != 36 || a == b {
		t.Errorf("GenerateRequestID() = %q, %q", a, b)
	}
}

func TestContextIDs(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" || ConnIDFromContext(ctx) != "" {
		t.Error("empty context returned an ID")
	}

	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithConnID(ctx, "conn-9")
	if RequestIDFromContext(ctx) != "req-1" {
		t.Errorf("request id = %q", RequestIDFromContext(ctx))
	}
	if ConnIDFromContext(ctx) != "conn-9" {
		t.Errorf("conn id = %q", ConnIDFromContext(ctx))
	}
}

func TestCtx_AddsFields(t *testing.T) {
	buf := captureGlobal(t, "info")

	ctx := ContextWithConnID(ContextWithRequestID(context.Background(), "req-1"), "conn-9")
	Ctx(ctx).Info().Msg("hello")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["request_id"] != "req-1" || entry["conn_id"] != "conn-9" {
		t.Errorf("entry = %v", entry)
	}
}

func TestCtx_StoredLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))

	Ctx(ctx).Info().Msg("routed")
	if !strings.Contains(buf.String(), "routed") {
		t.Errorf("stored logger not used: %q", buf.String())
	}
}
