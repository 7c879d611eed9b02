// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// captureGlobal points the global logger at a buffer for the duration of a test.
func captureGlobal(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Logger()
	prevLevel := GetLevel()
	Init(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() {
		SetLogger(prev)
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func decodeLine(t *testing.T, line string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || !cfg.Timestamp || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		" error ":  zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"verbose":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	if ValidLevel("verbose") {
		t.Error("ValidLevel accepted an unknown level")
	}
	if !ValidLevel("Warn") {
		t.Error("ValidLevel rejected warn")
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	buf := captureGlobal(t, "warn")

	Info().Msg("hidden")
	Warn().Str("transport", "rooms").Msg("shown")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Error("info entry written at warn level")
	}
	entry := decodeLine(t, out)
	if entry["message"] != "shown" || entry["transport"] != "rooms" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry has no time field")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	Init(Config{Level: "info", Format: "console", Output: &buf})
	Info().Msg("console line")

	if !strings.Contains(buf.String(), "console line") {
		t.Errorf("console output = %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("console format produced JSON")
	}
}

func TestErrAndWithComponent(t *testing.T) {
	buf := captureGlobal(t, "debug")

	Err(errTest).Msg("failed")
	l := WithComponent("liveness")
	l.Info().Msg("tick")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if e := decodeLine(t, lines[0]); e["error"] != "boom" || e["level"] != "error" {
		t.Errorf("Err entry = %v", e)
	}
	if e := decodeLine(t, lines[1]); e["component"] != "liveness" {
		t.Errorf("component entry = %v", e)
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("boom")
