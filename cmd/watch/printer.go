// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatcast/internal/client"
	"github.com/tomtom215/threatcast/internal/models"
)

// printer writes broker pushes as text or JSON lines. Handlers run on both
// connection goroutines, so writes are serialized.
type printer struct {
	mu    sync.Mutex
	out   io.Writer
	json  bool
	quiet bool
}

func newPrinter(out io.Writer, jsonOutput, quiet bool) *printer {
	return &printer{out: out, json: jsonOutput, quiet: quiet}
}

// line is the JSON-lines record.
type line struct {
	Kind      string           `json:"kind"`
	Transport models.Transport `json:"transport,omitempty"`
	Data      interface{}      `json:"data"`
}

func (p *printer) handlers() client.Handlers {
	return client.Handlers{
		OnBatch:    p.batch,
		OnAlert:    p.alert,
		OnUpdate:   p.update,
		OnStats:    p.stats,
		OnTopology: p.topology,
		OnError:    p.serverError,
	}
}

func (p *printer) emit(kind string, t models.Transport, data interface{}, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		b, err := json.Marshal(line{Kind: kind, Transport: t, Data: data})
		if err != nil {
			return
		}
		fmt.Fprintln(p.out, string(b))
		return
	}
	if t != "" {
		fmt.Fprintf(p.out, "[%-6s] %s\n", t, text)
		return
	}
	fmt.Fprintln(p.out, text)
}

func formatEvent(e models.Event) string {
	blocked := ""
	if e.Blocked {
		blocked = " blocked"
	}
	category := e.Category
	if category == "" {
		category = "-"
	}
	return fmt.Sprintf("%s %-8s %.2f %s -> %s %s%s",
		e.Timestamp.Format(time.TimeOnly), e.Severity, e.Score,
		e.SourceAddress, e.DestinationAddress, category, blocked)
}

func (p *printer) batch(t models.Transport, events []models.Event) {
	if p.quiet || len(events) == 0 {
		return
	}
	if p.json {
		p.emit("batch", t, events, "")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "batch of %d", len(events))
	for _, e := range events {
		b.WriteString("\n         ")
		b.WriteString(formatEvent(e))
	}
	p.emit("batch", t, events, b.String())
}

func (p *printer) update(t models.Transport, e models.Event) {
	if p.quiet {
		return
	}
	p.emit("update", t, e, "update "+formatEvent(e))
}

func (p *printer) alert(t models.Transport, e models.Event) {
	p.emit("alert", t, e, "ALERT  "+formatEvent(e))
}

func (p *printer) stats(t models.Transport, s models.RealTimeStats) {
	if p.quiet {
		return
	}
	p.emit("stats", t, s, fmt.Sprintf("stats  %d events, %.1f/min, mean score %.2f, %d blocked, clients %v",
		s.TotalEvents, s.EventsPerMinute, s.MeanScore, s.BlockedCount, s.ConnectedClients))
}

func (p *printer) topology(t models.Transport, topo models.Topology) {
	if p.quiet {
		return
	}
	p.emit("topology", t, topo, fmt.Sprintf("topology %d nodes, %d edges", len(topo.Nodes), len(topo.Edges)))
}

func (p *printer) serverError(t models.Transport, message string) {
	p.emit("error", t, message, "error  "+message)
}

func (p *printer) sample(s client.Sample) {
	rtt := "n/a"
	if s.WorstRTT > 0 {
		rtt = s.WorstRTT.Round(time.Millisecond).String()
	}
	p.emit("quality", "", s, fmt.Sprintf("quality %s (%d/%d alive, worst rtt %s)", s.Quality, s.Alive, s.Total, rtt))
}
