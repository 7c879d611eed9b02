// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package broker

import (
	"sort"
	"time"

	"github.com/tomtom215/threatcast/internal/models"
)

// AddressClassifier labels an address as internal, external or server.
type AddressClassifier interface {
	Classify(address string) models.AddressKind
}

type edgeKey struct {
	src, dst string
}

// BuildTopology aggregates events into a full node/edge snapshot.
// Events are grouped into one edge per (source, destination) pair.
// A nil classifier labels every address external.
func BuildTopology(events []*models.Event, classifier AddressClassifier, now time.Time) *models.Topology {
	nodes := make(map[string]*models.TopologyNode)
	edges := make(map[edgeKey]*models.TopologyEdge)

	touch := func(addr string, sev models.Severity) {
		n, ok := nodes[addr]
		if !ok {
			kind := models.AddressExternal
			if classifier != nil {
				kind = classifier.Classify(addr)
			}
			n = &models.TopologyNode{ID: addr, Kind: kind, MaxSeverity: sev}
			nodes[addr] = n
		}
		n.EventCount++
		if sev > n.MaxSeverity {
			n.MaxSeverity = sev
		}
	}

	for _, e := range events {
		touch(e.SourceAddress, e.Severity)
		if e.DestinationAddress != e.SourceAddress {
			touch(e.DestinationAddress, e.Severity)
		}

		k := edgeKey{src: e.SourceAddress, dst: e.DestinationAddress}
		edge, ok := edges[k]
		if !ok {
			edge = &models.TopologyEdge{Source: k.src, Target: k.dst, MaxSeverity: e.Severity}
			edges[k] = edge
		}
		edge.Count++
		if e.Blocked {
			edge.BlockedCount++
		}
		if e.Severity > edge.MaxSeverity {
			edge.MaxSeverity = e.Severity
		}
		if e.ReceivedAt.After(edge.LastSeen) {
			edge.LastSeen = e.ReceivedAt
		}
	}

	topo := &models.Topology{
		Nodes:            make([]models.TopologyNode, 0, len(nodes)),
		Edges:            make([]models.TopologyEdge, 0, len(edges)),
		EventsConsidered: len(events),
		GeneratedAt:      now,
	}
	for _, n := range nodes {
		topo.Nodes = append(topo.Nodes, *n)
	}
	for _, e := range edges {
		topo.Edges = append(topo.Edges, *e)
	}

	sort.Slice(topo.Nodes, func(i, j int) bool { return topo.Nodes[i].ID < topo.Nodes[j].ID })
	sort.Slice(topo.Edges, func(i, j int) bool {
		if topo.Edges[i].Source != topo.Edges[j].Source {
			return topo.Edges[i].Source < topo.Edges[j].Source
		}
		return topo.Edges[i].Target < topo.Edges[j].Target
	})
	return topo
}
