// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

// Package classify decides whether a topology node is an internal host, an
// external host or a known server.
//
// The broker treats addresses as opaque strings; only this package parses
// them. Anything that is not a parseable IP is external unless it is listed
// as a server.
package classify

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/tomtom215/threatcast/internal/models"
)

// DefaultInternalCIDRs are the private, loopback and link-local ranges.
var DefaultInternalCIDRs = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

// CIDRClassifier classifies addresses by prefix membership.
type CIDRClassifier struct {
	internal []netip.Prefix
	servers  map[string]struct{}
}

// NewCIDRClassifier parses the internal ranges and server list. An empty
// internal list falls back to DefaultInternalCIDRs.
func NewCIDRClassifier(internalCIDRs, servers []string) (*CIDRClassifier, error) {
	if len(internalCIDRs) == 0 {
		internalCIDRs = DefaultInternalCIDRs
	}
	c := &CIDRClassifier{
		internal: make([]netip.Prefix, 0, len(internalCIDRs)),
		servers:  make(map[string]struct{}, len(servers)),
	}
	for _, cidr := range internalCIDRs {
		p, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid internal CIDR %q: %w", cidr, err)
		}
		c.internal = append(c.internal, p.Masked())
	}
	for _, s := range servers {
		if s = strings.TrimSpace(s); s != "" {
			c.servers[s] = struct{}{}
		}
	}
	return c, nil
}

// Classify implements broker.AddressClassifier.
func (c *CIDRClassifier) Classify(address string) models.AddressKind {
	if _, ok := c.servers[address]; ok {
		return models.AddressServer
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return models.AddressExternal
	}
	addr = addr.Unmap()
	for _, p := range c.internal {
		if p.Contains(addr) {
			return models.AddressInternal
		}
	}
	return models.AddressExternal
}
