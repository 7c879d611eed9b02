// Threatcast - Real-Time Threat Event Broker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatcast

package classify

import (
	"testing"

	"github.com/tomtom215/threatcast/internal/broker"
	"github.com/tomtom215/threatcast/internal/models"
)

var _ broker.AddressClassifier = (*CIDRClassifier)(nil)

func TestCIDRClassifier_Defaults(t *testing.T) {
	c, err := NewCIDRClassifier(nil, []string{"10.0.0.1", "db-primary"})
	if err != nil {
		t.Fatalf("NewCIDRClassifier() error = %v", err)
	}

	tests := []struct {
		addr string
		want models.AddressKind
	}{
		{"10.0.0.1", models.AddressServer},
		{"db-primary", models.AddressServer},
		{"10.20.30.40", models.AddressInternal},
		{"172.16.5.4", models.AddressInternal},
		{"172.32.0.1", models.AddressExternal},
		{"192.168.1.1", models.AddressInternal},
		{"::ffff:192.168.1.1", models.AddressInternal},
		{"fd12::1", models.AddressInternal},
		{"8.8.8.8", models.AddressExternal},
		{"2001:db8::1", models.AddressExternal},
		{"not-an-ip", models.AddressExternal},
		{"", models.AddressExternal},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := c.Classify(tt.addr); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.addr, got, tt.want)
			}
		})
	}
}

func TestCIDRClassifier_CustomRanges(t *testing.T) {
	c, err := NewCIDRClassifier([]string{"203.0.113.0/24"}, nil)
	if err != nil {
		t.Fatalf("NewCIDRClassifier() error = %v", err)
	}
	if got := c.Classify("203.0.113.9"); got != models.AddressInternal {
		t.Errorf("Classify() = %s, want internal", got)
	}
	if got := c.Classify("10.0.0.1"); got != models.AddressExternal {
		t.Errorf("Classify() = %s, want external once defaults are replaced", got)
	}
}

func TestCIDRClassifier_InvalidCIDR(t *testing.T) {
	if _, err := NewCIDRClassifier([]string{"10.0.0.0/33"}, nil); err == nil {
		t.Error("expected error for invalid prefix")
	}
}
